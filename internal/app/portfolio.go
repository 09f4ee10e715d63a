/**
 * @description
 * Owner-facing operations over clients, service plans and subscriptions.
 * These are the CRUD counterparts of the billing engine: validation happens
 * here so the HTTP handlers stay thin, and every lookup is scoped to the
 * calling owner.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fluxpay/billing-service/internal/domain"
	"github.com/fluxpay/billing-service/pkg/daraja"
)

// CreateClientInput carries the fields for registering a payer.
type CreateClientInput struct {
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phone_number"`
	Email       *string `json:"email,omitempty"`
}

// CreateClient registers a new payer under the owner. The phone number is
// normalized to international form and validated against the M-Pesa format.
func (s *Service) CreateClient(ctx context.Context, ownerID uuid.UUID, input CreateClientInput) (*domain.Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}

	phone := daraja.FormatPhoneNumber(input.PhoneNumber)
	if !domain.ValidMpesaPhone(phone) {
		return nil, fmt.Errorf("%w: phone number must be a valid M-Pesa number", ErrValidation)
	}

	return s.repo.CreateClient(ctx, domain.Client{
		OwnerID:     ownerID,
		Name:        name,
		PhoneNumber: phone,
		Email:       input.Email,
	})
}

// GetClient fetches one of the owner's clients.
func (s *Service) GetClient(ctx context.Context, id, ownerID uuid.UUID) (*domain.Client, error) {
	return s.repo.GetClientByID(ctx, id, ownerID)
}

// ListClients returns all of the owner's clients.
func (s *Service) ListClients(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error) {
	return s.repo.ListClientsByOwner(ctx, ownerID)
}

// CreatePlanInput carries the fields for creating a billing template.
type CreatePlanInput struct {
	Name       string                  `json:"name"`
	AmountKes  int64                   `json:"amount_kes"`
	Frequency  domain.BillingFrequency `json:"frequency"`
	BillingDay int                     `json:"billing_day"`
}

// CreatePlan creates a new service plan under the owner.
func (s *Service) CreatePlan(ctx context.Context, ownerID uuid.UUID, input CreatePlanInput) (*domain.ServicePlan, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: plan name is required", ErrValidation)
	}
	if input.AmountKes <= 0 {
		return nil, fmt.Errorf("%w: plan amount must be positive", ErrValidation)
	}
	if !input.Frequency.Valid() {
		return nil, fmt.Errorf("%w: frequency must be daily, weekly, monthly or annually", ErrValidation)
	}
	switch input.Frequency {
	case domain.FrequencyWeekly:
		if input.BillingDay < 1 || input.BillingDay > 7 {
			return nil, fmt.Errorf("%w: weekly billing day must be 1-7", ErrValidation)
		}
	case domain.FrequencyMonthly, domain.FrequencyAnnually:
		if input.BillingDay < 1 || input.BillingDay > 31 {
			return nil, fmt.Errorf("%w: billing day must be 1-31", ErrValidation)
		}
	}

	return s.repo.CreatePlan(ctx, domain.ServicePlan{
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(input.Name),
		AmountKes:  input.AmountKes,
		Frequency:  input.Frequency,
		BillingDay: input.BillingDay,
	})
}

// GetPlan fetches one of the owner's service plans.
func (s *Service) GetPlan(ctx context.Context, id, ownerID uuid.UUID) (*domain.ServicePlan, error) {
	return s.repo.GetPlanByID(ctx, id, ownerID)
}

// ListPlans returns all of the owner's service plans.
func (s *Service) ListPlans(ctx context.Context, ownerID uuid.UUID) ([]domain.ServicePlan, error) {
	return s.repo.ListPlansByOwner(ctx, ownerID)
}

// CreateSubscriptionInput carries the fields for subscribing a client to a plan.
type CreateSubscriptionInput struct {
	ClientID uuid.UUID `json:"client_id"`
	PlanID   uuid.UUID `json:"plan_id"`
	Notes    *string   `json:"notes,omitempty"`
}

// CreateSubscription links one of the owner's clients to one of their plans.
// Both references are verified against the owner before anything is written,
// and the first billing date is computed from the plan's cadence.
func (s *Service) CreateSubscription(ctx context.Context, ownerID uuid.UUID, input CreateSubscriptionInput) (*domain.Subscription, error) {
	if input.ClientID == uuid.Nil || input.PlanID == uuid.Nil {
		return nil, fmt.Errorf("%w: client id and plan id are required", ErrValidation)
	}

	if _, err := s.repo.GetClientByID(ctx, input.ClientID, ownerID); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlanByID(ctx, input.PlanID, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return s.repo.CreateSubscription(ctx, domain.Subscription{
		ClientID:        input.ClientID,
		PlanID:          input.PlanID,
		OwnerID:         ownerID,
		Status:          domain.SubscriptionPendingActivation,
		StartDate:       now,
		NextBillingDate: NextBillingDate(now, plan.Frequency, plan.BillingDay),
		Notes:           input.Notes,
	})
}

// GetSubscription fetches one of the owner's subscriptions.
func (s *Service) GetSubscription(ctx context.Context, id, ownerID uuid.UUID) (*domain.Subscription, error) {
	return s.repo.GetSubscriptionByID(ctx, id, ownerID)
}

// ListSubscriptions returns all of the owner's subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptionsByOwner(ctx, ownerID)
}

// CancelSubscription stops future billing for a subscription.
func (s *Service) CancelSubscription(ctx context.Context, id, ownerID uuid.UUID) (*domain.Subscription, error) {
	return s.repo.CancelSubscription(ctx, id, ownerID)
}

// ListTransactions returns the owner's charge history, newest first.
func (s *Service) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByOwner(ctx, ownerID, limit)
}
