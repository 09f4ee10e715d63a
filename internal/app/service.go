/**
 * @description
 * Core business logic for the billing-service: the due-payment scanner, the
 * failed-transaction retry processor, the STK callback reconciler, and the
 * interactive payment/CRUD operations exposed over HTTP.
 *
 * Key invariants enforced here:
 * - A due subscription's next billing date advances after every billing
 *   attempt, whether or not the charge reached the gateway.
 * - A transaction is never left PENDING without a Daraja request id: if the
 *   gateway call errors, the row is marked FAILED immediately.
 * - Only the callback reconciler resolves PENDING rows, and it does so
 *   through a status-guarded update so duplicate deliveries are no-ops.
 * - Batch jobs isolate per-item failures: one bad subscription or
 *   transaction never aborts the rest of the run.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fluxpay/billing-service/internal/domain"
	"github.com/fluxpay/billing-service/internal/store"
	"github.com/fluxpay/billing-service/pkg/daraja"
	"github.com/fluxpay/billing-service/pkg/rabbitmq"
)

// Retry policy for failed charge attempts.
const (
	maxRetries    = 3
	retryCoolDown = 24 * time.Hour
)

// ErrValidation marks request errors the API layer maps to 400 responses.
var ErrValidation = errors.New("validation error")

// Repository defines the database operations the service needs.
type Repository interface {
	GetDueSubscriptions(ctx context.Context, cutoff time.Time) ([]domain.DueSubscription, error)
	UpdateNextBillingDate(ctx context.Context, subID uuid.UUID, next time.Time) error
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	SetDarajaRequestID(ctx context.Context, txID uuid.UUID, requestID string) error
	MarkTransactionFailed(ctx context.Context, txID uuid.UUID) error
	GetRetryableTransactions(ctx context.Context, maxRetries int, updatedBefore time.Time) ([]domain.RetryCandidate, error)
	IncrementRetryCount(ctx context.Context, txID uuid.UUID) error
	GetTransactionByDarajaRequestID(ctx context.Context, requestID string) (*domain.Transaction, error)
	ResolvePendingTransaction(ctx context.Context, txID uuid.UUID, status domain.TransactionStatus, receiptNo *string) (bool, error)
	ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Transaction, error)
	GetOwnerBusinessName(ctx context.Context, ownerID uuid.UUID) (*string, error)

	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClientByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Client, error)
	ListClientsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error)
	CreatePlan(ctx context.Context, plan domain.ServicePlan) (*domain.ServicePlan, error)
	GetPlanByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.ServicePlan, error)
	ListPlansByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ServicePlan, error)
	CreateSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error)
	GetSubscriptionByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Subscription, error)
	ListSubscriptionsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Subscription, error)
	CancelSubscription(ctx context.Context, id, ownerID uuid.UUID) (*domain.Subscription, error)
}

// Gateway defines the interface for initiating push-payment charges.
type Gateway interface {
	InitiateStkPush(ctx context.Context, phone string, amount int64, businessName string) (*daraja.StkPushResponse, error)
}

// Service provides the business logic for billing operations.
type Service struct {
	repo      Repository
	gateway   Gateway
	publisher rabbitmq.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new billing service.
func NewService(repo Repository, gateway Gateway, publisher rabbitmq.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// ScanResult summarizes one due-payment scan.
type ScanResult struct {
	Due     int `json:"due"`
	Charged int `json:"charged"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RetryResult summarizes one retry pass.
type RetryResult struct {
	Eligible int `json:"eligible"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// ProcessDuePayments finds every ACTIVE subscription due on or before today,
// initiates one charge per subscription, and advances each subscription to
// its next billing cycle regardless of the charge outcome.
func (s *Service) ProcessDuePayments(ctx context.Context) (*ScanResult, error) {
	today := startOfDay(s.now())

	due, err := s.repo.GetDueSubscriptions(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}

	result := &ScanResult{Due: len(due)}
	for _, d := range due {
		if d.Client.PhoneNumber == "" || d.Plan.AmountKes <= 0 {
			s.logger.Error("skipping due subscription, missing client phone or plan amount",
				"subscription_id", d.Subscription.ID)
			result.Skipped++
			continue
		}

		if err := s.chargeDueSubscription(ctx, d); err != nil {
			s.logger.Error("charge initiation failed for due subscription",
				"subscription_id", d.Subscription.ID, "error", err)
			result.Failed++
		} else {
			result.Charged++
		}

		// The cycle advances even when the charge failed; a failed period is
		// only re-collected through the retry processor.
		next := NextBillingDate(d.Subscription.NextBillingDate, d.Plan.Frequency, d.Plan.BillingDay)
		if err := s.repo.UpdateNextBillingDate(ctx, d.Subscription.ID, next); err != nil {
			s.logger.Error("failed to advance next billing date",
				"subscription_id", d.Subscription.ID, "error", err)
		}
	}

	return result, nil
}

// chargeDueSubscription creates the ledger row for one due subscription and
// submits the STK push.
func (s *Service) chargeDueSubscription(ctx context.Context, d domain.DueSubscription) error {
	subID := d.Subscription.ID
	tx, err := s.repo.CreateTransaction(ctx, domain.Transaction{
		SubscriptionID: &subID,
		OwnerID:        d.Subscription.OwnerID,
		AmountKes:      d.Plan.AmountKes,
		Status:         domain.TransactionPending,
		RetryCount:     0,
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	push, err := s.gateway.InitiateStkPush(ctx, d.Client.PhoneNumber, d.Plan.AmountKes, derefOr(d.BusinessName, ""))
	if err != nil {
		if markErr := s.repo.MarkTransactionFailed(ctx, tx.ID); markErr != nil {
			s.logger.Error("failed to mark transaction failed", "transaction_id", tx.ID, "error", markErr)
		}
		s.publishEvent(ctx, domain.EventChargeFailed, *tx, err.Error())
		return err
	}

	if err := s.repo.SetDarajaRequestID(ctx, tx.ID, push.CheckoutRequestID); err != nil {
		return fmt.Errorf("failed to store daraja request id: %w", err)
	}

	s.logger.Info("stk push initiated for subscription",
		"subscription_id", subID, "transaction_id", tx.ID, "checkout_request_id", push.CheckoutRequestID)
	s.publishEvent(ctx, domain.EventChargeInitiated, *tx, "")
	return nil
}

// ProcessFailedTransactions re-attempts FAILED transactions that are still
// inside the retry budget and past the cool-down window. A retry that
// reaches the gateway produces a new PENDING row with an incremented retry
// count, leaving the original untouched as history; a retry that fails to
// reach the gateway bumps the retry count on the original row instead.
func (s *Service) ProcessFailedTransactions(ctx context.Context) (*RetryResult, error) {
	coolDownCutoff := s.now().Add(-retryCoolDown)

	candidates, err := s.repo.GetRetryableTransactions(ctx, maxRetries, coolDownCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable transactions: %w", err)
	}

	result := &RetryResult{Eligible: len(candidates)}
	for _, c := range candidates {
		if c.ClientPhone == "" || c.PlanAmount <= 0 {
			s.logger.Error("skipping failed transaction, missing client phone or plan amount",
				"transaction_id", c.Transaction.ID)
			result.Skipped++
			continue
		}

		push, err := s.gateway.InitiateStkPush(ctx, c.ClientPhone, c.PlanAmount, derefOr(c.BusinessName, ""))
		if err != nil {
			s.logger.Error("retry stk push failed", "transaction_id", c.Transaction.ID, "error", err)
			if incErr := s.repo.IncrementRetryCount(ctx, c.Transaction.ID); incErr != nil {
				s.logger.Error("failed to increment retry count", "transaction_id", c.Transaction.ID, "error", incErr)
			}
			result.Failed++
			continue
		}

		requestID := push.CheckoutRequestID
		retried, err := s.repo.CreateTransaction(ctx, domain.Transaction{
			SubscriptionID:  c.Transaction.SubscriptionID,
			OwnerID:         c.Transaction.OwnerID,
			AmountKes:       c.PlanAmount,
			Status:          domain.TransactionPending,
			DarajaRequestID: &requestID,
			RetryCount:      c.Transaction.RetryCount + 1,
		})
		if err != nil {
			s.logger.Error("failed to record retry transaction",
				"original_transaction_id", c.Transaction.ID, "checkout_request_id", requestID, "error", err)
			result.Failed++
			continue
		}

		s.logger.Info("retry stk push initiated",
			"original_transaction_id", c.Transaction.ID, "transaction_id", retried.ID,
			"checkout_request_id", requestID)
		s.publishEvent(ctx, domain.EventRetryInitiated, *retried, "")
		result.Retried++
	}

	return result, nil
}

// HandleStkCallback reconciles an asynchronous payment result against the
// transaction that initiated it. It never fails the webhook: malformed
// payloads and unknown request ids are logged and swallowed so the payment
// network does not redeliver indefinitely.
func (s *Service) HandleStkCallback(ctx context.Context, raw []byte) {
	cb, ok := domain.ExtractStkCallback(raw)
	if !ok {
		s.logger.Error("invalid stk callback payload, acknowledging without action")
		return
	}

	tx, err := s.repo.GetTransactionByDarajaRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			s.logger.Error("no transaction for stk callback", "checkout_request_id", cb.CheckoutRequestID)
		} else {
			s.logger.Error("failed to look up transaction for stk callback",
				"checkout_request_id", cb.CheckoutRequestID, "error", err)
		}
		return
	}

	target := domain.TransactionFailed
	var receipt *string
	if cb.Succeeded() {
		target = domain.TransactionSuccess
		if number, ok := cb.ReceiptNumber(); ok {
			receipt = &number
		}
	}

	if !tx.Status.CanTransitionTo(target) {
		s.logger.Info("stk callback for already resolved transaction, ignoring",
			"transaction_id", tx.ID, "status", tx.Status, "checkout_request_id", cb.CheckoutRequestID)
		return
	}

	applied, err := s.repo.ResolvePendingTransaction(ctx, tx.ID, target, receipt)
	if err != nil {
		s.logger.Error("failed to resolve transaction from stk callback",
			"transaction_id", tx.ID, "error", err)
		return
	}
	if !applied {
		// Lost the race to a duplicate delivery; the first one won.
		s.logger.Info("duplicate stk callback ignored", "transaction_id", tx.ID)
		return
	}

	if target == domain.TransactionSuccess {
		s.logger.Info("payment confirmed", "transaction_id", tx.ID, "mpesa_receipt", derefOr(receipt, ""))
		tx.Status = domain.TransactionSuccess
		s.publishEvent(ctx, domain.EventPaymentSucceeded, *tx, "")
	} else {
		s.logger.Info("payment failed", "transaction_id", tx.ID, "result_desc", cb.ResultDesc)
		tx.Status = domain.TransactionFailed
		s.publishEvent(ctx, domain.EventPaymentFailed, *tx, cb.ResultDesc)
	}
}

// InitiatePayment submits an ad-hoc STK push for an owner and records the
// charge attempt in the ledger.
func (s *Service) InitiatePayment(ctx context.Context, ownerID uuid.UUID, phone string, amount int64) (*daraja.StkPushResponse, error) {
	if phone == "" || amount <= 0 {
		return nil, fmt.Errorf("%w: amount and phone number are required", ErrValidation)
	}

	businessName, err := s.repo.GetOwnerBusinessName(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	push, err := s.gateway.InitiateStkPush(ctx, phone, amount, derefOr(businessName, ""))
	if err != nil {
		return nil, err
	}

	requestID := push.CheckoutRequestID
	tx, err := s.repo.CreateTransaction(ctx, domain.Transaction{
		OwnerID:         ownerID,
		AmountKes:       amount,
		Status:          domain.TransactionPending,
		DarajaRequestID: &requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment transaction: %w", err)
	}

	s.publishEvent(ctx, domain.EventChargeInitiated, *tx, "")
	return push, nil
}

// publishEvent publishes a billing lifecycle event, logging publish failures
// without surfacing them; events are best-effort.
func (s *Service) publishEvent(ctx context.Context, routingKey string, tx domain.Transaction, reason string) {
	if s.publisher == nil {
		return
	}
	event := domain.BillingEvent{
		TransactionID:  tx.ID,
		SubscriptionID: tx.SubscriptionID,
		OwnerID:        tx.OwnerID,
		AmountKes:      tx.AmountKes,
		Status:         string(tx.Status),
		Reason:         reason,
		Timestamp:      s.now(),
	}
	if err := s.publisher.Publish(ctx, rabbitmq.BillingExchange, routingKey, event); err != nil {
		s.logger.Warn("failed to publish billing event", "routing_key", routingKey, "error", err)
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
