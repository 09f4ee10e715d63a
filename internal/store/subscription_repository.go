/**
 * @description
 * Subscription queries for the billing-service. The due-subscription scan is
 * the hot path: it joins clients, service plans and the owner row in one
 * query so the scanner never makes per-row lookups.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fluxpay/billing-service/internal/domain"
)

// CreateSubscription inserts a new subscription and returns the stored row.
func (r *Repository) CreateSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	query := `
        INSERT INTO subscriptions (id, client_id, plan_id, owner_id, status, start_date, next_billing_date, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at
    `
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		sub.ID, sub.ClientID, sub.PlanID, sub.OwnerID, sub.Status,
		sub.StartDate, sub.NextBillingDate, sub.Notes,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscriptionByID fetches one subscription scoped to its owner.
func (r *Repository) GetSubscriptionByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Subscription, error) {
	query := `
        SELECT id, client_id, plan_id, owner_id, status, start_date, next_billing_date, notes, created_at, updated_at
        FROM subscriptions
        WHERE id = $1 AND owner_id = $2
    `
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&sub.ID, &sub.ClientID, &sub.PlanID, &sub.OwnerID, &sub.Status,
		&sub.StartDate, &sub.NextBillingDate, &sub.Notes, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptionsByOwner returns all subscriptions belonging to an owner.
func (r *Repository) ListSubscriptionsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Subscription, error) {
	query := `
        SELECT id, client_id, plan_id, owner_id, status, start_date, next_billing_date, notes, created_at, updated_at
        FROM subscriptions
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(
			&sub.ID, &sub.ClientID, &sub.PlanID, &sub.OwnerID, &sub.Status,
			&sub.StartDate, &sub.NextBillingDate, &sub.Notes, &sub.CreatedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CancelSubscription marks a subscription cancelled, scoped to its owner.
func (r *Repository) CancelSubscription(ctx context.Context, id, ownerID uuid.UUID) (*domain.Subscription, error) {
	query := `
        UPDATE subscriptions
        SET status = $1, updated_at = NOW()
        WHERE id = $2 AND owner_id = $3
    `
	tag, err := r.db.Exec(ctx, query, domain.SubscriptionCancelled, id, ownerID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSubscriptionNotFound
	}
	return r.GetSubscriptionByID(ctx, id, ownerID)
}

// GetDueSubscriptions fetches all ACTIVE subscriptions whose next billing
// date is on or before the cutoff, with their client, plan and owner
// business name joined in.
func (r *Repository) GetDueSubscriptions(ctx context.Context, cutoff time.Time) ([]domain.DueSubscription, error) {
	query := `
        SELECT s.id, s.client_id, s.plan_id, s.owner_id, s.status, s.start_date, s.next_billing_date,
               c.id, c.owner_id, c.name, c.phone_number, c.email,
               p.id, p.owner_id, p.name, p.amount_kes, p.frequency, p.billing_day,
               u.business_name
        FROM subscriptions s
        JOIN clients c ON c.id = s.client_id
        JOIN service_plans p ON p.id = s.plan_id
        LEFT JOIN users u ON u.id = s.owner_id
        WHERE s.status = $1
          AND s.next_billing_date <= $2
    `
	rows, err := r.db.Query(ctx, query, domain.SubscriptionActive, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.DueSubscription
	for rows.Next() {
		var d domain.DueSubscription
		if err := rows.Scan(
			&d.Subscription.ID, &d.Subscription.ClientID, &d.Subscription.PlanID,
			&d.Subscription.OwnerID, &d.Subscription.Status, &d.Subscription.StartDate,
			&d.Subscription.NextBillingDate,
			&d.Client.ID, &d.Client.OwnerID, &d.Client.Name, &d.Client.PhoneNumber, &d.Client.Email,
			&d.Plan.ID, &d.Plan.OwnerID, &d.Plan.Name, &d.Plan.AmountKes, &d.Plan.Frequency, &d.Plan.BillingDay,
			&d.BusinessName,
		); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// UpdateNextBillingDate advances a subscription to its next cycle.
func (r *Repository) UpdateNextBillingDate(ctx context.Context, subID uuid.UUID, next time.Time) error {
	query := `
        UPDATE subscriptions
        SET next_billing_date = $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, next, subID)
	return err
}
