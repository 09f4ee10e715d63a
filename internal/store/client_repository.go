/**
 * @description
 * Client and service plan queries for the billing-service. Both entities are
 * owner-scoped and immutable once created; the only constraint enforced here
 * beyond foreign keys is the one-phone-number-per-owner rule on clients.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fluxpay/billing-service/internal/domain"
)

// CreateClient inserts a new client, enforcing phone uniqueness per owner.
func (r *Repository) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	query := `
        INSERT INTO clients (id, owner_id, name, phone_number, email)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at
    `
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		client.ID, client.OwnerID, client.Name, client.PhoneNumber, client.Email,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicatePhone
		}
		return nil, err
	}
	return &client, nil
}

// GetClientByID fetches one client scoped to its owner.
func (r *Repository) GetClientByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Client, error) {
	query := `
        SELECT id, owner_id, name, phone_number, email, created_at, updated_at
        FROM clients
        WHERE id = $1 AND owner_id = $2
    `
	var client domain.Client
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&client.ID, &client.OwnerID, &client.Name, &client.PhoneNumber,
		&client.Email, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// ListClientsByOwner returns all clients belonging to an owner.
func (r *Repository) ListClientsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error) {
	query := `
        SELECT id, owner_id, name, phone_number, email, created_at, updated_at
        FROM clients
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var client domain.Client
		if err := rows.Scan(
			&client.ID, &client.OwnerID, &client.Name, &client.PhoneNumber,
			&client.Email, &client.CreatedAt, &client.UpdatedAt,
		); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// CreatePlan inserts a new service plan and returns the stored row.
func (r *Repository) CreatePlan(ctx context.Context, plan domain.ServicePlan) (*domain.ServicePlan, error) {
	query := `
        INSERT INTO service_plans (id, owner_id, name, amount_kes, frequency, billing_day)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		plan.ID, plan.OwnerID, plan.Name, plan.AmountKes, plan.Frequency, plan.BillingDay,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetPlanByID fetches one service plan scoped to its owner.
func (r *Repository) GetPlanByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.ServicePlan, error) {
	query := `
        SELECT id, owner_id, name, amount_kes, frequency, billing_day, created_at, updated_at
        FROM service_plans
        WHERE id = $1 AND owner_id = $2
    `
	var plan domain.ServicePlan
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&plan.ID, &plan.OwnerID, &plan.Name, &plan.AmountKes,
		&plan.Frequency, &plan.BillingDay, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// ListPlansByOwner returns all service plans belonging to an owner.
func (r *Repository) ListPlansByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ServicePlan, error) {
	query := `
        SELECT id, owner_id, name, amount_kes, frequency, billing_day, created_at, updated_at
        FROM service_plans
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.ServicePlan
	for rows.Next() {
		var plan domain.ServicePlan
		if err := rows.Scan(
			&plan.ID, &plan.OwnerID, &plan.Name, &plan.AmountKes,
			&plan.Frequency, &plan.BillingDay, &plan.CreatedAt, &plan.UpdatedAt,
		); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}
