/**
 * @description
 * This file defines the shared pieces of the data access layer for the
 * billing-service: the Repository type every query method hangs off and the
 * sentinel errors callers match with errors.Is.
 */

package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrClientNotFound       = errors.New("client not found")
	ErrPlanNotFound         = errors.New("service plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicatePhone       = errors.New("client phone number already registered for this owner")
)

// Repository handles database operations for the billing service.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}
