package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetOwnerBusinessName returns the business name configured on the owning
// account, used as the STK push narrative. A missing owner row yields a nil
// name rather than an error; billing falls back to the default narrative.
func (r *Repository) GetOwnerBusinessName(ctx context.Context, ownerID uuid.UUID) (*string, error) {
	query := `SELECT business_name FROM users WHERE id = $1`

	var businessName *string
	err := r.db.QueryRow(ctx, query, ownerID).Scan(&businessName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return businessName, nil
}
