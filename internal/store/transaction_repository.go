/**
 * @description
 * Transaction ledger queries for the billing-service. The ledger is append
 * mostly: rows are inserted by the scanner and the retry processor, and the
 * only in-place mutations are attaching the Daraja request id, the
 * status-guarded resolution applied by the callback reconciler, and the
 * retry-count bump when a retry attempt itself fails to reach the gateway.
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

// CreateTransaction inserts a new charge-attempt row and returns it.
func (r *Repository) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	query := `
        INSERT INTO transactions (id, subscription_id, owner_id, amount_kes, status, daraja_request_id, retry_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		tx.ID, tx.SubscriptionID, tx.OwnerID, tx.AmountKes, tx.Status, tx.DarajaRequestID, tx.RetryCount,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// SetDarajaRequestID attaches the gateway's CheckoutRequestID to a freshly
// created transaction once the STK push call returns.
func (r *Repository) SetDarajaRequestID(ctx context.Context, txID uuid.UUID, requestID string) error {
	query := `
        UPDATE transactions
        SET daraja_request_id = $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, requestID, txID)
	return err
}

// MarkTransactionFailed sets a transaction FAILED. Used by the scanner when
// the gateway call itself errors, so a row is never left PENDING without a
// request id and no callback on the way.
func (r *Repository) MarkTransactionFailed(ctx context.Context, txID uuid.UUID) error {
	query := `
        UPDATE transactions
        SET status = $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, domain.TransactionFailed, txID)
	return err
}

// GetTransactionByDarajaRequestID looks a transaction up by its correlation key.
func (r *Repository) GetTransactionByDarajaRequestID(ctx context.Context, requestID string) (*domain.Transaction, error) {
	query := `
        SELECT id, subscription_id, owner_id, amount_kes, status, daraja_request_id, mpesa_receipt_no, retry_count, created_at, updated_at
        FROM transactions
        WHERE daraja_request_id = $1
    `
	var tx domain.Transaction
	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&tx.ID, &tx.SubscriptionID, &tx.OwnerID, &tx.AmountKes, &tx.Status,
		&tx.DarajaRequestID, &tx.MpesaReceiptNo, &tx.RetryCount, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// ResolvePendingTransaction applies the callback outcome to a PENDING
// transaction. The status guard in the WHERE clause makes a duplicate
// callback delivery a no-op; the returned bool reports whether this call
// performed the transition.
func (r *Repository) ResolvePendingTransaction(ctx context.Context, txID uuid.UUID, status domain.TransactionStatus, receiptNo *string) (bool, error) {
	query := `
        UPDATE transactions
        SET status = $1,
            mpesa_receipt_no = COALESCE($2, mpesa_receipt_no),
            updated_at = NOW()
        WHERE id = $3 AND status = $4
    `
	tag, err := r.db.Exec(ctx, query, status, receiptNo, txID, domain.TransactionPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetRetryableTransactions fetches FAILED transactions still inside the
// retry budget whose cool-down window has elapsed, with the subscription's
// client, plan and owner joined in.
func (r *Repository) GetRetryableTransactions(ctx context.Context, maxRetries int, updatedBefore time.Time) ([]domain.RetryCandidate, error) {
	query := `
        SELECT t.id, t.subscription_id, t.owner_id, t.amount_kes, t.status, t.daraja_request_id, t.retry_count, t.created_at, t.updated_at,
               c.phone_number, p.amount_kes, u.business_name
        FROM transactions t
        JOIN subscriptions s ON s.id = t.subscription_id
        JOIN clients c ON c.id = s.client_id
        JOIN service_plans p ON p.id = s.plan_id
        LEFT JOIN users u ON u.id = t.owner_id
        WHERE t.status = $1
          AND t.retry_count < $2
          AND t.updated_at <= $3
    `
	rows, err := r.db.Query(ctx, query, domain.TransactionFailed, maxRetries, updatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.RetryCandidate
	for rows.Next() {
		var c domain.RetryCandidate
		if err := rows.Scan(
			&c.Transaction.ID, &c.Transaction.SubscriptionID, &c.Transaction.OwnerID,
			&c.Transaction.AmountKes, &c.Transaction.Status, &c.Transaction.DarajaRequestID,
			&c.Transaction.RetryCount, &c.Transaction.CreatedAt, &c.Transaction.UpdatedAt,
			&c.ClientPhone, &c.PlanAmount, &c.BusinessName,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// IncrementRetryCount bumps the retry count on a FAILED transaction in
// place. This is the only path that mutates retry_count on an existing row.
func (r *Repository) IncrementRetryCount(ctx context.Context, txID uuid.UUID) error {
	query := `
        UPDATE transactions
        SET retry_count = retry_count + 1, updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, txID)
	return err
}

// ListTransactionsByOwner returns an owner's charge attempts, newest first.
func (r *Repository) ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
        SELECT id, subscription_id, owner_id, amount_kes, status, daraja_request_id, mpesa_receipt_no, retry_count, created_at, updated_at
        FROM transactions
        WHERE owner_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.SubscriptionID, &tx.OwnerID, &tx.AmountKes, &tx.Status,
			&tx.DarajaRequestID, &tx.MpesaReceiptNo, &tx.RetryCount, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
