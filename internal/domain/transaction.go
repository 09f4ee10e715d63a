/**
 * @description
 * This file defines the transaction ledger model for the billing-service.
 * A Transaction is the authoritative record of one M-Pesa charge attempt:
 * who was charged, for how much, the Daraja request that tracks it, and
 * where it sits in the PENDING -> SUCCESS / PENDING -> FAILED state machine.
 *
 * @notes
 * - Amounts are stored as `int64` in whole Kenyan shillings. The Daraja STK
 *   push API only accepts whole-shilling amounts, so there is no minor unit.
 * - `DarajaRequestID` (the CheckoutRequestID assigned by Safaricom) is the
 *   sole correlation key between a charge attempt and its asynchronous
 *   callback. It is unique across all transactions.
 * - `SubscriptionID` is nil for ad-hoc charges initiated interactively via
 *   the payments API; scheduled billing always sets it.
 * - Status transitions are centralized in CanTransitionTo so that illegal
 *   moves (e.g. SUCCESS -> FAILED) are rejected in one place instead of
 *   relying on every caller to assign the field correctly.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a charge attempt.
type TransactionStatus string

const (
	// TransactionPending means a charge was initiated and we are waiting for
	// the payment network's callback.
	TransactionPending TransactionStatus = "PENDING"
	// TransactionSuccess is terminal: the payer authorized the charge.
	TransactionSuccess TransactionStatus = "SUCCESS"
	// TransactionFailed is non-terminal: the retry processor may attempt the
	// charge again while the retry budget allows.
	TransactionFailed TransactionStatus = "FAILED"
)

// CanTransitionTo reports whether moving from s to next is a legal transition.
// Only the callback reconciler resolves PENDING; FAILED and SUCCESS never
// change state on the same row (a retry creates a new row instead).
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionPending && (next == TransactionSuccess || next == TransactionFailed)
}

// TransitionTo returns next if the move is legal, or an error if it is not.
func (s TransactionStatus) TransitionTo(next TransactionStatus) (TransactionStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("illegal transaction status transition %s -> %s", s, next)
	}
	return next, nil
}

// RetryCandidate is the retry processor's working view of one FAILED
// transaction with the subscription, client and plan joined in.
type RetryCandidate struct {
	Transaction  Transaction
	ClientPhone  string
	PlanAmount   int64
	BusinessName *string
}

// Transaction represents one charge attempt against a subscription.
// This struct maps directly to the `transactions` table.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	SubscriptionID  *uuid.UUID        `json:"subscription_id,omitempty"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	AmountKes       int64             `json:"amount_kes"` // whole shillings
	Status          TransactionStatus `json:"status"`
	DarajaRequestID *string           `json:"daraja_request_id,omitempty"`
	MpesaReceiptNo  *string           `json:"mpesa_receipt_no,omitempty"`
	RetryCount      int               `json:"retry_count"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
