/**
 * @description
 * Event payloads published to RabbitMQ as billing attempts move through
 * their lifecycle. Downstream consumers (notifications, reporting) receive
 * these on the billing events exchange.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Billing event routing keys.
const (
	EventChargeInitiated  = "billing.charge.initiated"
	EventChargeFailed     = "billing.charge.failed"
	EventPaymentSucceeded = "billing.payment.succeeded"
	EventPaymentFailed    = "billing.payment.failed"
	EventRetryInitiated   = "billing.retry.initiated"
)

// BillingEvent is the payload published for every billing lifecycle event.
type BillingEvent struct {
	TransactionID  uuid.UUID  `json:"transaction_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	AmountKes      int64      `json:"amount_kes"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}
