/**
 * @description
 * This file defines the subscription and service plan models for the
 * billing-service. A Subscription links one Client to one ServicePlan under
 * an owning merchant account and carries the next billing date the
 * due-payment scanner keys off.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionPendingActivation SubscriptionStatus = "PENDING_ACTIVATION"
	SubscriptionActive            SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled         SubscriptionStatus = "CANCELLED"
	SubscriptionExpired           SubscriptionStatus = "EXPIRED"
)

// BillingFrequency is the cadence on which a plan bills.
type BillingFrequency string

const (
	FrequencyDaily    BillingFrequency = "daily"
	FrequencyWeekly   BillingFrequency = "weekly"
	FrequencyMonthly  BillingFrequency = "monthly"
	FrequencyAnnually BillingFrequency = "annually"
)

// Valid reports whether f is a known billing frequency.
func (f BillingFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyAnnually:
		return true
	}
	return false
}

// ServicePlan is a billing template owned by a merchant account.
// BillingDay is a day-of-month (1-31) for monthly/annual plans, an ISO
// weekday (1=Monday..7=Sunday) for weekly plans, and is ignored for daily.
type ServicePlan struct {
	ID         uuid.UUID        `json:"id"`
	OwnerID    uuid.UUID        `json:"owner_id"`
	Name       string           `json:"name"`
	AmountKes  int64            `json:"amount_kes"` // whole shillings
	Frequency  BillingFrequency `json:"frequency"`
	BillingDay int              `json:"billing_day"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Subscription links a client to a service plan under one owner.
type Subscription struct {
	ID              uuid.UUID          `json:"id"`
	ClientID        uuid.UUID          `json:"client_id"`
	PlanID          uuid.UUID          `json:"plan_id"`
	OwnerID         uuid.UUID          `json:"owner_id"`
	Status          SubscriptionStatus `json:"status"`
	StartDate       time.Time          `json:"start_date"`
	NextBillingDate time.Time          `json:"next_billing_date"`
	Notes           *string            `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// DueSubscription is the scanner's working view of one due subscription with
// its client and plan joined in. Owner business name is carried for the STK
// push narrative.
type DueSubscription struct {
	Subscription Subscription
	Client       Client
	Plan         ServicePlan
	BusinessName *string
}
