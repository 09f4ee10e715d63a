/**
 * @description
 * Pure billing-cycle date arithmetic for the billing-service. Given the date
 * a subscription was last due and its plan's cadence, NextBillingDate
 * computes the following due date. The scanner calls this after every charge
 * attempt, and subscription creation uses it to seed the first due date.
 */

package app

import (
	"time"

	"github.com/fluxpay/billing-service/internal/domain"
)

// startOfDay truncates t to midnight UTC. All billing dates are stored at
// midnight in a single reference timezone so date comparisons never drift on
// time-of-day.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isoWeekday returns t's weekday in ISO numbering, 1=Monday..7=Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NextBillingDate computes the next due date strictly after reference for
// the given cadence. billingDay is a day-of-month for monthly/annual plans
// and an ISO weekday (1=Monday..7=Sunday) for weekly plans; daily plans
// ignore it. A candidate equal to reference counts as already due and rolls
// a full cycle forward, so the result always strictly advances. Day-of-month
// values past the end of a short month overflow into the following month,
// which is the behavior of the underlying date arithmetic.
func NextBillingDate(reference time.Time, frequency domain.BillingFrequency, billingDay int) time.Time {
	reference = reference.UTC()

	switch frequency {
	case domain.FrequencyDaily:
		return startOfDay(reference.AddDate(0, 0, 1))

	case domain.FrequencyWeekly:
		next := startOfDay(reference).AddDate(0, 0, billingDay-isoWeekday(reference))
		if !next.After(reference) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case domain.FrequencyMonthly:
		next := time.Date(reference.Year(), reference.Month(), billingDay, 0, 0, 0, 0, time.UTC)
		if !next.After(reference) {
			next = time.Date(reference.Year(), reference.Month()+1, billingDay, 0, 0, 0, 0, time.UTC)
		}
		return next

	case domain.FrequencyAnnually:
		next := time.Date(reference.Year()+1, reference.Month(), billingDay, 0, 0, 0, 0, time.UTC)
		if !next.After(reference) {
			next = time.Date(next.Year()+1, next.Month(), billingDay, 0, 0, 0, 0, time.UTC)
		}
		return next
	}

	// Unknown frequency: advance a day so a misconfigured plan can never be
	// billed twice on the same tick.
	return startOfDay(reference.AddDate(0, 0, 1))
}
