/**
 * @description
 * Scheduled job wrappers for the billing-service. Each job takes the run
 * lock for its name, runs the corresponding batch in the billing engine, and
 * logs a summary. Errors never propagate past a job; the scheduler's next
 * tick tries again.
 */

package app

import (
	"context"
	"log/slog"
)

// Job names, used as run-lock keys.
const (
	jobDuePaymentScan = "due_payment_scan"
	jobRetryPass      = "retry_pass"
)

// BillingRunner defines the batch operations the jobs drive.
type BillingRunner interface {
	ProcessDuePayments(ctx context.Context) (*ScanResult, error)
	ProcessFailedTransactions(ctx context.Context) (*RetryResult, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	billing BillingRunner
	lock    JobLock
	logger  *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(billing BillingRunner, lock JobLock, logger *slog.Logger) *Jobs {
	return &Jobs{billing: billing, lock: lock, logger: logger}
}

// RunDuePaymentScan executes one due-payment scan under the run lock.
func (j *Jobs) RunDuePaymentScan() {
	j.logger.Info("starting due payment scan")
	ctx := context.Background()

	if !j.acquire(ctx, jobDuePaymentScan) {
		return
	}
	defer j.release(ctx, jobDuePaymentScan)

	result, err := j.billing.ProcessDuePayments(ctx)
	if err != nil {
		j.logger.Error("due payment scan failed", "error", err)
		return
	}

	j.logger.Info("due payment scan finished",
		"due", result.Due, "charged", result.Charged, "failed", result.Failed, "skipped", result.Skipped)
}

// RunRetryPass executes one retry pass under the run lock.
func (j *Jobs) RunRetryPass() {
	j.logger.Info("starting retry pass")
	ctx := context.Background()

	if !j.acquire(ctx, jobRetryPass) {
		return
	}
	defer j.release(ctx, jobRetryPass)

	result, err := j.billing.ProcessFailedTransactions(ctx)
	if err != nil {
		j.logger.Error("retry pass failed", "error", err)
		return
	}

	j.logger.Info("retry pass finished",
		"eligible", result.Eligible, "retried", result.Retried, "failed", result.Failed, "skipped", result.Skipped)
}

func (j *Jobs) acquire(ctx context.Context, jobName string) bool {
	acquired, err := j.lock.Acquire(ctx, jobName)
	if err != nil {
		// A broken lock backend must not silently stop billing; run anyway
		// and rely on the warning for visibility.
		j.logger.Warn("job lock acquire failed, proceeding without lock", "job", jobName, "error", err)
		return true
	}
	if !acquired {
		j.logger.Info("job already running elsewhere, skipping tick", "job", jobName)
		return false
	}
	return true
}

func (j *Jobs) release(ctx context.Context, jobName string) {
	if err := j.lock.Release(ctx, jobName); err != nil {
		j.logger.Warn("job lock release failed", "job", jobName, "error", err)
	}
}
