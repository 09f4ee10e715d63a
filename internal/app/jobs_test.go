package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type runnerStub struct {
	scans   int
	retries int
	err     error
}

func (r *runnerStub) ProcessDuePayments(ctx context.Context) (*ScanResult, error) {
	r.scans++
	if r.err != nil {
		return nil, r.err
	}
	return &ScanResult{}, nil
}

func (r *runnerStub) ProcessFailedTransactions(ctx context.Context) (*RetryResult, error) {
	r.retries++
	if r.err != nil {
		return nil, r.err
	}
	return &RetryResult{}, nil
}

type lockStub struct {
	acquired   bool
	acquireErr error
	releases   []string
}

func (l *lockStub) Acquire(ctx context.Context, name string) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	return l.acquired, nil
}

func (l *lockStub) Release(ctx context.Context, name string) error {
	l.releases = append(l.releases, name)
	return nil
}

func newTestJobs(runner *runnerStub, lock *lockStub) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(runner, lock, logger)
}

func TestRunDuePaymentScan_HeldLockSkipsTick(t *testing.T) {
	runner := &runnerStub{}
	jobs := newTestJobs(runner, &lockStub{acquired: false})

	jobs.RunDuePaymentScan()

	if runner.scans != 0 {
		t.Fatal("expected the scan to be skipped while another instance holds the lock")
	}
}

func TestRunDuePaymentScan_RunsAndReleasesLock(t *testing.T) {
	runner := &runnerStub{}
	lock := &lockStub{acquired: true}
	jobs := newTestJobs(runner, lock)

	jobs.RunDuePaymentScan()

	if runner.scans != 1 {
		t.Fatalf("expected 1 scan, got %d", runner.scans)
	}
	if len(lock.releases) != 1 {
		t.Fatal("expected the lock to be released after the run")
	}
}

func TestRunDuePaymentScan_LockBackendErrorDoesNotBlockBilling(t *testing.T) {
	runner := &runnerStub{}
	jobs := newTestJobs(runner, &lockStub{acquireErr: errors.New("redis unreachable")})

	jobs.RunDuePaymentScan()

	if runner.scans != 1 {
		t.Fatal("expected the scan to run when the lock backend is down")
	}
}

func TestRunRetryPass_ReleasesLockOnFailure(t *testing.T) {
	runner := &runnerStub{err: errors.New("database unavailable")}
	lock := &lockStub{acquired: true}
	jobs := newTestJobs(runner, lock)

	jobs.RunRetryPass()

	if runner.retries != 1 {
		t.Fatalf("expected 1 retry pass, got %d", runner.retries)
	}
	if len(lock.releases) != 1 {
		t.Fatal("expected the lock to be released even when the pass failed")
	}
}
