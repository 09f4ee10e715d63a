package app

import (
	"context"
	"testing"
	"time"
)

func TestRedisJobLockWithoutRedisAlwaysAcquires(t *testing.T) {
	lock := NewRedisJobLock(nil, "", 0)

	acquired, err := lock.Acquire(context.Background(), "due_payment_scan")
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !acquired {
		t.Fatal("expected a nil-client lock to always acquire")
	}
	if err := lock.Release(context.Background(), "due_payment_scan"); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
}

func TestRedisJobLockDefaults(t *testing.T) {
	lock := NewRedisJobLock(nil, "", 0)

	if lock.prefix != "fluxpay:job_lock" {
		t.Errorf("unexpected default prefix %q", lock.prefix)
	}
	if lock.ttl != 10*time.Minute {
		t.Errorf("unexpected default ttl %v", lock.ttl)
	}
	if got := lock.key("retry_pass"); got != "fluxpay:job_lock:retry_pass" {
		t.Errorf("unexpected lock key %q", got)
	}
}
