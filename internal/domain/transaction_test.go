package domain

import "testing"

func TestTransactionStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    TransactionStatus
		to      TransactionStatus
		allowed bool
	}{
		{TransactionPending, TransactionSuccess, true},
		{TransactionPending, TransactionFailed, true},
		{TransactionPending, TransactionPending, false},
		{TransactionSuccess, TransactionFailed, false},
		{TransactionSuccess, TransactionPending, false},
		{TransactionFailed, TransactionSuccess, false},
		{TransactionFailed, TransactionPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTransactionStatusTransitionTo(t *testing.T) {
	next, err := TransactionPending.TransitionTo(TransactionSuccess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != TransactionSuccess {
		t.Fatalf("expected SUCCESS, got %s", next)
	}

	if _, err := TransactionSuccess.TransitionTo(TransactionFailed); err == nil {
		t.Fatal("expected resolved statuses to reject further transitions")
	}
}

func TestValidMpesaPhone(t *testing.T) {
	valid := []string{"254712345678", "254798765432"}
	for _, phone := range valid {
		if !ValidMpesaPhone(phone) {
			t.Errorf("expected %q to be valid", phone)
		}
	}

	invalid := []string{"", "0712345678", "+254712345678", "25471234567", "2547123456789", "254812345678"}
	for _, phone := range invalid {
		if ValidMpesaPhone(phone) {
			t.Errorf("expected %q to be invalid", phone)
		}
	}
}
