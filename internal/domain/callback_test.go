package domain

import "testing"

func TestExtractStkCallback_EnvelopedShape(t *testing.T) {
	raw := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok"}}}`)

	cb, ok := ExtractStkCallback(raw)
	if !ok {
		t.Fatal("expected the enveloped shape to be accepted")
	}
	if cb.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected checkout request id: %q", cb.CheckoutRequestID)
	}
	if !cb.Succeeded() {
		t.Fatal("expected ResultCode 0 to report success")
	}
}

func TestExtractStkCallback_StkCallbackKeyedShape(t *testing.T) {
	raw := []byte(`{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}`)

	cb, ok := ExtractStkCallback(raw)
	if !ok {
		t.Fatal("expected the stkCallback-keyed shape to be accepted")
	}
	if cb.CheckoutRequestID != "ws_CO_2" {
		t.Fatalf("unexpected checkout request id: %q", cb.CheckoutRequestID)
	}
	if cb.Succeeded() {
		t.Fatal("expected ResultCode 1032 to report failure")
	}
}

func TestExtractStkCallback_BareShape(t *testing.T) {
	raw := []byte(`{"CheckoutRequestID":"ws_CO_3","ResultCode":0,"ResultDesc":"ok"}`)

	cb, ok := ExtractStkCallback(raw)
	if !ok {
		t.Fatal("expected the bare shape to be accepted")
	}
	if cb.CheckoutRequestID != "ws_CO_3" {
		t.Fatalf("unexpected checkout request id: %q", cb.CheckoutRequestID)
	}
}

func TestExtractStkCallback_RejectsUnrecognizedPayloads(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"json without a result", `{"unexpected":"shape"}`},
		{"bare shape without a request id", `{"ResultCode":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := ExtractStkCallback([]byte(tc.raw)); ok {
				t.Fatalf("expected payload to be rejected: %s", tc.raw)
			}
		})
	}
}

func TestReceiptNumber(t *testing.T) {
	cb := &StkCallback{
		CallbackMetadata: &CallbackMetadata{
			Item: []CallbackMetadataItem{
				{Name: "Amount", Value: float64(1500)},
				{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
				{Name: "PhoneNumber", Value: float64(254712345678)},
			},
		},
	}

	receipt, ok := cb.ReceiptNumber()
	if !ok || receipt != "NLJ7RT61SV" {
		t.Fatalf("expected receipt NLJ7RT61SV, got %q (ok=%v)", receipt, ok)
	}
}

func TestReceiptNumber_MissingMetadata(t *testing.T) {
	cb := &StkCallback{}
	if _, ok := cb.ReceiptNumber(); ok {
		t.Fatal("expected no receipt without metadata")
	}

	cb.CallbackMetadata = &CallbackMetadata{
		Item: []CallbackMetadataItem{{Name: "MpesaReceiptNumber", Value: float64(42)}},
	}
	if _, ok := cb.ReceiptNumber(); ok {
		t.Fatal("expected a non-string receipt value to be ignored")
	}
}
