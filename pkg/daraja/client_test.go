package daraja

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFormatPhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{" 0712345678 ", "254712345678"},
		{"123456", "123456"},
	}
	for _, tc := range cases {
		if got := FormatPhoneNumber(tc.in); got != tc.want {
			t.Errorf("FormatPhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func newTestServer(t *testing.T, authHits, pushHits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/oauth/v1/generate"):
			*authHits++
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
				t.Errorf("expected basic auth on token request, got %q", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "test-token",
				"expires_in":   "3599",
			})
		case r.URL.Path == "/mpesa/stkpush/v1/processrequest":
			*pushHits++
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("expected bearer token on push request, got %q", got)
			}
			var req stkPushRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode push request: %v", err)
			}
			if req.PhoneNumber != "254712345678" {
				t.Errorf("expected normalized phone, got %q", req.PhoneNumber)
			}
			if req.TransactionType != "CustomerPayBillOnline" {
				t.Errorf("unexpected transaction type %q", req.TransactionType)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResponseCode":      "0",
			})
		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestInitiateStkPush(t *testing.T) {
	var authHits, pushHits int
	server := newTestServer(t, &authHits, &pushHits)
	defer server.Close()

	client := NewClient(Config{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		PassKey:        "passkey",
		CallbackURL:    "https://example.com/api/payments/callback",
	})

	resp, err := client.InitiateStkPush(context.Background(), "0712345678", 1500, "Acme Gym")
	if err != nil {
		t.Fatalf("InitiateStkPush returned error: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("unexpected checkout request id: %q", resp.CheckoutRequestID)
	}
	if authHits != 1 || pushHits != 1 {
		t.Fatalf("expected 1 auth and 1 push request, got %d and %d", authHits, pushHits)
	}
}

func TestAuthenticateCachesToken(t *testing.T) {
	var authHits, pushHits int
	server := newTestServer(t, &authHits, &pushHits)
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, ConsumerKey: "key", ConsumerSecret: "secret"})

	for i := 0; i < 3; i++ {
		token, err := client.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if token != "test-token" {
			t.Fatalf("unexpected token %q", token)
		}
	}
	if authHits != 1 {
		t.Fatalf("expected the token to be fetched once, got %d fetches", authHits)
	}
}

func TestAuthenticateRefreshesExpiredToken(t *testing.T) {
	var authHits, pushHits int
	server := newTestServer(t, &authHits, &pushHits)
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, ConsumerKey: "key", ConsumerSecret: "secret"})
	current := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return current }

	if _, err := client.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	// Past the expiry the cached token must not be reused.
	current = current.Add(2 * time.Hour)
	if _, err := client.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if authHits != 2 {
		t.Fatalf("expected a second token fetch after expiry, got %d fetches", authHits)
	}
}

func TestInitiateStkPushRejectsMissingRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth/v1/generate") {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token", "expires_in": "3599"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "1"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, ConsumerKey: "key", ConsumerSecret: "secret"})

	if _, err := client.InitiateStkPush(context.Background(), "0712345678", 100, ""); err == nil {
		t.Fatal("expected an error when the response lacks a CheckoutRequestID")
	}
}
