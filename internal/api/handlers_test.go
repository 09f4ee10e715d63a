package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fluxpay/billing-service/internal/app"
	"github.com/fluxpay/billing-service/internal/domain"
	"github.com/fluxpay/billing-service/internal/store"
	"github.com/fluxpay/billing-service/pkg/daraja"
)

const testJWTSecret = "test-secret"

// apiRepoStub embeds the service's repository interface so each test only
// overrides the methods its route actually hits.
type apiRepoStub struct {
	app.Repository

	transaction *domain.Transaction
	resolved    int
}

func (s *apiRepoStub) GetTransactionByDarajaRequestID(ctx context.Context, requestID string) (*domain.Transaction, error) {
	if s.transaction == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.transaction, nil
}

func (s *apiRepoStub) ResolvePendingTransaction(ctx context.Context, txID uuid.UUID, status domain.TransactionStatus, receiptNo *string) (bool, error) {
	s.resolved++
	return true, nil
}

func (s *apiRepoStub) GetOwnerBusinessName(ctx context.Context, ownerID uuid.UUID) (*string, error) {
	return nil, nil
}

func (s *apiRepoStub) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	tx.ID = uuid.New()
	return &tx, nil
}

type apiGatewayStub struct{}

func (apiGatewayStub) InitiateStkPush(ctx context.Context, phone string, amount int64, businessName string) (*daraja.StkPushResponse, error) {
	return &daraja.StkPushResponse{CheckoutRequestID: "ws_CO_test"}, nil
}

func newTestRouter(repo *apiRepoStub) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := app.NewService(repo, apiGatewayStub{}, nil, logger)
	return NewRouter(NewHandler(service), testJWTSecret)
}

func bearerToken(t *testing.T, ownerID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return "Bearer " + signed
}

func TestStkCallbackAlwaysAcknowledges(t *testing.T) {
	payloads := []string{
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_unknown","ResultCode":0}}}`,
		`not even json`,
		``,
	}
	for _, payload := range payloads {
		router := newTestRouter(&apiRepoStub{})

		req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewBufferString(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("payload %q: expected 200, got %d", payload, rec.Code)
		}
		var ack map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
			t.Fatalf("payload %q: invalid ack body: %v", payload, err)
		}
		if ack["ResultCode"] != float64(0) {
			t.Fatalf("payload %q: expected ResultCode 0 ack, got %v", payload, ack)
		}
	}
}

func TestStkCallbackResolvesPendingTransaction(t *testing.T) {
	repo := &apiRepoStub{
		transaction: &domain.Transaction{ID: uuid.New(), Status: domain.TransactionPending},
	}
	router := newTestRouter(repo)

	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if repo.resolved != 1 {
		t.Fatalf("expected the transaction to be resolved once, got %d", repo.resolved)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(&apiRepoStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a garbage token, got %d", rec.Code)
	}
}

func TestInitiatePaymentValidation(t *testing.T) {
	router := newTestRouter(&apiRepoStub{})
	token := bearerToken(t, uuid.New())

	body := `{"phone":"","amount":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/initiate", bytes.NewBufferString(body))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing phone and amount, got %d", rec.Code)
	}
}

func TestInitiatePaymentAcceptsLegacyFieldName(t *testing.T) {
	router := newTestRouter(&apiRepoStub{})
	token := bearerToken(t, uuid.New())

	body := `{"phone_number":"254712345678","amount":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/initiate", bytes.NewBufferString(body))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data daraja.StkPushResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Data.CheckoutRequestID != "ws_CO_test" {
		t.Fatalf("expected the push response in the body, got %s", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&apiRepoStub{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", rec.Code)
	}
}
