/**
 * @description
 * This package provides a client for the Safaricom Daraja (M-Pesa) API.
 * It encapsulates OAuth token acquisition and STK push charge initiation.
 *
 * Key features:
 * - Bearer token cached with its expiry and refreshed under a mutex, so
 *   concurrent callers never race to fetch duplicate tokens.
 * - Phone numbers normalized to the 2547XXXXXXXX form Daraja expects.
 * - All outbound calls run through a circuit breaker so a degraded gateway
 *   fails fast instead of stalling batch jobs on timeouts.
 *
 * @dependencies
 * - github.com/sony/gobreaker/v2: Circuit breaker around Daraja HTTP calls.
 */
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config carries the Daraja credentials and endpoints.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
}

// StkPushResponse is Daraja's synchronous answer to a charge request.
// CheckoutRequestID is the external request id later echoed in the callback.
type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// Client is a client for the Daraja API.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new Daraja API client.
func NewClient(cfg Config) *Client {
	settings := gobreaker.Settings{
		Name:    "daraja",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		now:     time.Now,
	}
}

// FormatPhoneNumber normalizes a Kenyan phone number to the 254... form the
// Daraja API expects. Unrecognized formats pass through unchanged and are
// rejected by the gateway.
func FormatPhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(phone, "07"):
		return "254" + phone[1:]
	case strings.HasPrefix(phone, "+254"):
		return phone[1:]
	default:
		return phone
	}
}

// Authenticate returns a valid bearer token, fetching a fresh one from the
// OAuth endpoint only when the cached token has expired. The mutex makes the
// refresh single-flight: concurrent callers block and reuse the new token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.config.BaseURL)
	credentials := base64.StdEncoding.EncodeToString(
		[]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))

	body, err := c.do(ctx, http.MethodGet, url, nil, map[string]string{
		"Authorization": "Basic " + credentials,
	})
	if err != nil {
		return "", fmt.Errorf("failed to authenticate with daraja: %w", err)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", fmt.Errorf("failed to decode daraja auth response: %w", err)
	}
	if auth.AccessToken == "" {
		return "", fmt.Errorf("daraja auth response missing access token")
	}

	// expires_in arrives as a string of seconds, typically "3599". Refresh a
	// minute early so in-flight requests never carry a just-expired token.
	ttl := 3599 * time.Second
	if secs, convErr := time.ParseDuration(auth.ExpiresIn + "s"); convErr == nil {
		ttl = secs
	}
	c.token = auth.AccessToken
	c.tokenExpiry = c.now().Add(ttl - time.Minute)

	return c.token, nil
}

// InitiateStkPush submits a push-payment charge for the given phone and
// amount. The returned CheckoutRequestID correlates the asynchronous result
// callback back to this request.
func (c *Client) InitiateStkPush(ctx context.Context, phone string, amount int64, businessName string) (*StkPushResponse, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if businessName == "" {
		businessName = "FluxPay"
	}

	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.config.ShortCode + c.config.PassKey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: c.config.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            FormatPhoneNumber(phone),
		PartyB:            c.config.ShortCode,
		PhoneNumber:       FormatPhoneNumber(phone),
		CallBackURL:       c.config.CallbackURL,
		AccountReference:  fmt.Sprintf("%s Subscription", businessName),
		TransactionDesc:   fmt.Sprintf("Payment for %s", businessName),
	}

	url := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", c.config.BaseURL)
	body, err := c.do(ctx, http.MethodPost, url, payload, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initiate stk push: %w", err)
	}

	var resp StkPushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response: %w", err)
	}
	if resp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("stk push response missing CheckoutRequestID: %s", string(body))
	}

	return &resp, nil
}

// do makes one HTTP request to the Daraja API through the circuit breaker
// and returns the response body.
func (c *Client) do(ctx context.Context, method, url string, body interface{}, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("daraja API error: status %d, body: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
}
