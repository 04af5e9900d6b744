package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	"github.com/shopspring/decimal"
)

func newTestClient(baseURL string) *Client {
	c := NewClient(config.MpesaConfig{
		BaseURL:          baseURL,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		Shortcode:        "174379",
		Passkey:          "passkey",
		CallbackURL:      "https://example.com/v0/mpesa/callback",
		AccountReference: config.DefaultMpesaAccountReference,
		Description:      config.DefaultMpesaDescription,
		Timeout:          time.Second,
	})
	c.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestClient_InitiateCachesToken(t *testing.T) {
	var tokenCalls, pushCalls int32
	var lastPush stkPushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			atomic.AddInt32(&tokenCalls, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			n := atomic.AddInt32(&pushCalls, 1)
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := json.NewDecoder(r.Body).Decode(&lastPush); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID":   "M-1",
				"CheckoutRequestID":   "ws_CO_" + string(rune('0'+n)),
				"ResponseCode":        "0",
				"ResponseDescription": "Success. Request accepted for processing",
				"CustomerMessage":     "Success. Request accepted for processing",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	resp, err := c.Initiate(ctx, "254712345678", decimal.RequireFromString("2999.10"))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if resp.ProviderRequestID != "ws_CO_1" || resp.MerchantRequestID != "M-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if lastPush.Amount != 3000 || lastPush.PartyA != "254712345678" || lastPush.PartyB != "174379" {
		t.Fatalf("unexpected push body %+v", lastPush)
	}
	if lastPush.Timestamp != "20240201120000" {
		t.Fatalf("expected EAT timestamp, got %q", lastPush.Timestamp)
	}
	if lastPush.Password != Password("174379", "passkey", "20240201120000") {
		t.Fatalf("unexpected password %q", lastPush.Password)
	}
	if lastPush.TransactionType != "CustomerPayBillOnline" || lastPush.AccountReference != "FitFlow Subscription" {
		t.Fatalf("unexpected push body %+v", lastPush)
	}

	if _, err := c.Initiate(ctx, "254712345678", decimal.NewFromInt(3000)); err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("expected cached token, got %d token calls", got)
	}
	if got := atomic.LoadInt32(&pushCalls); got != 2 {
		t.Fatalf("expected 2 push calls, got %d", got)
	}
}

func TestClient_InitiateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Initiate(context.Background(), "254712345678", decimal.NewFromInt(10))
	if !errors.Is(err, billing.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestClient_InitiateNonZeroResponseCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ResponseCode":"1","ResponseDescription":"Rejected"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Initiate(context.Background(), "254712345678", decimal.NewFromInt(10))
	if !errors.Is(err, billing.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestClient_InitiateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).Initiate(ctx, "254712345678", decimal.NewFromInt(10))
	if !errors.Is(err, billing.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestClient_MissingCredentials(t *testing.T) {
	c := NewClient(config.MpesaConfig{BaseURL: "http://127.0.0.1:0"})
	if _, err := c.Initiate(context.Background(), "254712345678", decimal.NewFromInt(10)); !errors.Is(err, billing.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}
