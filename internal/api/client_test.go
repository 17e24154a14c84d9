package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zippy-pay/zippy_mobile/internal/logging"
	"github.com/zippy-pay/zippy_mobile/internal/securestore"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, securestore.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := securestore.NewMemoryStore()
	client, err := New(srv.URL, 5*time.Second, store, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, store
}

func TestBearerTokenInjected(t *testing.T) {
	var got string
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))
	if err := store.Put(TokenName, "tok-abc"); err != nil {
		t.Fatalf("put token: %v", err)
	}

	if err := client.Get(context.Background(), "/wallet/balance", nil, "failed"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "Bearer tok-abc" {
		t.Fatalf("expected bearer header, got %q", got)
	}
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	var got string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))

	if err := client.Get(context.Background(), "/services", nil, "failed"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no auth header, got %q", got)
	}
}

func TestUnauthorizedStripsToken(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Invalid or expired token"}`)
	}))
	if err := store.Put(TokenName, "stale"); err != nil {
		t.Fatalf("put token: %v", err)
	}

	err := client.Get(context.Background(), "/wallet/balance", nil, "failed")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if _, err := store.Get(TokenName); !errors.Is(err, securestore.ErrNotFound) {
		t.Fatalf("expected token stripped, got %v", err)
	}
}

func TestUnauthorizedOnUserProbeKeepsToken(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Authentication required"}`)
	}))
	if err := store.Put(TokenName, "fresh"); err != nil {
		t.Fatalf("put token: %v", err)
	}

	err := client.Get(context.Background(), UserProbePath, nil, "failed")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if token, err := store.Get(TokenName); err != nil || token != "fresh" {
		t.Fatalf("probe 401 must not strip the token: token=%q err=%v", token, err)
	}
}

func TestServerMessagePreferredOverFallback(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Insufficient wallet balance"}`)
	}))

	err := client.Post(context.Background(), "/vtu/airtime", map[string]any{"amount": 100}, nil, "Purchase failed")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Message != "Insufficient wallet balance" {
		t.Fatalf("expected server message, got %q", apiErr.Message)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", apiErr.Status)
	}
}

func TestFallbackWhenBodyUnusable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<html>gateway error</html>`)
	}))

	err := client.Get(context.Background(), "/wallet/balance", nil, "Failed to fetch balance")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Message != "Failed to fetch balance" {
		t.Fatalf("expected fallback message, got %q", apiErr.Message)
	}
}

func TestTransportErrorTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	store := securestore.NewMemoryStore()
	client, err := New(srv.URL, time.Second, store, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	srv.Close() // connection refused from here on

	err = client.Get(context.Background(), "/wallet/balance", nil, "failed")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var transport *TransportError
	if !errors.As(err, &transport) || transport.Unwrap() == nil {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestDecodesSuccessBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"balance":12500}`)
	}))

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := client.Get(context.Background(), "/wallet/balance", &out, "failed"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Balance != 12500 {
		t.Fatalf("expected 12500, got %d", out.Balance)
	}
}
