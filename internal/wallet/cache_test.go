package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/logging"
	"github.com/zippy-pay/zippy_mobile/internal/securestore"
	"github.com/zippy-pay/zippy_mobile/internal/session"
)

type walletBackend struct {
	mu      sync.Mutex
	balance int64
	txBody  string
	fail    bool
}

func (b *walletBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/balance", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"boom"}`)
			return
		}
		fmt.Fprintf(w, `{"balance":%d}`, b.balance)
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		fmt.Fprint(w, b.txBody)
	})
	return mux
}

func newTestCache(t *testing.T, b *walletBackend) (*Cache, *session.Service) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	store := securestore.NewMemoryStore()
	client, err := api.New(srv.URL, 5*time.Second, store, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sessions := session.NewService(client, store, nil, logging.Discard())
	return NewCache(client, sessions, logging.Discard()), sessions
}

func login(t *testing.T, sessions *session.Service) {
	t.Helper()
	if _, err := sessions.LoginWithToken(context.Background(), "tok-1", session.User{ID: 1, Email: "ada@example.com"}); err != nil {
		t.Fatalf("login with token: %v", err)
	}
}

func TestRefreshRequiresSession(t *testing.T) {
	cache, _ := newTestCache(t, &walletBackend{})
	if err := cache.Refresh(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestRefreshReplacesStateWholesale(t *testing.T) {
	b := &walletBackend{
		balance: 7500,
		txBody:  `{"transactions":[{"id":2,"type":"airtime","amount":200,"status":"success"},{"id":1,"type":"wallet_fund","amount":5000,"status":"success"}]}`,
	}
	cache, sessions := newTestCache(t, b)
	login(t, sessions)

	// A stale optimistic entry must not survive a refresh.
	cache.PrependTransaction(Transaction{ID: 99, Type: TypeAirtime, Amount: 50})

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if cache.Balance() != 7500 {
		t.Fatalf("expected balance 7500, got %d", cache.Balance())
	}
	txs := cache.Transactions()
	if len(txs) != 2 || txs[0].ID != 2 || txs[1].ID != 1 {
		t.Fatalf("expected server order preserved, got %+v", txs)
	}
}

func TestRefreshFailureKeepsOldState(t *testing.T) {
	b := &walletBackend{balance: 1000, txBody: `{"transactions":[]}`}
	cache, sessions := newTestCache(t, b)
	login(t, sessions)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	b.mu.Lock()
	b.fail = true
	b.mu.Unlock()

	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	if cache.Balance() != 1000 {
		t.Fatalf("failed refresh must not clobber cached balance, got %d", cache.Balance())
	}
}

func TestOptimisticNudges(t *testing.T) {
	b := &walletBackend{balance: 1000, txBody: `{"transactions":[]}`}
	cache, sessions := newTestCache(t, b)
	login(t, sessions)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	cache.ApplyLocalDebit(300)
	cache.PrependTransaction(Transaction{ID: 5, Type: TypeAirtime, Amount: 300, Status: StatusSuccess})

	if cache.Balance() != 700 {
		t.Fatalf("expected 700 after local debit, got %d", cache.Balance())
	}
	txs := cache.Transactions()
	if len(txs) != 1 || txs[0].ID != 5 {
		t.Fatalf("expected prepended transaction, got %+v", txs)
	}
}

func TestLogoutResetsCache(t *testing.T) {
	b := &walletBackend{balance: 1000, txBody: `{"transactions":[{"id":1,"type":"wallet_fund","amount":1000,"status":"success"}]}`}
	cache, sessions := newTestCache(t, b)
	login(t, sessions)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := sessions.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if cache.Balance() != 0 {
		t.Fatalf("expected balance reset on logout, got %d", cache.Balance())
	}
	if len(cache.Transactions()) != 0 {
		t.Fatalf("expected transactions reset on logout, got %+v", cache.Transactions())
	}
}
