package sandbox

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/config"
	"github.com/zippy-pay/zippy_mobile/internal/funding"
	"github.com/zippy-pay/zippy_mobile/internal/logging"
	"github.com/zippy-pay/zippy_mobile/internal/notify"
	"github.com/zippy-pay/zippy_mobile/internal/securestore"
	"github.com/zippy-pay/zippy_mobile/internal/session"
	"github.com/zippy-pay/zippy_mobile/internal/vtu"
	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

func startServer(t *testing.T, cfg config.Sandbox, cache *redis.Client) string {
	t.Helper()
	srv := New(cfg, NewMemoryStore(), cache, logging.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil {
			t.Logf("serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String() + "/api"
}

type clientStack struct {
	sessions *session.Service
	cache    *wallet.Cache
	client   *api.Client
}

func newClientStack(t *testing.T, baseURL string) clientStack {
	t.Helper()
	store := securestore.NewMemoryStore()
	client, err := api.New(baseURL, 5*time.Second, store, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sessions := session.NewService(client, store, nil, logging.Discard())
	cache := wallet.NewCache(client, sessions, logging.Discard())
	return clientStack{sessions: sessions, cache: cache, client: client}
}

// The full round trip: register, fund through the reconciliation flow while
// the simulated webhook settles concurrently, then spend the balance.
func TestEndToEndFundingAndPurchase(t *testing.T) {
	cfg := config.Sandbox{
		AppName:      "sandbox-test",
		PaystackKey:  "pk_test_sandbox",
		WebhookDelay: 30 * time.Millisecond,
	}
	baseURL := startServer(t, cfg, nil)
	stack := newClientStack(t, baseURL)
	ctx := context.Background()

	if _, err := stack.sessions.Register(ctx, session.RegisterInput{
		Email: "ada@example.com", Password: "hunter22", FullName: "Ada Obi", Phone: "08012345678",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	flow := funding.NewFlow(stack.client, stack.sessions, stack.cache, funding.StaticPopup{}, &notify.Recorder{}, funding.Options{
		MinAmount:         100,
		SettleDelay:       10 * time.Millisecond,
		VerifyInterval:    25 * time.Millisecond,
		VerifyMaxAttempts: 8,
	}, logging.Discard())

	receipt, err := flow.Fund(ctx, 5000)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if receipt.State != funding.StateConfirmed {
		t.Fatalf("expected confirmed against the sandbox webhook, got %s after %d attempts", receipt.State, receipt.Attempts)
	}
	if stack.cache.Balance() != 5000 {
		t.Fatalf("expected refreshed balance 5000, got %d", stack.cache.Balance())
	}

	products := vtu.NewService(stack.client, stack.cache, logging.Discard())
	if _, err := products.BuyAirtime(ctx, vtu.AirtimeInput{Network: "mtn", Phone: "08012345678", Amount: 200}); err != nil {
		t.Fatalf("buy airtime: %v", err)
	}
	if stack.cache.Balance() != 4800 {
		t.Fatalf("expected balance 4800 after purchase, got %d", stack.cache.Balance())
	}

	if err := stack.cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if stack.cache.Balance() != 4800 {
		t.Fatalf("server disagrees after refresh: %d", stack.cache.Balance())
	}
	txs := stack.cache.Transactions()
	if len(txs) != 2 || txs[0].Type != wallet.TypeAirtime || txs[1].Type != wallet.TypeWalletFund {
		t.Fatalf("unexpected ledger %+v", txs)
	}
}

func TestVerifyEmailAgainstSandbox(t *testing.T) {
	baseURL := startServer(t, config.Sandbox{AppName: "sandbox-test", WebhookDelay: time.Hour}, nil)
	stack := newClientStack(t, baseURL)
	ctx := context.Background()

	if _, err := stack.sessions.Register(ctx, session.RegisterInput{
		Email: "ada@example.com", Password: "hunter22",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := stack.sessions.VerifyEmail(ctx, "ada@example.com", "000000"); err == nil {
		t.Fatal("expected bad code rejection")
	}
	sess, err := stack.sessions.VerifyEmail(ctx, "ada@example.com", devVerificationCode)
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !sess.User.IsVerified {
		t.Fatal("expected verified user")
	}

	user, err := stack.sessions.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if !user.IsVerified {
		t.Fatal("server must report the user verified")
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	baseURL := startServer(t, config.Sandbox{AppName: "sandbox-test", WebhookDelay: time.Hour}, nil)
	stack := newClientStack(t, baseURL)

	err := stack.client.Get(context.Background(), "/wallet/balance", nil, "failed")
	if !api.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
}

// A duplicate fund-mobile submit with the same payment reference must replay
// the original response instead of creating a second pending transaction.
func TestFundingIdempotencyReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	cfg := config.Sandbox{
		AppName:        "sandbox-test",
		WebhookDelay:   time.Hour, // keep the funding pending for the duration
		IdempotencyTTL: time.Minute,
	}
	baseURL := startServer(t, cfg, cache)
	stack := newClientStack(t, baseURL)
	ctx := context.Background()

	if _, err := stack.sessions.Register(ctx, session.RegisterInput{
		Email: "ada@example.com", Password: "hunter22",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	submit := func() (wallet.Transaction, error) {
		var resp struct {
			Transaction wallet.Transaction `json:"transaction"`
		}
		err := stack.client.Post(ctx, "/wallet/fund-mobile", map[string]any{
			"amount":    5000,
			"reference": "ZP_MOB_DUP",
		}, &resp, "Failed to create transaction")
		return resp.Transaction, err
	}

	first, err := submit()
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := submit()
	if err != nil {
		t.Fatalf("duplicate submit should replay, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned a different transaction: %d vs %d", second.ID, first.ID)
	}

	if err := stack.cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	txs := stack.cache.Transactions()
	if len(txs) != 1 {
		t.Fatalf("expected a single pending funding, got %+v", txs)
	}
	if txs[0].Status != wallet.StatusPending {
		t.Fatalf("funding must stay pending until the webhook, got %+v", txs[0])
	}
}
