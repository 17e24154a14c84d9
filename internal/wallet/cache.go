// Package wallet mirrors the server-side wallet state. The server is always
// the source of truth; this is a display cache with optimistic local nudges
// that the next successful refresh overrides.
package wallet

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/session"
)

// ErrNoSession indicates a refresh was attempted without an authenticated
// session. The cache never silently serves stale data in that state.
var ErrNoSession = errors.New("wallet: no authenticated session")

// Cache holds the balance and transaction list last seen from the server.
type Cache struct {
	api      *api.Client
	sessions *session.Service
	logger   *slog.Logger

	mu           sync.RWMutex
	balance      int64
	transactions []Transaction
}

// NewCache builds the cache and wires its logout invalidation to the session
// service. Logout empties the cache; nothing else does so implicitly.
func NewCache(client *api.Client, sessions *session.Service, logger *slog.Logger) *Cache {
	c := &Cache{api: client, sessions: sessions, logger: logger}
	sessions.Subscribe(func(ev session.Event) {
		if ev == session.EventLogout {
			c.Reset()
		}
	})
	return c
}

// Refresh fetches balance and transactions, replacing cached state wholesale
// in the server-provided order. Intended for user-triggered refreshes, where
// the caller surfaces the error.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.sessions.Authenticated() {
		return ErrNoSession
	}

	var balResp struct {
		Balance int64 `json:"balance"`
	}
	if err := c.api.Get(ctx, "/wallet/balance", &balResp, "Failed to get balance. Check connection."); err != nil {
		return err
	}

	var txResp struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.api.Get(ctx, "/transactions", &txResp, "Failed to get transactions"); err != nil {
		return err
	}

	c.mu.Lock()
	c.balance = balResp.Balance
	c.transactions = txResp.Transactions
	c.mu.Unlock()
	return nil
}

// RefreshQuiet refreshes in the background flavor: failures are logged, not
// surfaced, so an unrelated UI flow is never disrupted by a stale cache.
func (c *Cache) RefreshQuiet(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("wallet refresh", "error", err)
	}
}

// Balance returns the cached balance.
func (c *Cache) Balance() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance
}

// Transactions returns a copy of the cached list, most recent first.
func (c *Cache) Transactions() []Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Transaction, len(c.transactions))
	copy(out, c.transactions)
	return out
}

// ApplyLocalDebit decrements the cached balance immediately after a confirmed
// purchase, without waiting for a full refresh.
func (c *Cache) ApplyLocalDebit(amount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance -= amount
}

// PrependTransaction inserts a freshly created transaction at the head of the
// cached list, maintaining most-recent-first order.
func (c *Cache) PrependTransaction(tx Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions = append([]Transaction{tx}, c.transactions...)
}

// Reset empties the cache. Wired to session logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = 0
	c.transactions = nil
}
