// Package funding implements wallet top-up through an external payment popup
// and the client-side reconciliation that follows: submit the provider
// reference to the backend, give the provider webhook a head start, then poll
// verification on a bounded budget. The poll degrades to a "processing, check
// back shortly" terminal state rather than hanging; a submitted payment is
// always reconciled, never abandoned.
package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/notify"
	"github.com/zippy-pay/zippy_mobile/internal/session"
	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

var (
	// ErrAmountBelowMinimum rejects the attempt before the popup ever opens.
	ErrAmountBelowMinimum = errors.New("funding: amount below minimum")
	// ErrInProgress rejects a second attempt while one is still reconciling.
	ErrInProgress = errors.New("funding: another attempt is in progress")
	// ErrCancelled means the user dismissed the popup; nothing was charged.
	ErrCancelled = errors.New("funding: payment cancelled")
	// ErrPopupFailed means the popup reported an error before any charge was
	// confirmed; nothing to reconcile.
	ErrPopupFailed = errors.New("funding: payment popup failed")
)

// errStillPending drives the verify retry loop; never escapes the flow.
var errStillPending = errors.New("funding: settlement still pending")

// SettlementError is the backend explicitly reporting the payment failed.
type SettlementError struct {
	Reference string
	Reason    string
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("funding: payment %s failed: %s", e.Reference, e.Reason)
}

// State is the terminal state of a reconciliation attempt.
type State string

const (
	// StateConfirmed means the backend reported settlement success.
	StateConfirmed State = "confirmed"
	// StatePendingTimeout means the poll budget ran out with the outcome
	// still unknown. Not a failure; the webhook may land any moment.
	StatePendingTimeout State = "pending_timeout"
)

// Receipt reports a terminal reconciliation outcome.
type Receipt struct {
	State       State
	Reference   string
	Amount      int64
	Attempts    int
	Transaction wallet.Transaction
}

// Options tunes the reconciliation flow.
type Options struct {
	// MinAmount is the smallest fundable amount in naira.
	MinAmount int64
	// SettleDelay is the head start given to the provider webhook before the
	// first verification attempt.
	SettleDelay time.Duration
	// VerifyInterval is the fixed spacing between verification attempts.
	VerifyInterval time.Duration
	// VerifyMaxAttempts bounds the poll; the flow then degrades to
	// StatePendingTimeout instead of waiting indefinitely.
	VerifyMaxAttempts int
}

// DefaultOptions matches the tuning observed in production: ₦100 minimum,
// 2s webhook head start, 8 attempts spaced 1s apart.
func DefaultOptions() Options {
	return Options{
		MinAmount:         100,
		SettleDelay:       2 * time.Second,
		VerifyInterval:    time.Second,
		VerifyMaxAttempts: 8,
	}
}

// Flow orchestrates a single wallet top-up at a time.
type Flow struct {
	api      *api.Client
	sessions *session.Service
	cache    *wallet.Cache
	popup    Popup
	notifier notify.Notifier
	opts     Options
	logger   *slog.Logger
	busy     atomic.Bool
}

// NewFlow builds the funding flow.
func NewFlow(client *api.Client, sessions *session.Service, cache *wallet.Cache, popup Popup, notifier notify.Notifier, opts Options, logger *slog.Logger) *Flow {
	if opts.VerifyMaxAttempts < 1 {
		opts.VerifyMaxAttempts = 1
	}
	return &Flow{
		api:      client,
		sessions: sessions,
		cache:    cache,
		popup:    popup,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// InProgress reports whether an attempt is currently reconciling. The guard
// spans the whole state machine, so a re-rendered control cannot
// double-initiate.
func (f *Flow) InProgress() bool {
	return f.busy.Load()
}

// Fund runs the top-up state machine to a terminal state. Confirmed and
// pending-timeout outcomes are receipts; validation failures, popup cancel or
// error, and settlement failure are errors. Whatever happens, the in-progress
// guard is released before returning.
func (f *Flow) Fund(ctx context.Context, amount int64) (Receipt, error) {
	if amount < f.opts.MinAmount {
		f.push(ctx, notify.LevelError, "Error", fmt.Sprintf("Minimum amount is ₦%d", f.opts.MinAmount))
		return Receipt{}, ErrAmountBelowMinimum
	}

	if !f.busy.CompareAndSwap(false, true) {
		return Receipt{}, ErrInProgress
	}
	defer f.busy.Store(false)

	sess, ok := f.sessions.Current()
	if !ok {
		return Receipt{}, session.ErrNotAuthenticated
	}

	var keyResp struct {
		Key string `json:"key"`
	}
	if err := f.api.Get(ctx, "/wallet/config/paystack", &keyResp, "Payment service not initialized"); err != nil {
		f.push(ctx, notify.LevelError, "Configuration Error", "Payment service not initialized. Please try again.")
		return Receipt{}, err
	}

	reference := newReference()
	outcome, err := f.popup.Open(ctx, PopupRequest{
		Key:       keyResp.Key,
		Email:     sess.User.Email,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		f.push(ctx, notify.LevelError, "Error", "Failed to initialize payment")
		return Receipt{}, fmt.Errorf("open payment popup: %w", err)
	}

	switch outcome.Status {
	case PopupCancelled:
		// Nothing was charged; no wallet refresh.
		f.push(ctx, notify.LevelInfo, "Cancelled", "Payment was cancelled")
		return Receipt{}, ErrCancelled
	case PopupError:
		f.push(ctx, notify.LevelError, "Payment Failed", popupErrorBody(outcome.Err))
		if outcome.Err != nil {
			return Receipt{}, fmt.Errorf("%w: %w", ErrPopupFailed, outcome.Err)
		}
		return Receipt{}, ErrPopupFailed
	case PopupSuccess:
		// The provider-assigned reference is authoritative from here on.
		if ref := outcome.Data.SettlementReference(); ref != "" {
			reference = ref
		}
	default:
		return Receipt{}, fmt.Errorf("funding: unexpected popup status %d", outcome.Status)
	}

	f.push(ctx, notify.LevelInfo, "Processing", "Verifying your payment...")

	var submitResp struct {
		Transaction wallet.Transaction `json:"transaction"`
	}
	err = f.api.Post(ctx, "/wallet/fund-mobile", map[string]any{
		"amount":    amount,
		"reference": reference,
	}, &submitResp, "Failed to create transaction")
	if err != nil {
		// The charge may still settle through the webhook; tell the user to
		// check back and refresh in case it already has.
		f.push(ctx, notify.LevelWarning, "Payment Pending", "Please refresh your wallet to check balance")
		f.cache.RefreshQuiet(ctx)
		return Receipt{}, fmt.Errorf("submit funding transaction: %w", err)
	}

	// A submitted payment must run to a terminal state even if the caller
	// goes away; only the transport timeout bounds individual requests now.
	ctx = context.WithoutCancel(ctx)

	time.Sleep(f.opts.SettleDelay)

	receipt := Receipt{
		Reference:   reference,
		Amount:      amount,
		Transaction: submitResp.Transaction,
	}

	var settlement *SettlementError
	verify := func() error {
		receipt.Attempts++
		var vr struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := f.api.Post(ctx, "/wallet/verify", map[string]string{
			"reference": reference,
		}, &vr, "Payment verification failed"); err != nil {
			// Transport and server hiccups alike are transient here.
			return err
		}
		switch vr.Status {
		case wallet.StatusSuccess:
			return nil
		case wallet.StatusPending:
			return errStillPending
		default:
			reason := vr.Message
			if reason == "" {
				reason = "Payment was not successful"
			}
			settlement = &SettlementError{Reference: reference, Reason: reason}
			return backoff.Permanent(settlement)
		}
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(f.opts.VerifyInterval),
		uint64(f.opts.VerifyMaxAttempts-1),
	)
	err = backoff.Retry(verify, policy)

	switch {
	case err == nil:
		receipt.State = StateConfirmed
		f.cache.RefreshQuiet(ctx)
		f.push(ctx, notify.LevelSuccess, "Success", "Wallet funded successfully!")
		return receipt, nil
	case settlement != nil:
		// Explicit failure from the backend. Refresh anyway; a webhook may
		// have touched the ledger mid-flow.
		f.cache.RefreshQuiet(ctx)
		f.push(ctx, notify.LevelError, "Payment Failed", settlement.Reason)
		return Receipt{}, settlement
	default:
		receipt.State = StatePendingTimeout
		f.cache.RefreshQuiet(ctx)
		f.push(ctx, notify.LevelWarning, "Payment Pending", "Your payment is being processed. Please refresh your wallet in a moment.")
		f.logger.Info("settlement unresolved within poll budget", "reference", reference, "attempts", receipt.Attempts)
		return receipt, nil
	}
}

func (f *Flow) push(ctx context.Context, level notify.Level, title, body string) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Push(ctx, notify.Notice{Level: level, Title: title, Body: body}); err != nil {
		f.logger.Warn("push notice", "error", err)
	}
}

func popupErrorBody(err error) string {
	if err != nil {
		return err.Error()
	}
	return "An error occurred during payment"
}

// newReference generates the client-side idempotency-style reference handed
// to the popup. The provider may replace it with its own.
func newReference() string {
	return fmt.Sprintf("ZP_MOB_%d_%d", time.Now().UnixMilli(), rand.Intn(1_000_000))
}
