// Package sandbox is a stand-in for the production ZippyPay backend. It
// implements enough of the REST contract for the client core to run end to
// end, including the asynchronous webhook settlement the reconciliation flow
// exists to cope with.
package sandbox

import (
	"context"
	"errors"

	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("sandbox: not found")
	// ErrDuplicateEmail indicates the registration email is taken.
	ErrDuplicateEmail = errors.New("sandbox: email already registered")
	// ErrDuplicateReference indicates a funding reference was already submitted.
	ErrDuplicateReference = errors.New("sandbox: duplicate reference")
	// ErrInsufficientFunds indicates the wallet cannot cover a debit.
	ErrInsufficientFunds = errors.New("sandbox: insufficient funds")
)

// User is a sandbox account.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Phone        string
	PasswordHash []byte
	IsVerified   bool
}

// Store persists sandbox accounts, balances and transactions. Memory and
// Postgres implementations exist; the server picks one from configuration.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	MarkVerified(ctx context.Context, userID int64) error

	Balance(ctx context.Context, userID int64) (int64, error)
	Transactions(ctx context.Context, userID int64) ([]wallet.Transaction, error)

	// CreateFunding records a pending wallet_fund transaction under the
	// provider reference. The balance is untouched until settlement.
	CreateFunding(ctx context.Context, userID int64, reference string, amount int64) (wallet.Transaction, error)
	// SettleFunding marks the referenced funding successful and credits the
	// wallet. Invoked by the simulated provider webhook.
	SettleFunding(ctx context.Context, reference string) error
	// FundingStatus reports the settlement state for the verify endpoint.
	FundingStatus(ctx context.Context, reference string) (status, message string, err error)

	// Debit posts a completed purchase transaction and decrements the balance.
	Debit(ctx context.Context, userID int64, txType string, amount int64, details map[string]any) (wallet.Transaction, error)
}
