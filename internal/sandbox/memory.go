package sandbox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

type memoryStore struct {
	mu           sync.Mutex
	nextUserID   int64
	nextTxID     int64
	users        map[int64]User
	emails       map[string]int64
	balances     map[int64]int64
	transactions map[int64][]wallet.Transaction
	fundingOwner map[string]int64
}

// NewMemoryStore constructs an in-memory store, the default backend for
// development and tests.
func NewMemoryStore() Store {
	return &memoryStore{
		users:        make(map[int64]User),
		emails:       make(map[string]int64),
		balances:     make(map[int64]int64),
		transactions: make(map[int64][]wallet.Transaction),
		fundingOwner: make(map[string]int64),
	}
}

func (s *memoryStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, exists := s.emails[key]; exists {
		return User{}, ErrDuplicateEmail
	}
	s.nextUserID++
	user.ID = s.nextUserID
	s.users[user.ID] = user
	s.emails[key] = user.ID
	s.balances[user.ID] = 0
	return user, nil
}

func (s *memoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *memoryStore) UserByID(_ context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *memoryStore) MarkVerified(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.IsVerified = true
	s.users[userID] = user
	return nil
}

func (s *memoryStore) Balance(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (s *memoryStore) Transactions(_ context.Context, userID int64) ([]wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.transactions[userID]
	out := make([]wallet.Transaction, len(list))
	copy(out, list)
	return out, nil
}

func (s *memoryStore) CreateFunding(_ context.Context, userID int64, reference string, amount int64) (wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fundingOwner[reference]; exists {
		return wallet.Transaction{}, ErrDuplicateReference
	}
	if _, ok := s.users[userID]; !ok {
		return wallet.Transaction{}, ErrNotFound
	}
	tx := s.appendLocked(userID, wallet.Transaction{
		Type:      wallet.TypeWalletFund,
		Amount:    amount,
		Status:    wallet.StatusPending,
		Reference: reference,
	})
	s.fundingOwner[reference] = userID
	return tx, nil
}

func (s *memoryStore) SettleFunding(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.fundingOwner[reference]
	if !ok {
		return ErrNotFound
	}
	list := s.transactions[userID]
	for i, tx := range list {
		if tx.Reference == reference && tx.Status == wallet.StatusPending {
			list[i].Status = wallet.StatusSuccess
			s.balances[userID] += tx.Amount
			return nil
		}
	}
	return nil
}

func (s *memoryStore) FundingStatus(_ context.Context, reference string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.fundingOwner[reference]
	if !ok {
		return "", "", ErrNotFound
	}
	for _, tx := range s.transactions[userID] {
		if tx.Reference == reference {
			switch tx.Status {
			case wallet.StatusSuccess:
				return wallet.StatusSuccess, "Payment confirmed", nil
			case wallet.StatusFailed:
				return wallet.StatusFailed, "Payment was not successful", nil
			default:
				return wallet.StatusPending, "Awaiting settlement", nil
			}
		}
	}
	return "", "", ErrNotFound
}

func (s *memoryStore) Debit(_ context.Context, userID int64, txType string, amount int64, details map[string]any) (wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[userID]
	if !ok {
		return wallet.Transaction{}, ErrNotFound
	}
	if balance < amount {
		return wallet.Transaction{}, ErrInsufficientFunds
	}
	s.balances[userID] = balance - amount
	tx := s.appendLocked(userID, wallet.Transaction{
		Type:    txType,
		Amount:  amount,
		Status:  wallet.StatusSuccess,
		Details: details,
	})
	return tx, nil
}

// appendLocked assigns an id and prepends the transaction, keeping the
// most-recent-first order the API promises. Called with s.mu held.
func (s *memoryStore) appendLocked(userID int64, tx wallet.Transaction) wallet.Transaction {
	s.nextTxID++
	tx.ID = s.nextTxID
	tx.CreatedAt = time.Now().UTC()
	s.transactions[userID] = append([]wallet.Transaction{tx}, s.transactions[userID]...)
	return tx
}
