package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

// PostgresStore persists sandbox state in PostgreSQL, so funding races can be
// exercised across sandbox restarts.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the sandbox tables when they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS sandbox_users (
            id BIGSERIAL PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            full_name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            password_hash BYTEA NOT NULL,
            is_verified BOOLEAN NOT NULL DEFAULT FALSE,
            balance BIGINT NOT NULL DEFAULT 0
        );
        CREATE TABLE IF NOT EXISTS sandbox_transactions (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES sandbox_users(id),
            type TEXT NOT NULL,
            amount BIGINT NOT NULL,
            status TEXT NOT NULL,
            reference TEXT UNIQUE,
            details JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`)
	if err != nil {
		return fmt.Errorf("migrate sandbox schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO sandbox_users (email, full_name, phone, password_hash, is_verified)
        VALUES (lower($1), $2, $3, $4, $5) RETURNING id`,
		user.Email, user.FullName, user.Phone, user.PasswordHash, user.IsVerified)
	if err := row.Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `SELECT id, email, full_name, phone, password_hash, is_verified
        FROM sandbox_users WHERE email = lower($1)`, email))
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `SELECT id, email, full_name, phone, password_hash, is_verified
        FROM sandbox_users WHERE id = $1`, id))
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.PasswordHash, &u.IsVerified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, userID int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE sandbox_users SET is_verified = TRUE WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT balance FROM sandbox_users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *PostgresStore) Transactions(ctx context.Context, userID int64) ([]wallet.Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT id, type, amount, status, COALESCE(reference, ''), details, created_at
        FROM sandbox_transactions WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.Transaction
	for rows.Next() {
		var tx wallet.Transaction
		if err := rows.Scan(&tx.ID, &tx.Type, &tx.Amount, &tx.Status, &tx.Reference, &tx.Details, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateFunding(ctx context.Context, userID int64, reference string, amount int64) (wallet.Transaction, error) {
	tx := wallet.Transaction{
		Type:      wallet.TypeWalletFund,
		Amount:    amount,
		Status:    wallet.StatusPending,
		Reference: reference,
	}
	row := s.db.QueryRow(ctx, `INSERT INTO sandbox_transactions (user_id, type, amount, status, reference)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		userID, tx.Type, tx.Amount, tx.Status, reference)
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return wallet.Transaction{}, ErrDuplicateReference
		}
		return wallet.Transaction{}, err
	}
	return tx, nil
}

func (s *PostgresStore) SettleFunding(ctx context.Context, reference string) error {
	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	var userID, amount int64
	err = dbtx.QueryRow(ctx, `UPDATE sandbox_transactions SET status = $1
        WHERE reference = $2 AND status = $3 RETURNING user_id, amount`,
		wallet.StatusSuccess, reference, wallet.StatusPending).Scan(&userID, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already settled or unknown; the webhook is at-least-once.
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := dbtx.Exec(ctx, `UPDATE sandbox_users SET balance = balance + $1 WHERE id = $2`, amount, userID); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

func (s *PostgresStore) FundingStatus(ctx context.Context, reference string) (string, string, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM sandbox_transactions WHERE reference = $1`, reference).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	switch status {
	case wallet.StatusSuccess:
		return wallet.StatusSuccess, "Payment confirmed", nil
	case wallet.StatusFailed:
		return wallet.StatusFailed, "Payment was not successful", nil
	default:
		return wallet.StatusPending, "Awaiting settlement", nil
	}
}

func (s *PostgresStore) Debit(ctx context.Context, userID int64, txType string, amount int64, details map[string]any) (wallet.Transaction, error) {
	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return wallet.Transaction{}, err
	}
	defer dbtx.Rollback(ctx)

	tag, err := dbtx.Exec(ctx, `UPDATE sandbox_users SET balance = balance - $1
        WHERE id = $2 AND balance >= $1`, amount, userID)
	if err != nil {
		return wallet.Transaction{}, err
	}
	if tag.RowsAffected() == 0 {
		return wallet.Transaction{}, ErrInsufficientFunds
	}

	tx := wallet.Transaction{
		Type:    txType,
		Amount:  amount,
		Status:  wallet.StatusSuccess,
		Details: details,
	}
	row := dbtx.QueryRow(ctx, `INSERT INTO sandbox_transactions (user_id, type, amount, status, details)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		userID, tx.Type, tx.Amount, tx.Status, details)
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		return wallet.Transaction{}, err
	}
	return tx, dbtx.Commit(ctx)
}
