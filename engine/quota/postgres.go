package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	user_id           TEXT PRIMARY KEY,
	credits_remaining INTEGER NOT NULL DEFAULT 0 CHECK (credits_remaining >= 0),
	unlimited         BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps accounts in PostgreSQL and locks rows with
// SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the accounts table exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = maxConns
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the accounts table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrate credit_accounts: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) WithAccountLock(ctx context.Context, userID string, fn func(*domain.CreditAccount) (bool, error)) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	acct := domain.CreditAccount{UserID: userID}
	err = tx.QueryRow(ctx,
		`SELECT credits_remaining, unlimited, updated_at
		   FROM credit_accounts
		  WHERE user_id = $1
		    FOR UPDATE`, userID,
	).Scan(&acct.CreditsRemaining, &acct.Unlimited, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}

	changed, err := fn(&acct)
	if err != nil {
		return err
	}
	if !changed {
		return tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE credit_accounts
		    SET credits_remaining = $2, unlimited = $3, updated_at = $4
		  WHERE user_id = $1`,
		userID, acct.CreditsRemaining, acct.Unlimited, acct.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, acct domain.CreditAccount) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credit_accounts (user_id, credits_remaining, unlimited, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		acct.UserID, acct.CreditsRemaining, acct.Unlimited, acct.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}
