package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/WessleyAI/carsearch/engine/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	user_id           TEXT PRIMARY KEY,
	credits_remaining INTEGER NOT NULL DEFAULT 0 CHECK (credits_remaining >= 0),
	unlimited         INTEGER NOT NULL DEFAULT 0,
	updated_at        TEXT NOT NULL
)`

// SQLiteStore keeps accounts in a local SQLite file. Writes go through a
// single connection and every lock is a BEGIN IMMEDIATE transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credit_accounts: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) WithAccountLock(ctx context.Context, userID string, fn func(*domain.CreditAccount) (bool, error)) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	var (
		acct      = domain.CreditAccount{UserID: userID}
		unlimited int
		updated   string
	)
	err = conn.QueryRowContext(ctx,
		`SELECT credits_remaining, unlimited, updated_at FROM credit_accounts WHERE user_id = ?`, userID,
	).Scan(&acct.CreditsRemaining, &unlimited, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("read account: %w", err)
	}
	acct.Unlimited = unlimited != 0
	acct.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	changed, err := fn(&acct)
	if err != nil {
		return err
	}
	if changed {
		if _, err := conn.ExecContext(ctx,
			`UPDATE credit_accounts SET credits_remaining = ?, unlimited = ?, updated_at = ? WHERE user_id = ?`,
			acct.CreditsRemaining, boolInt(acct.Unlimited), acct.UpdatedAt.UTC().Format(time.RFC3339Nano), userID,
		); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, acct domain.CreditAccount) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_accounts (user_id, credits_remaining, unlimited, updated_at) VALUES (?, ?, ?, ?)`,
		acct.UserID, acct.CreditsRemaining, boolInt(acct.Unlimited), acct.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
