// Package quota implements the per-user search credit ledger. Every
// check-and-decrement runs under an exclusive per-account lock held by the
// backing Store.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/pkg/metrics"
)

// Unlimited is reported as the remaining balance of unlimited accounts.
const Unlimited = -1

// MaxCredits is the largest balance an account can hold. It matches the
// 32-bit column used by the SQL stores.
const MaxCredits = math.MaxInt32

// DefaultFreeCredits is granted to accounts opened without an explicit amount.
const DefaultFreeCredits = 3

// Store persists credit accounts.
type Store interface {
	// WithAccountLock locks the account row, passes it to fn and writes it
	// back when fn reports a change. Returns domain.ErrAccountNotFound when
	// the account does not exist. Errors from fn abort without writing.
	WithAccountLock(ctx context.Context, userID string, fn func(*domain.CreditAccount) (bool, error)) error
	// Create inserts a new account or returns domain.ErrAccountExists.
	Create(ctx context.Context, acct domain.CreditAccount) error
}

// Opts configures a Ledger.
type Opts struct {
	FreeCredits int
	Metrics     *metrics.Pipeline
	Logger      *slog.Logger
	Now         func() time.Time
}

// Ledger applies credit rules on top of a Store.
type Ledger struct {
	store Store
	free  int
	m     *metrics.Pipeline
	log   *slog.Logger
	now   func() time.Time
}

// NewLedger creates a Ledger.
func NewLedger(store Store, o Opts) *Ledger {
	if o.FreeCredits <= 0 {
		o.FreeCredits = DefaultFreeCredits
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Ledger{store: store, free: o.FreeCredits, m: o.Metrics, log: o.Logger, now: o.Now}
}

// TryDeduct charges one search. Unlimited accounts are not mutated and
// report Unlimited. An empty balance returns an error wrapping
// domain.ErrQuotaExceeded.
func (l *Ledger) TryDeduct(ctx context.Context, userID string) (int, error) {
	remaining := 0
	err := l.store.WithAccountLock(ctx, userID, func(a *domain.CreditAccount) (bool, error) {
		if a.Unlimited {
			remaining = Unlimited
			return false, nil
		}
		if a.CreditsRemaining <= 0 {
			return false, domain.ErrQuotaExceeded
		}
		a.CreditsRemaining--
		a.UpdatedAt = l.now().UTC()
		remaining = a.CreditsRemaining
		return true, nil
	})
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		l.m.Credit("denied")
		l.log.Info("search denied: no credits", "user", userID)
		return 0, fmt.Errorf("deduct %s: %w", userID, err)
	case err != nil:
		return 0, fmt.Errorf("deduct %s: %w", userID, err)
	case remaining == Unlimited:
		l.m.Credit("unlimited")
	default:
		l.m.Credit("deducted")
	}
	return remaining, nil
}

// AddCredits grants amount credits and returns the new balance.
func (l *Ledger) AddCredits(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 || amount > MaxCredits {
		return 0, domain.NewValidationError("amount", fmt.Sprint(amount), domain.ErrInvalidAmount)
	}
	balance := 0
	err := l.store.WithAccountLock(ctx, userID, func(a *domain.CreditAccount) (bool, error) {
		if amount > MaxCredits-a.CreditsRemaining {
			return false, domain.NewValidationError("amount", fmt.Sprint(amount), domain.ErrInvalidAmount)
		}
		a.CreditsRemaining += amount
		a.UpdatedAt = l.now().UTC()
		balance = a.CreditsRemaining
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("add credits %s: %w", userID, err)
	}
	l.log.Info("credits added", "user", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// SetUnlimited toggles the unlimited flag. The stored balance is untouched.
func (l *Ledger) SetUnlimited(ctx context.Context, userID string, unlimited bool) error {
	err := l.store.WithAccountLock(ctx, userID, func(a *domain.CreditAccount) (bool, error) {
		if a.Unlimited == unlimited {
			return false, nil
		}
		a.Unlimited = unlimited
		a.UpdatedAt = l.now().UTC()
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("set unlimited %s: %w", userID, err)
	}
	return nil
}

// Balance reads the account without changing it.
func (l *Ledger) Balance(ctx context.Context, userID string) (domain.CreditAccount, error) {
	var out domain.CreditAccount
	err := l.store.WithAccountLock(ctx, userID, func(a *domain.CreditAccount) (bool, error) {
		out = *a
		return false, nil
	})
	if err != nil {
		return domain.CreditAccount{}, fmt.Errorf("balance %s: %w", userID, err)
	}
	return out, nil
}

// Open creates the account with initial credits, or the free-tier amount
// when initial is negative. Opening an existing account returns it unchanged.
func (l *Ledger) Open(ctx context.Context, userID string, initial int) (domain.CreditAccount, error) {
	if userID == "" {
		return domain.CreditAccount{}, domain.NewValidationError("user_id", userID, domain.ErrInvalidUser)
	}
	if initial < 0 {
		initial = l.free
	}
	if initial > MaxCredits {
		return domain.CreditAccount{}, domain.NewValidationError("credits", fmt.Sprint(initial), domain.ErrInvalidAmount)
	}
	acct := domain.CreditAccount{UserID: userID, CreditsRemaining: initial, UpdatedAt: l.now().UTC()}
	err := l.store.Create(ctx, acct)
	if errors.Is(err, domain.ErrAccountExists) {
		return l.Balance(ctx, userID)
	}
	if err != nil {
		return domain.CreditAccount{}, fmt.Errorf("open %s: %w", userID, err)
	}
	l.log.Info("credit account opened", "user", userID, "credits", initial)
	return acct, nil
}
