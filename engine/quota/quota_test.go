package quota

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestLedger_DeductUntilEmpty(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(mk(t), Opts{})
			acct, err := l.Open(ctx, "u1", -1)
			require.NoError(t, err)
			assert.Equal(t, DefaultFreeCredits, acct.CreditsRemaining)

			for want := 2; want >= 0; want-- {
				got, err := l.TryDeduct(ctx, "u1")
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
			_, err = l.TryDeduct(ctx, "u1")
			assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))

			bal, err := l.Balance(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 0, bal.CreditsRemaining)
		})
	}
}

func TestLedger_Unlimited(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(mk(t), Opts{})
			_, err := l.Open(ctx, "vip", 0)
			require.NoError(t, err)
			require.NoError(t, l.SetUnlimited(ctx, "vip", true))

			for i := 0; i < 5; i++ {
				got, err := l.TryDeduct(ctx, "vip")
				require.NoError(t, err)
				assert.Equal(t, Unlimited, got)
			}
			bal, err := l.Balance(ctx, "vip")
			require.NoError(t, err)
			assert.True(t, bal.Unlimited)
			assert.Equal(t, 0, bal.CreditsRemaining)

			require.NoError(t, l.SetUnlimited(ctx, "vip", false))
			_, err = l.TryDeduct(ctx, "vip")
			assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
		})
	}
}

func TestLedger_AddCredits(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(mk(t), Opts{})
			_, err := l.Open(ctx, "u", 1)
			require.NoError(t, err)

			bal, err := l.AddCredits(ctx, "u", 10)
			require.NoError(t, err)
			assert.Equal(t, 11, bal)

			_, err = l.AddCredits(ctx, "u", 0)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
			_, err = l.AddCredits(ctx, "ghost", 5)
			assert.ErrorIs(t, err, domain.ErrAccountNotFound)
		})
	}
}

func TestLedger_AddCreditsCapsBalance(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(mk(t), Opts{})
			_, err := l.Open(ctx, "u", 1)
			require.NoError(t, err)

			_, err = l.AddCredits(ctx, "u", math.MaxInt)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
			_, err = l.AddCredits(ctx, "u", MaxCredits)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)

			acct, err := l.Balance(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, 1, acct.CreditsRemaining)

			bal, err := l.AddCredits(ctx, "u", MaxCredits-1)
			require.NoError(t, err)
			assert.Equal(t, MaxCredits, bal)

			_, err = l.Open(ctx, "big", math.MaxInt)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}
}

func TestLedger_OpenIsCreateOnce(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(mk(t), Opts{})
			_, err := l.Open(ctx, "u", 5)
			require.NoError(t, err)
			_, err = l.TryDeduct(ctx, "u")
			require.NoError(t, err)

			again, err := l.Open(ctx, "u", 100)
			require.NoError(t, err)
			assert.Equal(t, 4, again.CreditsRemaining)

			_, err = l.Open(ctx, "", 1)
			assert.ErrorIs(t, err, domain.ErrInvalidUser)
		})
	}
}

func TestLedger_UnknownAccount(t *testing.T) {
	l := NewLedger(NewMemoryStore(), Opts{})
	_, err := l.TryDeduct(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.False(t, errors.Is(err, domain.ErrQuotaExceeded))
}

// Two concurrent deductions against one remaining credit must produce
// exactly one success.
func TestLedger_ConcurrentDeductIsAtomic(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(mk(t), Opts{})

			for round := 0; round < 20; round++ {
				user := "race"
				if round > 0 {
					_, err := l.AddCredits(ctx, user, 1)
					require.NoError(t, err)
				} else {
					_, err := l.Open(ctx, user, 1)
					require.NoError(t, err)
				}

				var ok, denied atomic.Int32
				var wg sync.WaitGroup
				start := make(chan struct{})
				for i := 0; i < 2; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						<-start
						_, err := l.TryDeduct(ctx, user)
						switch {
						case err == nil:
							ok.Add(1)
						case errors.Is(err, domain.ErrQuotaExceeded):
							denied.Add(1)
						}
					}()
				}
				close(start)
				wg.Wait()

				require.Equal(t, int32(1), ok.Load(), "round %d", round)
				require.Equal(t, int32(1), denied.Load(), "round %d", round)
				bal, err := l.Balance(ctx, user)
				require.NoError(t, err)
				require.Equal(t, 0, bal.CreditsRemaining)
			}
		})
	}
}

func TestLedger_ManyConcurrentNeverNegative(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(NewMemoryStore(), Opts{})
	_, err := l.Open(ctx, "u", 10)
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryDeduct(ctx, "u"); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), ok.Load())
	bal, err := l.Balance(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, bal.CreditsRemaining)
}

func TestLedger_RecordsDecisions(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewPipeline(metrics.New())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := NewLedger(NewMemoryStore(), Opts{Metrics: m, Now: func() time.Time { return fixed }})
	_, err := l.Open(ctx, "u", 1)
	require.NoError(t, err)

	_, _ = l.TryDeduct(ctx, "u")
	_, _ = l.TryDeduct(ctx, "u")

	out := m.Registry().Render()
	assert.Contains(t, out, `carsearch_credit_decisions_total{result="deducted"} 1`)
	assert.Contains(t, out, `carsearch_credit_decisions_total{result="denied"} 1`)

	bal, err := l.Balance(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, fixed, bal.UpdatedAt)
}

func TestMemoryStore_FnErrorDoesNotWrite(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Create(context.Background(), domain.CreditAccount{UserID: "u", CreditsRemaining: 2}))
	boom := errors.New("boom")
	err := s.WithAccountLock(context.Background(), "u", func(a *domain.CreditAccount) (bool, error) {
		a.CreditsRemaining = 99
		return true, boom
	})
	assert.ErrorIs(t, err, boom)
	_ = s.WithAccountLock(context.Background(), "u", func(a *domain.CreditAccount) (bool, error) {
		assert.Equal(t, 2, a.CreditsRemaining)
		return false, nil
	})
	assert.ErrorIs(t, s.Create(context.Background(), domain.CreditAccount{UserID: "u"}), domain.ErrAccountExists)
}
