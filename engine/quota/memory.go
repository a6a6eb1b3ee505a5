package quota

import (
	"context"
	"sync"

	"github.com/WessleyAI/carsearch/engine/domain"
)

type memAccount struct {
	mu   sync.Mutex
	acct domain.CreditAccount
}

// MemoryStore keeps accounts in process memory with one mutex per account.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memAccount)}
}

func (s *MemoryStore) WithAccountLock(ctx context.Context, userID string, fn func(*domain.CreditAccount) (bool, error)) error {
	s.mu.Lock()
	row, ok := s.accounts[userID]
	s.mu.Unlock()
	if !ok {
		return domain.ErrAccountNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	row.mu.Lock()
	defer row.mu.Unlock()
	working := row.acct
	changed, err := fn(&working)
	if err != nil {
		return err
	}
	if changed {
		working.UserID = userID
		row.acct = working
	}
	return nil
}

func (s *MemoryStore) Create(_ context.Context, acct domain.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.UserID]; ok {
		return domain.ErrAccountExists
	}
	s.accounts[acct.UserID] = &memAccount{acct: acct}
	return nil
}
