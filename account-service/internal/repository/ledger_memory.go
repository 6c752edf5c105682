package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eaglebank/wallet/account-service/internal/ledger"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

// MemoryLedgerStore is an in-process ledger engine. Each account has its own
// exclusive lock; a unit of work buffers its writes and publishes them in a
// single critical section on commit, so readers only ever see committed state.
type MemoryLedgerStore struct {
	mu          sync.Mutex
	accounts    map[string]*memAccount
	transfers   map[string]models.LedgerTransfer
	lockTimeout time.Duration
}

type memAccount struct {
	lock  chan struct{}
	state models.Account
}

func NewMemoryLedgerStore(lockTimeout time.Duration) *MemoryLedgerStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &MemoryLedgerStore{
		accounts:    make(map[string]*memAccount),
		transfers:   make(map[string]models.LedgerTransfer),
		lockTimeout: lockTimeout,
	}
}

var _ ledger.Store = (*MemoryLedgerStore)(nil)

func (s *MemoryLedgerStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return errs.Validation("account already exists")
	}
	s.accounts[account.ID] = &memAccount{lock: make(chan struct{}, 1), state: *account}
	return nil
}

func (s *MemoryLedgerStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, errs.NotFound("Account not found")
	}
	state := acc.state
	return &state, nil
}

func (s *MemoryLedgerStore) ListByUserID(ctx context.Context, userID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, acc := range s.accounts {
		if acc.state.UserID == userID {
			out = append(out, acc.state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx := &memTx{
		store:  s,
		held:   make(map[string]*memAccount),
		writes: make(map[string]models.Account),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	store     *MemoryLedgerStore
	held      map[string]*memAccount
	writes    map[string]models.Account
	transfers []models.LedgerTransfer
}

func (t *memTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	if _, ok := t.held[id]; ok {
		return t.current(id), nil
	}

	t.store.mu.Lock()
	acc, ok := t.store.accounts[id]
	t.store.mu.Unlock()
	if !ok {
		return nil, errs.NotFound("Account not found")
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.store.lockTimeout)
	defer cancel()
	select {
	case acc.lock <- struct{}{}:
	case <-waitCtx.Done():
		return nil, errs.Upstream("Account is busy, please retry", waitCtx.Err())
	}
	t.held[id] = acc
	return t.current(id), nil
}

// current returns this transaction's view of a locked account.
func (t *memTx) current(id string) *models.Account {
	if w, ok := t.writes[id]; ok {
		return &w
	}
	t.store.mu.Lock()
	state := t.held[id].state
	t.store.mu.Unlock()
	return &state
}

func (t *memTx) SaveBalance(ctx context.Context, account *models.Account) error {
	if _, ok := t.held[account.ID]; !ok {
		return errs.Upstream("account must be locked before it is written", nil)
	}
	account.Version++
	account.UpdatedAt = time.Now().UTC()
	t.writes[account.ID] = *account
	return nil
}

func (t *memTx) FindTransfer(ctx context.Context, transferID string) (*models.LedgerTransfer, error) {
	for _, pending := range t.transfers {
		if pending.TransferID == transferID {
			found := pending
			return &found, nil
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if existing, ok := t.store.transfers[transferID]; ok {
		return &existing, nil
	}
	return nil, nil
}

func (t *memTx) InsertTransfer(ctx context.Context, transfer *models.LedgerTransfer) error {
	t.transfers = append(t.transfers, *transfer)
	return nil
}

func (t *memTx) commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, tr := range t.transfers {
		if _, exists := t.store.transfers[tr.TransferID]; exists {
			return errs.IdempotencyConflict("transferId was already used for a different transfer")
		}
	}
	for _, tr := range t.transfers {
		t.store.transfers[tr.TransferID] = tr
	}
	for id, state := range t.writes {
		t.store.accounts[id].state = state
	}
	return nil
}

func (t *memTx) release() {
	for _, acc := range t.held {
		<-acc.lock
	}
}
