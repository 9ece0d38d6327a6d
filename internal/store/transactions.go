package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"fintrack/internal/core"
)

// TransactionStore is the personal ledger. It is independent of the entity
// collections and has no cascades.
type TransactionStore struct {
	mu      sync.RWMutex
	items   []core.Transaction
	opts    options
	hookMu  sync.RWMutex
	version atomic.Uint64
}

func NewTransactionStore(opts ...Option) *TransactionStore {
	return &TransactionStore{opts: buildOptions(opts)}
}

func (s *TransactionStore) OnChange(f ChangeFunc) {
	s.hookMu.Lock()
	s.opts.onChange = f
	s.hookMu.Unlock()
}

func (s *TransactionStore) Version() uint64 {
	return s.version.Load()
}

func (s *TransactionStore) changed() {
	s.version.Add(1)
	s.hookMu.RLock()
	hook := s.opts.onChange
	s.hookMu.RUnlock()
	if hook != nil {
		hook([]string{KeyTransactions})
	}
}

// Create stores tx, assigning an id when it has none. A caller-supplied id
// that is already taken yields a ConflictError and stores nothing.
func (s *TransactionStore) Create(tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	if tx.ID == "" {
		tx.ID = s.opts.newID()
	} else if indexOf(s.items, func(t core.Transaction) bool { return t.ID == tx.ID }) >= 0 {
		s.mu.Unlock()
		return core.Transaction{}, &core.ConflictError{Entity: "transaction", Reason: "id already exists"}
	}
	s.items = append(s.items, tx)
	s.mu.Unlock()
	s.changed()
	return tx, nil
}

// Update replaces the record with the given id.
func (s *TransactionStore) Update(id string, tx core.Transaction) (core.Transaction, bool) {
	s.mu.Lock()
	i := indexOf(s.items, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return core.Transaction{}, false
	}
	tx.ID = id
	s.items[i] = tx
	s.mu.Unlock()
	s.changed()
	return tx, true
}

func (s *TransactionStore) Delete(id string) bool {
	s.mu.Lock()
	i := indexOf(s.items, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.mu.Unlock()
	s.changed()
	return true
}

func (s *TransactionStore) Get(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.items, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return core.Transaction{}, false
	}
	return s.items[i], true
}

// List returns every record, newest first.
func (s *TransactionStore) List() []core.Transaction {
	s.mu.RLock()
	out := slices.Clone(s.items)
	s.mu.RUnlock()
	core.SortNewestFirst(out)
	return out
}

// Merge imports records that are not duplicates of stored ones and returns
// the number of imported and skipped records.
func (s *TransactionStore) Merge(incoming []core.Transaction) (imported, skipped int) {
	s.mu.Lock()
	for i := range incoming {
		if incoming[i].ID == "" {
			incoming[i].ID = s.opts.newID()
		}
	}
	var merged []core.Transaction
	merged, skipped = core.MergeTransactions(s.items, incoming)
	imported = len(merged) - len(s.items)
	s.items = merged
	s.mu.Unlock()
	if imported > 0 {
		s.changed()
	}
	return imported, skipped
}

// Restore replaces the ledger without calling the change hook.
func (s *TransactionStore) Restore(items []core.Transaction) {
	s.mu.Lock()
	s.items = slices.Clone(items)
	s.mu.Unlock()
	s.version.Add(1)
}

func (s *TransactionStore) Encode() (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := json.Marshal(nonNil(s.items))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyTransactions, err)
	}
	return map[string][]byte{KeyTransactions: b}, nil
}

func (s *TransactionStore) Load(data map[string][]byte) error {
	var items []core.Transaction
	if raw, ok := data[KeyTransactions]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decode %s: %w", KeyTransactions, err)
		}
	}
	s.Restore(items)
	return nil
}
