// Package adapters connects the in-process stores to a durable repository.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/storage"
	"fintrack/internal/store"
)

const defaultSaveTimeout = 5 * time.Second

// SnapshotPersister mirrors the entity and transaction stores into a
// SnapshotRepository. Touched keys are rewritten after every mutation.
type SnapshotPersister struct {
	repo     storage.SnapshotRepository
	entities *store.Store
	txs      *store.TransactionStore
	timeout  time.Duration

	// Serializes encode+save so the last write always carries the newest state.
	mu       sync.Mutex
	failures int
}

func NewSnapshotPersister(repo storage.SnapshotRepository, entities *store.Store, txs *store.TransactionStore) *SnapshotPersister {
	return &SnapshotPersister{
		repo:     repo,
		entities: entities,
		txs:      txs,
		timeout:  defaultSaveTimeout,
	}
}

// Restore loads the persisted snapshot into both stores. It must run before
// Attach so the restore itself is not written back.
func (p *SnapshotPersister) Restore(ctx context.Context) error {
	data, err := p.repo.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := p.entities.Load(data); err != nil {
		return fmt.Errorf("restore entities: %w", err)
	}
	if err := p.txs.Load(data); err != nil {
		return fmt.Errorf("restore transactions: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot restored",
		"keys", len(data),
		"participants", len(p.entities.Participants()),
		"groups", len(p.entities.Groups()),
		"expenses", len(p.entities.Expenses()),
		"transactions", len(p.txs.List()))
	return nil
}

// Attach registers the change hooks on both stores.
func (p *SnapshotPersister) Attach() {
	p.entities.OnChange(p.saveEntities)
	p.txs.OnChange(func([]string) { p.saveTransactions() })
}

// Detach removes the change hooks.
func (p *SnapshotPersister) Detach() {
	p.entities.OnChange(nil)
	p.txs.OnChange(nil)
}

// Failures counts saves that returned an error.
func (p *SnapshotPersister) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *SnapshotPersister) saveEntities(keys []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.entities.Encode(keys...)
	if err != nil {
		p.failures++
		slog.Error("Failed to encode entities", "keys", keys, "error", err)
		return
	}
	p.saveLocked(data)
}

func (p *SnapshotPersister) saveTransactions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.txs.Encode()
	if err != nil {
		p.failures++
		slog.Error("Failed to encode transactions", "error", err)
		return
	}
	p.saveLocked(data)
}

func (p *SnapshotPersister) saveLocked(data map[string][]byte) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.repo.SaveSnapshot(ctx, data); err != nil {
		p.failures++
		slog.ErrorContext(ctx, "Failed to persist snapshot", "keys", len(data), "error", err)
	}
}
