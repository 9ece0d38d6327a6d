package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/adapters"
	"fintrack/internal/storage"
	"fintrack/internal/store"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return f.createDurableBackend(ctx, config, repo)
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return f.createDurableBackend(ctx, config, repo)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) *Result {
	f.logger.Info("Initialized memory backend")
	return &Result{
		Type:         MemoryBackend,
		Entities:     store.New(config.StoreOptions...),
		Transactions: store.NewTransactionStore(config.StoreOptions...),
	}
}

// createDurableBackend restores the persisted snapshot and then mirrors every
// later mutation into repo.
func (f *DefaultFactory) createDurableBackend(ctx context.Context, config Config, repo storage.Repository) (*Result, error) {
	entities := store.New(config.StoreOptions...)
	txs := store.NewTransactionStore(config.StoreOptions...)

	persister := adapters.NewSnapshotPersister(repo, entities, txs)
	if err := persister.Restore(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	persister.Attach()

	return &Result{
		Type:         config.Type,
		Entities:     entities,
		Transactions: txs,
		Repository:   repo,
		Persister:    persister,
		Cleanup: func() error {
			persister.Detach()
			if n := persister.Failures(); n > 0 {
				f.logger.Warn("Snapshot writes failed during run", "failures", n)
			}
			return repo.Close()
		},
	}, nil
}
