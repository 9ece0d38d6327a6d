package backend

import (
	"context"

	"fintrack/internal/adapters"
	"fintrack/internal/storage"
	"fintrack/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result carries the stores the services run on and, for durable backends,
// the repository mirroring them.
type Result struct {
	Type         BackendType
	Entities     *store.Store
	Transactions *store.TransactionStore
	// Repository is nil for the memory backend.
	Repository storage.Repository
	Persister  *adapters.SnapshotPersister
	Cleanup    CleanupFunc
}

// Durable reports whether the stores are mirrored to a database.
func (r *Result) Durable() bool {
	return r.Repository != nil
}

// Close runs Cleanup if one is set.
func (r *Result) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend builds the stores for config and restores any persisted state.
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Options applied to both stores, mostly for tests.
	StoreOptions []store.Option
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
