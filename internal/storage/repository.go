package storage

import (
	"context"
	"time"
)

// Activity is one ledger event as recorded by the worker.
type Activity struct {
	ID            int64      `json:"id"`
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type"`
	EntityID      string     `json:"entity_id"`
	GroupID       string     `json:"group_id,omitempty"`
	ParticipantID string     `json:"participant_id,omitempty"`
	Amount        float64    `json:"amount"`
	Description   string     `json:"description"`
	OccurredAt    time.Time  `json:"occurred_at"`
	RecordedAt    time.Time  `json:"recorded_at"`
	ExportedAt    *time.Time `json:"exported_at,omitempty"`
}

// SnapshotRepository persists the keyed JSON collections of the in-process
// stores. Each key holds one JSON array.
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context) (map[string][]byte, error)
	// SaveSnapshot upserts the given keys in one transaction. Keys not
	// present in data are left untouched.
	SaveSnapshot(ctx context.Context, data map[string][]byte) error
	Close() error
}

// ActivityRepository stores the activity log.
type ActivityRepository interface {
	// RecordActivity inserts a. A repeated event id is ignored and reports false.
	RecordActivity(ctx context.Context, a Activity) (bool, error)
	MarkExported(ctx context.Context, eventID string, at time.Time) error
	// RecentActivity returns up to limit entries, most recent occurrence first.
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
	Ping(ctx context.Context) error
}

// Repository is implemented by the SQL backends.
type Repository interface {
	SnapshotRepository
	ActivityRepository
}

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 500
)

// ClampLimit bounds an activity page size, falling back to the default for
// non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultActivityLimit
	case limit > MaxActivityLimit:
		return MaxActivityLimit
	default:
		return limit
	}
}
