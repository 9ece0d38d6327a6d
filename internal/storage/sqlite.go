package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository keeps snapshots and the activity log in a SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps pragmas consistent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, data map[string][]byte) error {
	if len(data) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for key, value := range data {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(value), now)
		if err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	slog.DebugContext(ctx, "Snapshot saved", "keys", len(data))
	return nil
}

func (r *SQLiteRepository) RecordActivity(ctx context.Context, a Activity) (bool, error) {
	recordedAt := a.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log
			(event_id, event_type, entity_id, group_id, participant_id, amount, description, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO NOTHING`,
		a.EventID, a.EventType, a.EntityID, a.GroupID, a.ParticipantID, a.Amount, a.Description,
		formatTime(a.OccurredAt), formatTime(recordedAt))
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE activity_log SET exported_at = ? WHERE event_id = ?`, formatTime(at), eventID)
	if err != nil {
		return fmt.Errorf("mark activity exported: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, event_type, entity_id, group_id, participant_id, amount, description,
		        occurred_at, recorded_at, exported_at
		 FROM activity_log
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var (
			a                      Activity
			occurredAt, recordedAt string
			exportedAt             sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.EventType, &a.EntityID, &a.GroupID, &a.ParticipantID,
			&a.Amount, &a.Description, &occurredAt, &recordedAt, &exportedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if a.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		if a.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		if exportedAt.Valid {
			t, err := parseTime(exportedAt.String)
			if err != nil {
				return nil, err
			}
			a.ExportedAt = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}

// Times are stored as fixed-width UTC text so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return t, nil
}
