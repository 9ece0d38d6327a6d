package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository keeps snapshots and the activity log in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository migrates the database at url and opens a pool.
func NewPostgresRepository(ctx context.Context, url string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) LoadSnapshot(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value::text FROM snapshots`)
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

func (r *PostgresRepository) SaveSnapshot(ctx context.Context, data map[string][]byte) error {
	if len(data) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for key, value := range data {
		batch.Queue(
			`INSERT INTO snapshots (key, value, updated_at) VALUES ($1, $2::jsonb, now())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			key, string(value))
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	slog.DebugContext(ctx, "Snapshot saved", "keys", len(data))
	return nil
}

func (r *PostgresRepository) RecordActivity(ctx context.Context, a Activity) (bool, error) {
	recordedAt := a.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO activity_log
			(event_id, event_type, entity_id, group_id, participant_id, amount, description, occurred_at, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (event_id) DO NOTHING`,
		a.EventID, a.EventType, a.EntityID, a.GroupID, a.ParticipantID, a.Amount, a.Description,
		a.OccurredAt.UTC(), recordedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) MarkExported(ctx context.Context, eventID string, at time.Time) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE activity_log SET exported_at = $1 WHERE event_id = $2`, at.UTC(), eventID); err != nil {
		return fmt.Errorf("mark activity exported: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, event_type, entity_id, group_id, participant_id, amount, description,
		        occurred_at, recorded_at, exported_at
		 FROM activity_log
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.EventID, &a.EventType, &a.EntityID, &a.GroupID, &a.ParticipantID,
			&a.Amount, &a.Description, &a.OccurredAt, &a.RecordedAt, &a.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}
