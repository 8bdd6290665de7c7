package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobRepo is the durable tier of the simulation job store. Each job is
// one JSON record with an expiry; whole-record overwrite matches the
// single-writer-per-job model.
type JobRepo struct {
	db *sql.DB
}

// Save writes the job record, replacing any previous version, and
// refreshes its expiry.
func (r *JobRepo) Save(ctx context.Context, jobID, sessionID string, record json.RawMessage, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO simulation_jobs (job_id, session_id, record, expires_at)
		VALUES ($1, $2, $3, now() + $4::interval)
		ON CONFLICT (job_id) DO UPDATE
		SET record = EXCLUDED.record,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()`,
		jobID, sessionID, record, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Get returns the unexpired job record, or ErrNotFound.
func (r *JobRepo) Get(ctx context.Context, jobID string) (json.RawMessage, error) {
	var record json.RawMessage
	err := r.db.QueryRowContext(ctx, `
		SELECT record FROM simulation_jobs
		WHERE job_id = $1 AND expires_at > now()`, jobID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	return record, nil
}

// Delete removes the job record.
func (r *JobRepo) Delete(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM simulation_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// DeleteExpired removes jobs past their expiry. Returns the number of
// deleted rows.
func (r *JobRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM simulation_jobs WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	return result.RowsAffected()
}
