package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// LedgerEvent is one row in the per-session world event log.
type LedgerEvent struct {
	ID        string
	SessionID string
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// LedgerRepo stores the append-only per-session event log.
type LedgerRepo struct {
	db *sql.DB
}

// Insert appends an event and returns its id.
func (r *LedgerRepo) Insert(ctx context.Context, sessionID, eventType string, payload json.RawMessage) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO session_ledger (session_id, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id`, sessionID, eventType, payload).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert ledger event: %w", err)
	}
	return id, nil
}

// List returns a session's events in insertion order, optionally
// filtered by event type.
func (r *LedgerRepo) List(ctx context.Context, sessionID, eventType string) ([]LedgerEvent, error) {
	query := `
		SELECT id, session_id, event_type, payload, created_at
		FROM session_ledger
		WHERE session_id = $1`
	args := []interface{}{sessionID}
	if eventType != "" {
		query += ` AND event_type = $2`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []LedgerEvent
	for rows.Next() {
		var e LedgerEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Clear removes all events for a session.
func (r *LedgerRepo) Clear(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_ledger WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session ledger: %w", err)
	}
	return nil
}
