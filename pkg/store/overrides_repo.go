package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AgentOverride is a per-(scenario, agent) model or persona override.
// Nil fields mean "use the default".
type AgentOverride struct {
	ScenarioID string
	AgentKey   string
	Model      *string
	Archetype  *string
	UpdatedAt  time.Time
}

// AgentOverrideRepo stores per-scenario agent customizations.
type AgentOverrideRepo struct {
	db *sql.DB
}

// Get returns the override for (scenario, agent), or ErrNotFound.
func (r *AgentOverrideRepo) Get(ctx context.Context, scenarioID, agentKey string) (*AgentOverride, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT scenario_id, agent_key, model, archetype_override, updated_at
		FROM agent_overrides
		WHERE scenario_id = $1 AND agent_key = $2`, scenarioID, agentKey)

	var o AgentOverride
	err := row.Scan(&o.ScenarioID, &o.AgentKey, &o.Model, &o.Archetype, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read agent override: %w", err)
	}
	return &o, nil
}

// List returns all overrides for a scenario.
func (r *AgentOverrideRepo) List(ctx context.Context, scenarioID string) ([]AgentOverride, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scenario_id, agent_key, model, archetype_override, updated_at
		FROM agent_overrides
		WHERE scenario_id = $1
		ORDER BY agent_key`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var overrides []AgentOverride
	for rows.Next() {
		var o AgentOverride
		if err := rows.Scan(&o.ScenarioID, &o.AgentKey, &o.Model, &o.Archetype, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// Upsert creates or updates the override for (scenario, agent).
func (r *AgentOverrideRepo) Upsert(ctx context.Context, o *AgentOverride) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agent_overrides (scenario_id, agent_key, model, archetype_override)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scenario_id, agent_key) DO UPDATE
		SET model = EXCLUDED.model,
		    archetype_override = EXCLUDED.archetype_override,
		    updated_at = now()`,
		o.ScenarioID, o.AgentKey, o.Model, o.Archetype)
	if err != nil {
		return fmt.Errorf("failed to upsert agent override: %w", err)
	}
	return nil
}

// Delete removes the override for (scenario, agent). Deleting a missing
// override is not an error.
func (r *AgentOverrideRepo) Delete(ctx context.Context, scenarioID, agentKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM agent_overrides WHERE scenario_id = $1 AND agent_key = $2`,
		scenarioID, agentKey)
	if err != nil {
		return fmt.Errorf("failed to delete agent override: %w", err)
	}
	return nil
}

// DeleteAll removes every override for a scenario. Returns the number
// of deleted rows.
func (r *AgentOverrideRepo) DeleteAll(ctx context.Context, scenarioID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM agent_overrides WHERE scenario_id = $1`, scenarioID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete agent overrides: %w", err)
	}
	return result.RowsAffected()
}
