package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CacheEntry is one content-addressed simulation result.
type CacheEntry struct {
	ScenarioID  string
	CacheKey    string
	Inputs      json.RawMessage
	Result      json.RawMessage
	ProviderMix string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PromotionCacheRepo stores completed simulation results keyed by
// fingerprint.
type PromotionCacheRepo struct {
	db *sql.DB
}

// Get returns the entry for cacheKey, or ErrNotFound.
func (r *PromotionCacheRepo) Get(ctx context.Context, cacheKey string) (*CacheEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT scenario_id, cache_key, inputs_json, result_json, COALESCE(provider_mix, ''), created_at, updated_at
		FROM promotion_cache
		WHERE cache_key = $1`, cacheKey)

	var entry CacheEntry
	err := row.Scan(&entry.ScenarioID, &entry.CacheKey, &entry.Inputs, &entry.Result,
		&entry.ProviderMix, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &entry, nil
}

// Put writes the entry, idempotently by cache key.
func (r *PromotionCacheRepo) Put(ctx context.Context, entry *CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO promotion_cache (scenario_id, cache_key, inputs_json, result_json, provider_mix)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE
		SET result_json = EXCLUDED.result_json,
		    provider_mix = EXCLUDED.provider_mix,
		    updated_at = now()`,
		entry.ScenarioID, entry.CacheKey, entry.Inputs, entry.Result, entry.ProviderMix)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// InvalidateScenario deletes a scenario's entries. When agentKey is
// non-empty, only entries whose recorded inputs mention that agent (in
// the model or persona override maps) are removed. Returns the number
// of deleted rows.
func (r *PromotionCacheRepo) InvalidateScenario(ctx context.Context, scenarioID, agentKey string) (int64, error) {
	var result sql.Result
	var err error
	if agentKey == "" {
		result, err = r.db.ExecContext(ctx,
			`DELETE FROM promotion_cache WHERE scenario_id = $1`, scenarioID)
	} else {
		result, err = r.db.ExecContext(ctx, `
			DELETE FROM promotion_cache
			WHERE scenario_id = $1
			  AND (jsonb_exists(inputs_json->'agent_models', $2)
			       OR jsonb_exists(inputs_json->'archetype_overrides', $2))`,
			scenarioID, agentKey)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
