package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/kingston-civic/civicsim/pkg/metrics"
	"github.com/kingston-civic/civicsim/pkg/store"
)

// RunFunc executes a full simulation and returns its serialized result.
type RunFunc func(ctx context.Context) (json.RawMessage, error)

// PromoteInput carries everything a promotion needs to compute its key
// and, on miss, run the simulation.
type PromoteInput struct {
	ScenarioID         string
	Proposal           ProposalFingerprint
	AgentModels        map[string]string
	ArchetypeOverrides map[string]string
	SimMode            string
	TotalAgents        int
	Run                RunFunc
}

// PromoteOutput is the outcome of a promotion: the key, the result, and
// whether it was served from cache.
type PromoteOutput struct {
	Cached      bool
	CacheKey    string
	Result      json.RawMessage
	ProviderMix string
}

// Service is the fingerprint cache: read-first, write-on-miss, with
// concurrent identical promotions collapsed into a single run.
type Service struct {
	repo   *store.PromotionCacheRepo
	group  singleflight.Group
	logger *slog.Logger
}

// NewService creates the cache service.
func NewService(repo *store.PromotionCacheRepo, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With("component", "cache"),
	}
}

// Lookup returns the stored entry for key, or store.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, key string) (*store.CacheEntry, error) {
	entry, err := s.repo.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry, nil
}

// Promote checks the cache for the input's fingerprint and, on miss,
// runs the simulation and stores the result. Two back-to-back promotes
// with the same inputs return the same result object; concurrent ones
// share a single run.
func (s *Service) Promote(ctx context.Context, input PromoteInput) (*PromoteOutput, error) {
	proposalHash := ProposalHash(input.Proposal)
	key := ComputeKey(input.ScenarioID, proposalHash, input.AgentModels, input.ArchetypeOverrides, input.SimMode)
	providerMix := ProviderMix(input.AgentModels, input.TotalAgents)

	if entry, err := s.Lookup(ctx, key); err == nil {
		s.logger.Info("Cache hit", "cache_key", key, "scenario_id", input.ScenarioID)
		return &PromoteOutput{
			Cached:      true,
			CacheKey:    key,
			Result:      entry.Result,
			ProviderMix: entry.ProviderMix,
		}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		// Storage failure degrades to an uncached run.
		s.logger.Warn("Cache lookup failed, running uncached", "cache_key", key, "error", err)
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		result, err := input.Run(ctx)
		if err != nil {
			return nil, err
		}

		inputs, err := json.Marshal(map[string]interface{}{
			"scenario_id":         input.ScenarioID,
			"proposal_hash":       proposalHash,
			"agent_models":        input.AgentModels,
			"archetype_overrides": personaHashes(input.ArchetypeOverrides),
			"sim_mode":            input.SimMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode cache inputs: %w", err)
		}

		entry := &store.CacheEntry{
			ScenarioID:  input.ScenarioID,
			CacheKey:    key,
			Inputs:      inputs,
			Result:      result,
			ProviderMix: providerMix,
		}
		if err := s.repo.Put(ctx, entry); err != nil {
			// Write failures omit caching, never fail the run.
			s.logger.Warn("Cache write failed", "cache_key", key, "error", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return &PromoteOutput{
		Cached:      false,
		CacheKey:    key,
		Result:      result.(json.RawMessage),
		ProviderMix: providerMix,
	}, nil
}

// Invalidate removes a scenario's cached runs, optionally only those
// that depended on agentKey.
func (s *Service) Invalidate(ctx context.Context, scenarioID, agentKey string) (int64, error) {
	deleted, err := s.repo.InvalidateScenario(ctx, scenarioID, agentKey)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Cache invalidated",
		"scenario_id", scenarioID, "agent_key", agentKey, "deleted", deleted)
	return deleted, nil
}

func personaHashes(overrides map[string]string) map[string]string {
	hashes := make(map[string]string, len(overrides))
	for key, persona := range overrides {
		hashes[key] = PersonaHash(persona)
	}
	return hashes
}
