// Package cache implements the content-addressed result cache for
// promoted simulation runs.
package cache

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kingston-civic/civicsim/pkg/config"
)

// ProposalFingerprint is the canonical subset of a proposal that
// participates in cache keys. Fields outside this set never affect the
// key.
type ProposalFingerprint struct {
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	SpatialType  string   `json:"spatial_type"`
	CitywideType string   `json:"citywide_type"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusKM     *float64 `json:"radius_km"`
}

// ProposalHash computes the 16-hex proposal component of the cache key:
// MD5 over the canonical fields serialized with sorted keys.
func ProposalHash(p ProposalFingerprint) string {
	canonical := map[string]interface{}{
		"type":          p.Type,
		"title":         p.Title,
		"summary":       p.Summary,
		"spatial_type":  p.SpatialType,
		"citywide_type": p.CitywideType,
		"latitude":      p.Latitude,
		"longitude":     p.Longitude,
		"radius_km":     p.RadiusKM,
	}
	// json.Marshal sorts map keys, giving a stable serialization.
	data, _ := json.Marshal(canonical)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:16]
}

// PersonaHash computes the 8-hex digest of a persona override.
func PersonaHash(persona string) string {
	sum := md5.Sum([]byte(persona))
	return hex.EncodeToString(sum[:])[:8]
}

// ComputeKey derives the 32-hex cache key over all run inputs:
// scenario, canonical proposal hash, per-agent model map, per-agent
// persona hashes, and simulation mode.
func ComputeKey(scenarioID, proposalHash string, agentModels, archetypeOverrides map[string]string, simMode string) string {
	payload := map[string]interface{}{
		"scenario_id":         scenarioID,
		"proposal_hash":       proposalHash,
		"agent_models":        sortedPairs(agentModels),
		"archetype_overrides": sortedPersonaPairs(archetypeOverrides),
		"sim_mode":            simMode,
	}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}

// ProviderMix renders a short display string of the model families used
// by a run, e.g. "gemini:2, nova:5". Only the provided entries are
// classified; an empty map reads as the default family across the full
// agent roster.
func ProviderMix(agentModels map[string]string, totalAgents int) string {
	counts := make(map[string]int)
	for _, model := range agentModels {
		counts[config.ModelFamily(model)]++
	}
	if len(counts) == 0 {
		counts["nova"] = totalAgents
	}

	families := make([]string, 0, len(counts))
	for f := range counts {
		families = append(families, f)
	}
	sort.Strings(families)

	parts := make([]string, 0, len(families))
	for _, f := range families {
		parts = append(parts, fmt.Sprintf("%s:%d", f, counts[f]))
	}
	return strings.Join(parts, ", ")
}

func sortedPairs(m map[string]string) [][2]string {
	pairs := make([][2]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, [2]string{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

func sortedPersonaPairs(m map[string]string) [][2]string {
	pairs := make([][2]string, 0, len(m))
	for k, persona := range m {
		pairs = append(pairs, [2]string{k, PersonaHash(persona)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}
