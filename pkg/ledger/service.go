// Package ledger persists per-session world events so world-state
// snapshots survive process restarts. Every write is best effort: a
// failed ledger append degrades observability, never a simulation.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/store"
)

// Event types.
const (
	EventPolicyAdopted = "policy_adopted"
	EventBuildAdopted  = "build_adopted"
	EventDMShift       = "dm_shift"
)

const maxTopShifts = 3

// Service is the durable world-event log.
type Service struct {
	repo    *store.LedgerRepo
	enabled bool
	logger  *slog.Logger
}

// NewService creates the ledger. When disabled (or repo is nil) every
// write is a no-op and every read returns empty.
func NewService(repo *store.LedgerRepo, enabled bool, logger *slog.Logger) *Service {
	if repo == nil {
		enabled = false
	}
	return &Service{
		repo:    repo,
		enabled: enabled,
		logger:  logger.With("component", "ledger"),
	}
}

// Enabled reports whether events are being persisted.
func (s *Service) Enabled() bool {
	return s.enabled
}

// WriteEvent appends an event. Failures are logged and swallowed.
func (s *Service) WriteEvent(ctx context.Context, sessionID, eventType string, payload interface{}) {
	if !s.enabled {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("Failed to encode ledger event",
			"session_id", sessionID, "event_type", eventType, "error", err)
		return
	}
	if _, err := s.repo.Insert(ctx, sessionID, eventType, data); err != nil {
		s.logger.Warn("Failed to write ledger event",
			"session_id", sessionID, "event_type", eventType, "error", err)
	}
}

// SessionEvents returns a session's events in insertion order,
// optionally filtered by type. Failures return an empty list.
func (s *Service) SessionEvents(ctx context.Context, sessionID, eventType string) []store.LedgerEvent {
	if !s.enabled {
		return nil
	}
	events, err := s.repo.List(ctx, sessionID, eventType)
	if err != nil {
		s.logger.Warn("Failed to read session ledger", "session_id", sessionID, "error", err)
		return nil
	}
	return events
}

// BuildWorldState folds a session's events into a world-state snapshot.
// The version equals the event count; the top relationship shifts are
// the three largest by absolute score. Undecodable events are skipped.
func (s *Service) BuildWorldState(ctx context.Context, sessionID string) models.WorldStateSummary {
	events := s.SessionEvents(ctx, sessionID, "")

	state := models.WorldStateSummary{Version: len(events)}
	var shifts []models.RelationshipShift

	for _, event := range events {
		switch event.EventType {
		case EventPolicyAdopted:
			var policy models.AdoptedPolicySummary
			if err := json.Unmarshal(event.Payload, &policy); err != nil {
				s.logger.Warn("Skipping undecodable ledger event", "event_id", event.ID, "error", err)
				continue
			}
			state.AdoptedPolicies = append(state.AdoptedPolicies, policy)
		case EventBuildAdopted:
			var item models.PlacedItemSummary
			if err := json.Unmarshal(event.Payload, &item); err != nil {
				s.logger.Warn("Skipping undecodable ledger event", "event_id", event.ID, "error", err)
				continue
			}
			state.PlacedItems = append(state.PlacedItems, item)
		case EventDMShift:
			var shift models.RelationshipShift
			if err := json.Unmarshal(event.Payload, &shift); err != nil {
				s.logger.Warn("Skipping undecodable ledger event", "event_id", event.ID, "error", err)
				continue
			}
			shifts = append(shifts, shift)
		}
	}

	sort.SliceStable(shifts, func(i, j int) bool {
		return abs(shifts[i].Score) > abs(shifts[j].Score)
	})
	if len(shifts) > maxTopShifts {
		shifts = shifts[:maxTopShifts]
	}
	state.TopRelationshipShifts = shifts
	return state
}

// ClearSession drops a session's events, typically on scenario reset.
func (s *Service) ClearSession(ctx context.Context, sessionID string) {
	if !s.enabled {
		return
	}
	if err := s.repo.Clear(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to clear session ledger", "session_id", sessionID, "error", err)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
