package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingston-civic/civicsim/pkg/store"
)

// ErrNotFound indicates the job does not exist or has expired.
var ErrNotFound = errors.New("job not found")

type memoryEntry struct {
	job       *SimulationJob
	expiresAt time.Time
}

// Store tracks simulation jobs. Records are written through an
// in-memory map to Postgres; the map serves the hot polling path and
// the database survives restarts. When no repository is available the
// store degrades to memory only.
type Store struct {
	repo   *store.JobRepo
	ttl    time.Duration
	logger *slog.Logger

	mu  sync.RWMutex
	mem map[string]memoryEntry
}

// NewStore creates a job store. repo may be nil, in which case jobs
// live only in memory and are lost on restart.
func NewStore(repo *store.JobRepo, ttl time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		repo:   repo,
		ttl:    ttl,
		logger: logger.With("component", "jobstore"),
	}
	s.mem = make(map[string]memoryEntry)
	if repo == nil {
		s.logger.Warn("Job persistence unavailable, using in-memory store only")
	}
	return s
}

// Create registers a new pending job and persists it.
func (s *Store) Create(ctx context.Context, sessionID string, payload map[string]interface{}) (*SimulationJob, error) {
	job := &SimulationJob{
		JobID:          uuid.New().String(),
		SessionID:      sessionID,
		Status:         StatusPending,
		Phase:          PhaseInitializing,
		Message:        PhaseMessages[PhaseInitializing],
		RequestPayload: payload,
		CreatedAt:      float64(time.Now().UnixMilli()) / 1000,
	}
	if err := s.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns the job by id, preferring the in-memory copy and falling
// back to the database so polling survives a restart.
func (s *Store) Get(ctx context.Context, jobID string) (*SimulationJob, error) {
	s.mu.RLock()
	entry, ok := s.mem[jobID]
	s.mu.RUnlock()
	if ok {
		if time.Now().Before(entry.expiresAt) {
			return entry.job.Clone(), nil
		}
		s.mu.Lock()
		delete(s.mem, jobID)
		s.mu.Unlock()
	}

	if s.repo == nil {
		return nil, ErrNotFound
	}
	record, err := s.repo.Get(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var job SimulationJob
	if err := json.Unmarshal(record, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}

	s.mu.Lock()
	s.mem[jobID] = memoryEntry{job: &job, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return job.Clone(), nil
}

// Update persists the job's current state. The memory tier keeps a
// snapshot, not the caller's pointer: the running simulation keeps
// mutating its record while pollers read. Database write failures are
// logged but never fail the update; the in-memory copy remains
// authoritative for the lifetime of the process.
func (s *Store) Update(ctx context.Context, job *SimulationJob) error {
	snapshot := job.Clone()
	s.mu.Lock()
	s.mem[job.JobID] = memoryEntry{job: snapshot, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	if s.repo == nil {
		return nil
	}
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.JobID, err)
	}
	if err := s.repo.Save(ctx, job.JobID, job.SessionID, record, s.ttl); err != nil {
		s.logger.Warn("Job persistence write failed", "job_id", job.JobID, "error", err)
	}
	return nil
}

// Delete removes the job from both tiers.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.mem, jobID)
	s.mu.Unlock()

	if s.repo == nil {
		return nil
	}
	return s.repo.Delete(ctx, jobID)
}

// SweepExpired drops expired jobs from both tiers and returns how many
// were removed from the database.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	for id, entry := range s.mem {
		if now.After(entry.expiresAt) {
			delete(s.mem, id)
		}
	}
	s.mu.Unlock()

	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteExpired(ctx)
}
