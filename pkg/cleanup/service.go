// Package cleanup provides data retention for expired simulation jobs.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/kingston-civic/civicsim/pkg/jobs"
)

// Service periodically sweeps expired simulation jobs from the memory
// tier and the database. Sweeps are idempotent and safe to run from
// multiple processes.
type Service struct {
	jobStore *jobs.Store
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the sweeper.
func NewService(jobStore *jobs.Store, interval time.Duration, logger *slog.Logger) *Service {
	return &Service{
		jobStore: jobStore,
		interval: interval,
		logger:   logger.With("component", "cleanup"),
	}
}

// Start launches the background sweep loop. A sweep runs immediately,
// then on every tick.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started", "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	count, err := s.jobStore.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("Job sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Swept expired jobs", "count", count)
	}
}
