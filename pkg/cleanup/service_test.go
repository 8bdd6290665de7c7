package cleanup

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/jobs"
)

func TestSweepRemovesExpiredJobs(t *testing.T) {
	ctx := context.Background()
	// Negative TTL makes every job expire the moment it is written.
	jobStore := jobs.NewStore(nil, -time.Second, slog.Default())

	job, err := jobStore.Create(ctx, "sess-1", nil)
	require.NoError(t, err)

	svc := NewService(jobStore, 10*time.Millisecond, slog.Default())
	svc.Start(ctx)
	defer svc.Stop()

	assert.Eventually(t, func() bool {
		_, err := jobStore.Get(ctx, job.JobID)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestStartStopIdempotent(t *testing.T) {
	jobStore := jobs.NewStore(nil, time.Hour, slog.Default())
	svc := NewService(jobStore, time.Minute, slog.Default())

	svc.Start(context.Background())
	svc.Start(context.Background())
	svc.Stop()
	// Stopping again is a no-op rather than a deadlock.
	svc.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	jobStore := jobs.NewStore(nil, time.Hour, slog.Default())
	svc := NewService(jobStore, time.Minute, slog.Default())
	svc.Stop()
}
