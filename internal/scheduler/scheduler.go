// Package scheduler ticks the configured scan and provider-update cadences
// for every library (spec.md §4.J), driving robfig/cron/v3 the way
// trailarr-trailarr drives its own per-library sync-timing loop in
// settings.go, but against persisted per-cadence state rather than a single
// global interval.
package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/filmvault/curator/internal/store"
)

// Enqueuer is the seam the scheduler uses to submit work.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64) error
}

// jobTypeFor maps a cadence to the job type it triggers.
func jobTypeFor(cadence store.SchedulerCadence) string {
	switch cadence {
	case store.CadenceScan:
		return "scan-movie"
	case store.CadenceProviderUpdate:
		return "provider-update"
	default:
		return ""
	}
}

// MetricsRecorder is the seam for recording the last-run gauge;
// internal/metrics.Registry satisfies this.
type MetricsRecorder interface {
	RecordSchedulerRun(libraryID string, cadence string, at time.Time)
}

// Scheduler ticks once a minute, enqueuing due cadences while skipping any
// library/cadence pair that already has a pending or processing job of the
// corresponding type.
type Scheduler struct {
	State   *store.SchedulerRepo
	Jobs    *store.JobRepo
	Queue   Enqueuer
	Metrics MetricsRecorder // optional; nil skips gauge updates

	cron *cron.Cron
}

func New(state *store.SchedulerRepo, jobs *store.JobRepo, queue Enqueuer, metrics MetricsRecorder) *Scheduler {
	return &Scheduler{
		State:   state,
		Jobs:    jobs,
		Queue:   queue,
		Metrics: metrics,
		cron:    cron.New(),
	}
}

// Start registers the per-minute tick and starts the cron clock. It does not
// block; call Stop to shut it down.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@every 1m", func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// tick is one pass over due cadences; each library/cadence runs
// independently so one failure doesn't block the rest.
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.State.DueNow(ctx)
	if err != nil {
		return
	}
	for _, d := range due {
		s.runDue(ctx, d)
	}
}

func (s *Scheduler) runDue(ctx context.Context, d store.SchedulerState) {
	jobType := jobTypeFor(d.Cadence)
	if jobType == "" {
		return
	}

	exists, err := s.Jobs.PendingOrProcessingExists(ctx, jobType, "library", d.LibraryID)
	if err != nil || exists {
		return
	}

	if err := s.Queue.Enqueue(ctx, jobType, store.PriorityNormal, map[string]any{
		"library_id": d.LibraryID,
		"cadence":    string(d.Cadence),
	}, "library", d.LibraryID); err != nil {
		return
	}

	now := time.Now()
	_ = s.State.MarkRun(ctx, d.LibraryID, d.Cadence, now)
	if s.Metrics != nil {
		s.Metrics.RecordSchedulerRun(strconv.FormatInt(d.LibraryID, 10), string(d.Cadence), now)
	}
}
