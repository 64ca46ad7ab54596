// Package queue implements the persistent priority job queue of spec.md
// §4.H: a dispatcher loop claiming leased work from Postgres, a worker
// pool invoking registered handlers, and retry/backoff classification via
// internal/errs. The chaining between scan, enrich, publish, and notify is
// done by the handlers themselves, each enqueuing the next job.
package queue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/logging"
	"github.com/filmvault/curator/internal/store"
)

// Handler processes one job's payload. Returning an *errs.Error lets the
// dispatcher classify retryability; runJob wraps a bare error as
// provider.unavailable.
type Handler func(ctx context.Context, job *store.Job) error

// Queue is the dispatcher + worker pool + handler registry.
type Queue struct {
	Jobs   *store.JobRepo
	Policy errs.Policy

	LeaseDuration   time.Duration
	LeaseRenewEvery time.Duration
	PollInterval    time.Duration
	Workers         int

	handlers map[string]Handler
	mu       sync.RWMutex
	rnd      *rand.Rand

	metrics *metrics
}

type metrics struct {
	claimed   prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter
	retried   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		claimed:   prometheus.NewCounter(prometheus.CounterOpts{Name: "curator_queue_jobs_claimed_total"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{Name: "curator_queue_jobs_completed_total"}),
		failed:    prometheus.NewCounter(prometheus.CounterOpts{Name: "curator_queue_jobs_failed_total"}),
		retried:   prometheus.NewCounter(prometheus.CounterOpts{Name: "curator_queue_jobs_retried_total"}),
	}
	if reg != nil {
		reg.MustRegister(m.claimed, m.completed, m.failed, m.retried)
	}
	return m
}

// New builds a Queue. reg may be nil to skip metrics registration (tests).
func New(jobs *store.JobRepo, reg prometheus.Registerer) *Queue {
	return &Queue{
		Jobs:            jobs,
		Policy:          errs.DefaultPolicy,
		LeaseDuration:   2 * time.Minute,
		LeaseRenewEvery: 45 * time.Second,
		PollInterval:    500 * time.Millisecond,
		Workers:         4,
		handlers:        map[string]Handler{},
		rnd:             rand.New(rand.NewSource(1)),
		metrics:         newMetrics(reg),
	}
}

// RegisterHandler binds a handler to a job type (spec.md §4.H "registerHandler").
func (q *Queue) RegisterHandler(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Enqueue inserts a new job. Satisfies enrich.JobEnqueuer and scan.Enqueuer.
func (q *Queue) Enqueue(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64) error {
	_, err := q.Jobs.Add(ctx, jobType, priority, payload, q.Policy.MaxAttempts, entityType, entityID, "")
	return err
}

// EnqueueWithCorrelation is Enqueue plus a correlation id, used by the
// webhook dispatcher to tie a fan-out group together (spec.md §4.I).
func (q *Queue) EnqueueWithCorrelation(ctx context.Context, jobType string, priority int, payload any, entityType string, entityID int64, correlationID string) error {
	_, err := q.Jobs.Add(ctx, jobType, priority, payload, q.Policy.MaxAttempts, entityType, entityID, correlationID)
	return err
}

// Run starts the worker pool; it blocks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.workerLoop(ctx)
		}()
	}
	go q.reclaimLoop(ctx)
	wg.Wait()
}

func (q *Queue) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(q.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for q.claimAndRun(ctx) {
				// drain eligible work before waiting for the next tick
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// claimAndRun claims one job and runs it, returning true if a job was
// claimed (so the caller can immediately try for another).
func (q *Queue) claimAndRun(ctx context.Context) bool {
	job, err := q.Jobs.ClaimNext(ctx, q.LeaseDuration)
	if err != nil || job == nil {
		return false
	}
	if q.metrics != nil {
		q.metrics.claimed.Inc()
	}

	q.runJob(ctx, job)
	if job.IsEntityScoped() {
		_ = q.Jobs.ReleaseEntityLock(ctx, job.EntityType, job.EntityID)
	}
	return true
}

func (q *Queue) runJob(ctx context.Context, job *store.Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()
	if !ok {
		_ = q.Jobs.Fail(ctx, job.ID, "no handler registered for job type "+job.Type, true)
		if q.metrics != nil {
			q.metrics.failed.Inc()
		}
		return
	}

	attempt := job.RetryCount + 1
	jobLogger := logging.ForJob(job.ID, job.Type, job.EntityType, job.EntityID, attempt)
	jobCtx, cancel := context.WithCancel(logging.WithContext(ctx, jobLogger))
	defer cancel()
	stopRenew := q.startLeaseRenewal(jobCtx, job.ID)
	defer stopRenew()

	start := time.Now()
	err := handler(jobCtx, job)
	elapsed := time.Since(start)

	if err == nil {
		if cerr := q.Jobs.Complete(ctx, job.ID); cerr == nil && q.metrics != nil {
			q.metrics.completed.Inc()
		}
		logging.Duration(jobLogger.Info(), elapsed).Msg("job completed")
		return
	}

	tagged, ok := errs.As(err)
	if !ok {
		tagged = errs.Wrap(errs.KindProviderUnavailable, err, "unclassified handler error")
	}

	if q.Policy.Decide(tagged, attempt) {
		delay := q.Policy.NextDelay(tagged, attempt, q.rnd)
		_ = q.Jobs.Reschedule(ctx, job.ID, delay, tagged.Error())
		if q.metrics != nil {
			q.metrics.retried.Inc()
		}
		logging.Duration(jobLogger.Warn(), elapsed).Err(tagged).Dur("retry_after", delay).Msg("job rescheduled")
		return
	}

	dead := job.RetryCount >= q.Policy.MaxAttempts
	_ = q.Jobs.Fail(ctx, job.ID, tagged.Error(), dead)
	logging.Duration(jobLogger.Error(), elapsed).Err(tagged).Bool("dead", dead).Msg("job failed")
	if q.metrics != nil {
		q.metrics.failed.Inc()
	}
}

func (q *Queue) startLeaseRenewal(ctx context.Context, jobID int64) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(q.LeaseRenewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = q.Jobs.RenewLease(ctx, jobID, q.LeaseDuration)
			}
		}
	}()
	return func() { close(done) }
}

func (q *Queue) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(q.LeaseDuration / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = q.Jobs.ReclaimExpiredLeases(ctx)
		}
	}
}

// Stats exposes queue depth for the system/health surface (spec.md §6).
func (q *Queue) Stats(ctx context.Context) (*store.Stats, error) {
	return q.Jobs.Stats(ctx)
}
