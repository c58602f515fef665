// Package warmup keeps the cache populated for a fixed set of parameter sets.
// Each configured job runs in its own loop, refreshing on a fixed interval
// while the local time is inside the job's window.
package warmup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/posenv/internal/cache"
	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/fingerprint"
	"github.com/aristath/posenv/internal/status"
	"github.com/aristath/posenv/internal/validation"
)

// Job is one configured warmup job.
type Job struct {
	Name     string
	Body     validation.Body
	Window   Window
	Interval time.Duration
}

// Orchestrator runs a request's sections.
type Orchestrator interface {
	RunAll(ctx context.Context, req domain.Request) (domain.OrchestrationResult, error)
}

// Scheduler supervises one loop per job.
type Scheduler struct {
	jobs      []Job
	orch      Orchestrator
	validator *validation.Validator
	cache     *cache.Cache[domain.OrchestrationResult]
	ttl       cache.TTLPolicy
	status    *status.Registry
	log       zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	wg sync.WaitGroup
}

// New creates a scheduler for the given jobs.
func New(
	jobs []Job,
	orch Orchestrator,
	validator *validation.Validator,
	c *cache.Cache[domain.OrchestrationResult],
	ttl cache.TTLPolicy,
	reg *status.Registry,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:      jobs,
		orch:      orch,
		validator: validator,
		cache:     c,
		ttl:       ttl,
		status:    reg,
		log:       log.With().Str("component", "warmup").Logger(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// SetClock replaces the time source and sleep function. Used by tests.
func (s *Scheduler) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) {
	s.now = now
	s.sleep = sleep
}

// sleepCtx waits for d and reports false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Start registers every job, launches its loop and marks the server running.
// It returns once all loops are launched; they run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.status.RegisterJob(job.Name, job.Window.String(), job.Interval)
	}

	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.runJob(ctx, job)
		}(job)
	}

	s.status.SetServerStatus(status.ServerRunning)
	s.log.Info().Int("jobs", len(s.jobs)).Msg("Warmup jobs launched")
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// target is a job's validated request with its derived cache key and TTL.
type target struct {
	req domain.Request
	key string
	ttl time.Duration
}

func (s *Scheduler) prepare(job Job) (target, error) {
	req, err := s.validator.FromBody(job.Body)
	if err != nil {
		return target{}, &domain.ConfigurationError{Job: job.Name, Err: err}
	}
	key, err := fingerprint.Build(req)
	if err != nil {
		return target{}, &domain.ConfigurationError{Job: job.Name, Err: err}
	}
	return target{req: req, key: key, ttl: s.ttl.For(req.SectionNames())}, nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Name).Logger()

	tgt, err := s.prepare(job)
	if err != nil {
		log.Error().Err(err).Msg("Warmup job disabled")
		s.status.MarkConfigError(job.Name, err)
		return
	}

	log.Info().
		Str("window", job.Window.String()).
		Dur("interval", job.Interval).
		Dur("ttl", tgt.ttl).
		Msg("Warmup job started")

	for {
		s.tick(ctx, job, tgt, log)
		if !s.sleep(ctx, job.Interval) {
			log.Debug().Msg("Warmup job stopped")
			return
		}
	}
}

// tick performs one iteration. A panic is recorded as a job error so the
// loop continues.
func (s *Scheduler) tick(ctx context.Context, job Job, tgt target, log zerolog.Logger) {
	now := s.now()
	if !job.Window.Contains(now) {
		s.status.MarkOutsideWindow(job.Name)
		return
	}

	s.status.MarkRunning(job.Name)
	start := s.now()

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			log.Error().Err(err).Msg("Warmup refresh panicked")
			s.status.MarkError(job.Name, s.now(), s.now().Sub(start), err)
		}
	}()

	result, err := s.orch.RunAll(ctx, tgt.req)
	elapsed := s.now().Sub(start)
	if err != nil {
		log.Error().Err(err).Msg("Warmup refresh failed")
		s.status.MarkError(job.Name, s.now(), elapsed, err)
		return
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err := fmt.Errorf("refresh interrupted: %w", ctxErr)
		log.Debug().Err(err).Msg("Warmup refresh discarded")
		s.status.MarkError(job.Name, s.now(), elapsed, err)
		return
	}

	s.cache.Set(tgt.key, result, tgt.ttl)
	s.status.MarkIdle(job.Name, s.now(), elapsed)

	event := log.Debug()
	if failed := result.Failed(); len(failed) > 0 {
		event = log.Warn().Strs("failed_sections", failed)
	}
	event.Dur("elapsed", elapsed).Msg("Warmup refresh complete")
}
