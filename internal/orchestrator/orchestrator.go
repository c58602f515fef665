// Package orchestrator fans a validated request out to its sections over a
// shared bounded pool and gathers the results.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/sections"
)

// DefaultTimeout is the per-section budget when none is configured.
const DefaultTimeout = 60 * time.Second

// Config holds per-section timeout budgets.
type Config struct {
	DefaultTimeout time.Duration
	Timeouts       map[string]time.Duration
}

// Orchestrator runs every requested section concurrently.
// It is safe for concurrent use by request handlers and warmup jobs.
type Orchestrator struct {
	registry *sections.Registry
	runner   *sections.Runner
	pool     *Pool
	cfg      Config
	log      zerolog.Logger
}

// New creates an orchestrator.
func New(registry *sections.Registry, runner *sections.Runner, pool *Pool, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	return &Orchestrator{
		registry: registry,
		runner:   runner,
		pool:     pool,
		cfg:      cfg,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Pool returns the shared worker pool.
func (o *Orchestrator) Pool() *Pool {
	return o.pool
}

// TimeoutFor returns the budget for one section.
func (o *Orchestrator) TimeoutFor(section string) time.Duration {
	if t, ok := o.cfg.Timeouts[section]; ok {
		return t
	}
	return o.cfg.DefaultTimeout
}

type job struct {
	name    string
	section sections.Section
	params  domain.SectionParams
}

// RunAll runs every section in req and returns one result per section.
// It fails only when a section name is unknown; section failures are
// reported inside the result.
func (o *Orchestrator) RunAll(ctx context.Context, req domain.Request) (domain.OrchestrationResult, error) {
	jobs := make([]job, 0, len(req.Sections))
	for _, name := range req.SectionNames() {
		s, err := o.registry.Get(name)
		if err != nil {
			return nil, domain.NewValidationError("section parameters", "%v", err)
		}
		params := req.Sections[name]
		if params == nil {
			params = s.NewParams()
		}
		jobs = append(jobs, job{name: name, section: s, params: params})
	}

	start := time.Now()
	results := make(domain.OrchestrationResult, len(jobs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			res := o.runOne(ctx, req.Common, j)

			mu.Lock()
			results[j.name] = res
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	failed := results.Failed()
	event := o.log.Debug()
	if len(failed) > 0 {
		event = o.log.Warn().Strs("failed", failed)
	}
	event.
		Int("sections", len(jobs)).
		Dur("elapsed", time.Since(start)).
		Msg("Orchestration complete")

	return results, nil
}

func (o *Orchestrator) runOne(ctx context.Context, common domain.CommonParams, j job) domain.SectionResult {
	release, err := o.pool.Acquire(ctx)
	if err != nil {
		failure := &domain.SectionFailure{Section: j.name, Err: fmt.Errorf("not dispatched: %w", err)}
		return domain.SectionResult{
			Status:      domain.SectionError,
			ErrorDetail: failure.Error(),
		}
	}
	return o.runner.Run(ctx, j.section, common, j.params, o.TimeoutFor(j.name), release)
}
