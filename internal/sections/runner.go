package sections

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/posenv/internal/domain"
)

// Runner executes one section fetch and always produces a SectionResult.
type Runner struct {
	log zerolog.Logger
	now func() time.Time
}

// NewRunner creates a new section runner.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{
		log: log.With().Str("component", "section_runner").Logger(),
		now: time.Now,
	}
}

type outcome struct {
	data any
	err  error
}

// Run fetches one section. A timeout > 0 bounds how long the caller waits;
// the fetcher receives a context carrying that deadline. release, when
// non-nil, is called once the fetcher has actually returned, which may be
// after Run has already reported a timeout.
func (r *Runner) Run(
	ctx context.Context,
	s Section,
	common domain.CommonParams,
	params domain.SectionParams,
	timeout time.Duration,
	release func(),
) domain.SectionResult {
	start := r.now()

	fetchCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	done := make(chan outcome, 1)
	go func() {
		defer cancel()
		if release != nil {
			defer release()
		}

		o := r.fetch(fetchCtx, s, common, params)
		done <- o

		if elapsed := r.now().Sub(start); timeout > 0 && elapsed > timeout {
			r.log.Warn().
				Str("section", s.Name()).
				Dur("elapsed", elapsed).
				Dur("timeout", timeout).
				Msg("Section fetch returned after its deadline")
		}
	}()

	select {
	case o := <-done:
		return r.result(s.Name(), start, o)
	case <-fetchCtx.Done():
		// The fetcher may have finished at the same instant
		select {
		case o := <-done:
			return r.result(s.Name(), start, o)
		default:
		}

		err := fetchCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		return r.result(s.Name(), start, outcome{err: err})
	}
}

func (r *Runner) fetch(ctx context.Context, s Section, common domain.CommonParams, params domain.SectionParams) (o outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().
				Str("section", s.Name()).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("Section fetcher panicked")
			o = outcome{err: fmt.Errorf("panic: %v", p)}
		}
	}()

	data, err := s.Fetch(ctx, common, params)
	return outcome{data: data, err: err}
}

func (r *Runner) result(name string, start time.Time, o outcome) domain.SectionResult {
	finished := r.now()
	durationMs := finished.Sub(start).Milliseconds()

	if o.err != nil {
		err := &domain.SectionFailure{Section: name, Err: o.err}
		r.log.Warn().
			Err(o.err).
			Str("section", name).
			Int64("duration_ms", durationMs).
			Msg("Section fetch failed")
		return domain.SectionResult{
			Status:            domain.SectionError,
			RefreshDurationMs: durationMs,
			ErrorDetail:       err.Error(),
		}
	}

	r.log.Debug().
		Str("section", name).
		Int64("duration_ms", durationMs).
		Msg("Section fetched")

	return domain.SectionResult{
		Data:              o.data,
		Status:            domain.SectionOK,
		LastUpdated:       &finished,
		RefreshDurationMs: durationMs,
	}
}
