package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/sections"
)

type emptyParams struct{}

func (emptyParams) Validate() error { return nil }

// fakeSection counts calls and tracks peak concurrency.
type fakeSection struct {
	name    string
	delay   time.Duration
	fail    bool
	calls   atomic.Int32
	active  *atomic.Int32
	peak    *atomic.Int32
	gotNils atomic.Int32
}

func (s *fakeSection) Name() string                    { return s.name }
func (s *fakeSection) NewParams() domain.SectionParams { return emptyParams{} }

func (s *fakeSection) Fetch(ctx context.Context, _ domain.CommonParams, params domain.SectionParams) (any, error) {
	s.calls.Add(1)
	if params == nil {
		s.gotNils.Add(1)
	}
	if s.active != nil {
		n := s.active.Add(1)
		defer s.active.Add(-1)
		for {
			p := s.peak.Load()
			if n <= p || s.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail {
		return nil, errors.New("fetcher exploded")
	}
	return map[string]string{"section": s.name}, nil
}

func testRequest(names ...string) domain.Request {
	req := domain.Request{
		Common: domain.CommonParams{
			EnvDate:   "20250101",
			PosDate:   "20241231",
			Books:     []string{"A", "B"},
			TimeOfDay: domain.Live,
		},
		Section:  domain.SectionAll,
		Sections: make(map[string]domain.SectionParams),
	}
	for _, n := range names {
		req.Sections[n] = nil
	}
	return req
}

func newOrchestrator(poolSize int, secs ...sections.Section) *Orchestrator {
	log := zerolog.Nop()
	return New(sections.NewRegistry(secs...), sections.NewRunner(log), NewPool(poolSize), Config{}, log)
}

func TestRunAll_PartialFailure(t *testing.T) {
	secs := []*fakeSection{
		{name: "s0"}, {name: "s1"}, {name: "s2", fail: true}, {name: "s3"}, {name: "s4"},
	}
	regs := make([]sections.Section, len(secs))
	names := make([]string, len(secs))
	for i, s := range secs {
		regs[i] = s
		names[i] = s.name
	}
	o := newOrchestrator(3, regs...)

	res, err := o.RunAll(context.Background(), testRequest(names...))
	require.NoError(t, err)
	require.Len(t, res, len(secs))

	for _, s := range secs {
		r := res[s.name]
		if s.fail {
			assert.Equal(t, domain.SectionError, r.Status)
			assert.NotEmpty(t, r.ErrorDetail)
			assert.Nil(t, r.Data)
			continue
		}
		assert.Equal(t, domain.SectionOK, r.Status, s.name)
		assert.Equal(t, map[string]string{"section": s.name}, r.Data)
		assert.Equal(t, int32(1), s.calls.Load())
	}
	assert.Equal(t, []string{"s2"}, res.Failed())
}

func TestRunAll_UnknownSectionFailsBeforeDispatch(t *testing.T) {
	known := &fakeSection{name: "known"}
	o := newOrchestrator(2, known)

	_, err := o.RunAll(context.Background(), testRequest("known", "missing"))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, int32(0), known.calls.Load())
}

func TestRunAll_DefaultParams(t *testing.T) {
	s := &fakeSection{name: "only"}
	o := newOrchestrator(1, s)

	_, err := o.RunAll(context.Background(), testRequest("only"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), s.gotNils.Load())
}

func TestRunAll_TimeoutPerSection(t *testing.T) {
	slow := &fakeSection{name: "slow", delay: 200 * time.Millisecond}
	fast := &fakeSection{name: "fast"}
	log := zerolog.Nop()
	o := New(sections.NewRegistry(slow, fast), sections.NewRunner(log), NewPool(2), Config{
		Timeouts: map[string]time.Duration{"slow": 10 * time.Millisecond},
	}, log)

	assert.Equal(t, 10*time.Millisecond, o.TimeoutFor("slow"))
	assert.Equal(t, DefaultTimeout, o.TimeoutFor("fast"))

	res, err := o.RunAll(context.Background(), testRequest("slow", "fast"))
	require.NoError(t, err)
	assert.Equal(t, domain.SectionError, res["slow"].Status)
	assert.Contains(t, res["slow"].ErrorDetail, "timed out")
	assert.Equal(t, domain.SectionOK, res["fast"].Status)

	// The timed-out fetch keeps its slot until it returns
	assert.Eventually(t, func() bool { return o.Pool().Stats().InFlight == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunAll_LivenessUnderLoad(t *testing.T) {
	var active, peak atomic.Int32
	const poolSize = 2

	var regs []sections.Section
	var names []string
	for i := 0; i < 4; i++ {
		s := &fakeSection{name: fmt.Sprintf("s%d", i), delay: 2 * time.Millisecond, active: &active, peak: &peak}
		regs = append(regs, s)
		names = append(names, s.name)
	}
	o := newOrchestrator(poolSize, regs...)

	const callers = 25
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.RunAll(context.Background(), testRequest(names...))
			if err == nil && len(res.Failed()) > 0 {
				err = fmt.Errorf("failed sections: %v", res.Failed())
			}
			errs <- err
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("orchestrations did not complete")
	}
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(poolSize))
	assert.Equal(t, int64(0), o.Pool().Stats().InFlight)
}

func TestRunAll_CancelledWhileQueued(t *testing.T) {
	s := &fakeSection{name: "queued"}
	o := newOrchestrator(1, s)

	hold, err := o.Pool().Acquire(context.Background())
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := o.RunAll(ctx, testRequest("queued"))
	require.NoError(t, err)
	assert.Equal(t, domain.SectionError, res["queued"].Status)
	assert.Contains(t, res["queued"].ErrorDetail, "not dispatched")
	assert.Equal(t, int32(0), s.calls.Load())
}
