// Package status holds the process-wide server phase and the health of every
// warmup job. All reads return copies taken under the registry lock.
package status

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ServerPhase is the overall server lifecycle phase.
type ServerPhase string

const (
	ServerStarting ServerPhase = "starting"
	ServerRunning  ServerPhase = "running"
)

// JobPhase is the phase of one warmup job loop.
type JobPhase string

const (
	JobStarting      JobPhase = "starting"
	JobOutsideWindow JobPhase = "outside_window"
	JobRunning       JobPhase = "running"
	JobIdle          JobPhase = "idle"
	JobError         JobPhase = "error"
	JobConfigError   JobPhase = "config_error"
)

// historySize is how many recent run durations are kept per job.
const historySize = 50

// JobStatus is the observable state of one warmup job.
type JobStatus struct {
	Name            string     `json:"name"`
	Phase           JobPhase   `json:"status"`
	InWindow        bool       `json:"in_window"`
	Window          string     `json:"window"`
	IntervalSeconds float64    `json:"interval_seconds"`
	LastRun         *time.Time `json:"last_run"`
	LastDurationMs  *int64     `json:"last_duration_ms"`
	LastError       string     `json:"last_error"`
	Runs            int        `json:"runs"`
	MeanDurationMs  float64    `json:"mean_duration_ms"`
	P95DurationMs   float64    `json:"p95_duration_ms"`
}

type jobState struct {
	status    JobStatus
	durations []float64
}

// Snapshot is a consistent copy of the registry.
type Snapshot struct {
	ServerStatus ServerPhase `json:"server_status"`
	StartedAt    time.Time   `json:"started_at"`
	Jobs         []JobStatus `json:"warmup_jobs"`
}

// Registry is the lock-protected status table.
type Registry struct {
	mu        sync.RWMutex
	server    ServerPhase
	startedAt time.Time
	jobs      map[string]*jobState
}

// NewRegistry creates a registry in the starting phase.
func NewRegistry() *Registry {
	return &Registry{
		server:    ServerStarting,
		startedAt: time.Now(),
		jobs:      make(map[string]*jobState),
	}
}

// SetServerStatus sets the overall server phase.
func (r *Registry) SetServerStatus(phase ServerPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.server = phase
}

// ServerStatus returns the overall server phase.
func (r *Registry) ServerStatus() ServerPhase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.server
}

// RegisterJob adds a job in the starting phase. Registering an existing name
// resets it.
func (r *Registry) RegisterJob(name, window string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[name] = &jobState{status: JobStatus{
		Name:            name,
		Phase:           JobStarting,
		Window:          window,
		IntervalSeconds: interval.Seconds(),
	}}
}

func (r *Registry) update(name string, fn func(*jobState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if js, ok := r.jobs[name]; ok {
		fn(js)
	}
}

// MarkOutsideWindow records a tick that fell outside the job's window.
func (r *Registry) MarkOutsideWindow(name string) {
	r.update(name, func(js *jobState) {
		js.status.Phase = JobOutsideWindow
		js.status.InWindow = false
	})
}

// MarkRunning records the start of an in-window refresh.
func (r *Registry) MarkRunning(name string) {
	r.update(name, func(js *jobState) {
		js.status.Phase = JobRunning
		js.status.InWindow = true
	})
}

// MarkIdle records a successful refresh.
func (r *Registry) MarkIdle(name string, at time.Time, d time.Duration) {
	r.update(name, func(js *jobState) {
		js.status.Phase = JobIdle
		js.status.LastError = ""
		js.record(at, d)
	})
}

// MarkError records a failed refresh. The loop keeps running.
func (r *Registry) MarkError(name string, at time.Time, d time.Duration, err error) {
	r.update(name, func(js *jobState) {
		js.status.Phase = JobError
		js.status.LastError = err.Error()
		js.record(at, d)
	})
}

// MarkConfigError records that the job's fixed parameters are invalid.
// The job does not run again.
func (r *Registry) MarkConfigError(name string, err error) {
	r.update(name, func(js *jobState) {
		js.status.Phase = JobConfigError
		js.status.LastError = err.Error()
	})
}

func (js *jobState) record(at time.Time, d time.Duration) {
	ms := d.Milliseconds()
	js.status.LastRun = &at
	js.status.LastDurationMs = &ms
	js.status.Runs++

	js.durations = append(js.durations, float64(ms))
	if len(js.durations) > historySize {
		js.durations = js.durations[len(js.durations)-historySize:]
	}
}

// Job returns a copy of one job's status.
func (r *Registry) Job(name string) (JobStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	js, ok := r.jobs[name]
	if !ok {
		return JobStatus{}, false
	}
	return js.snapshot(), true
}

// Snapshot returns a consistent copy of the whole registry, jobs sorted by name.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		ServerStatus: r.server,
		StartedAt:    r.startedAt,
		Jobs:         make([]JobStatus, 0, len(r.jobs)),
	}
	for _, js := range r.jobs {
		snap.Jobs = append(snap.Jobs, js.snapshot())
	}
	sort.Slice(snap.Jobs, func(i, j int) bool { return snap.Jobs[i].Name < snap.Jobs[j].Name })
	return snap
}

func (js *jobState) snapshot() JobStatus {
	s := js.status
	if s.LastRun != nil {
		t := *s.LastRun
		s.LastRun = &t
	}
	if s.LastDurationMs != nil {
		d := *s.LastDurationMs
		s.LastDurationMs = &d
	}
	if len(js.durations) > 0 {
		sorted := make([]float64, len(js.durations))
		copy(sorted, js.durations)
		sort.Float64s(sorted)
		s.MeanDurationMs = stat.Mean(sorted, nil)
		s.P95DurationMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return s
}
