package domain

import "time"

// SectionStatus is the outcome of one section fetch.
type SectionStatus string

const (
	SectionOK    SectionStatus = "ok"
	SectionError SectionStatus = "error"
)

// SectionResult is the uniform envelope produced once per section per run.
type SectionResult struct {
	Data              any           `json:"data" msgpack:"data"`
	Status            SectionStatus `json:"status" msgpack:"status"`
	LastUpdated       *time.Time    `json:"last_updated" msgpack:"last_updated"`
	RefreshDurationMs int64         `json:"refresh_duration_ms" msgpack:"refresh_duration_ms"`
	ErrorDetail       string        `json:"error_detail" msgpack:"error_detail"`
}

// OK reports whether the section fetched successfully.
func (r SectionResult) OK() bool {
	return r.Status == SectionOK
}

// OrchestrationResult maps section name to its result. Keys are exactly the
// requested section names.
type OrchestrationResult map[string]SectionResult

// Clone returns a shallow copy of the map. Data payloads and LastUpdated
// pointers are shared with the original and must be treated as read-only.
func (r OrchestrationResult) Clone() OrchestrationResult {
	if r == nil {
		return nil
	}
	out := make(OrchestrationResult, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Failed returns the names of sections whose status is error.
func (r OrchestrationResult) Failed() []string {
	var failed []string
	for name, res := range r {
		if !res.OK() {
			failed = append(failed, name)
		}
	}
	return failed
}
