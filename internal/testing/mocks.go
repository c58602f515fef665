package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/requestlog"
)

// MockRequestStore is an in-memory requestlog.Store for testing
type MockRequestStore struct {
	mu      sync.RWMutex
	records map[string]*requestlog.Record
	order   []string
	err     error
}

// NewMockRequestStore creates a new mock request store
func NewMockRequestStore() *MockRequestStore {
	return &MockRequestStore{
		records: make(map[string]*requestlog.Record),
	}
}

// SetError makes every subsequent call fail with err
func (m *MockRequestStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Save stores a copy of the record
func (m *MockRequestStore) Save(_ context.Context, rec *requestlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if _, exists := m.records[rec.RequestID]; exists {
		return fmt.Errorf("duplicate request id %s", rec.RequestID)
	}
	cp := *rec
	m.records[rec.RequestID] = &cp
	m.order = append(m.order, rec.RequestID)
	return nil
}

// Load returns a stored record
func (m *MockRequestStore) Load(_ context.Context, requestID string) (*requestlog.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// Purge deletes records older than before
func (m *MockRequestStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}
	var deleted int64
	kept := m.order[:0]
	for _, id := range m.order {
		if m.records[id].Timestamp.Before(before) {
			delete(m.records, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return deleted, nil
}

// Records returns stored records in save order
func (m *MockRequestStore) Records() []requestlog.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]requestlog.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.records[id])
	}
	return out
}

// ErrSectionFailed is returned by failing MockSections
var ErrSectionFailed = errors.New("mock section failure")

// MockParams is an empty parameter object
type MockParams struct{}

// Validate implements domain.SectionParams
func (MockParams) Validate() error { return nil }

// MockSection is a sections.Section that counts calls and returns a fixed
// payload, or ErrSectionFailed when Fail is set
type MockSection struct {
	SectionName string
	Fail        bool
	Delay       time.Duration
	calls       atomic.Int32
}

// NewMockSection creates a succeeding mock section
func NewMockSection(name string) *MockSection {
	return &MockSection{SectionName: name}
}

// Name implements sections.Section
func (s *MockSection) Name() string { return s.SectionName }

// NewParams implements sections.Section
func (s *MockSection) NewParams() domain.SectionParams { return MockParams{} }

// Fetch implements sections.Section
func (s *MockSection) Fetch(ctx context.Context, common domain.CommonParams, _ domain.SectionParams) (any, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Fail {
		return nil, ErrSectionFailed
	}
	return map[string]any{"section": s.SectionName, "books": common.Books}, nil
}

// Calls returns how many times Fetch ran
func (s *MockSection) Calls() int {
	return int(s.calls.Load())
}
