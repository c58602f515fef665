// Package sections defines the independently fetchable slices of the
// position environment response, their parameters, and the runner that
// executes one fetch with timing and failure isolation.
package sections

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aristath/posenv/internal/domain"
)

// Section is one fetchable slice of the aggregate response.
type Section interface {
	// Name is the registry key, e.g. "futures".
	Name() string

	// NewParams returns a zero-valued parameter object ready for decoding.
	NewParams() domain.SectionParams

	// Fetch computes the section payload. It must not retain or mutate params.
	Fetch(ctx context.Context, common domain.CommonParams, params domain.SectionParams) (any, error)
}

// QueryDecoder is implemented by parameter objects that can be read from a
// flat query string shared by all sections.
type QueryDecoder interface {
	FromQuery(values url.Values) []string
}

// Registry holds every known section by name.
type Registry struct {
	sections map[string]Section
	mu       sync.RWMutex
}

// NewRegistry creates a registry holding the given sections.
func NewRegistry(sections ...Section) *Registry {
	r := &Registry{sections: make(map[string]Section, len(sections))}
	for _, s := range sections {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns the production section set.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewFutures(),
		NewBonds(),
		NewIRDelta(),
		NewNewTrades(),
	)
}

// Register adds a section, replacing any section with the same name.
func (r *Registry) Register(s Section) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sections[s.Name()] = s
}

// Get returns a section by name.
func (r *Registry) Get(name string) (Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSection, name)
	}
	return s, nil
}

// Names returns all registered section names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sections))
	for name := range r.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve expands a section selector into concrete section names.
// "all" selects every registered section.
func (r *Registry) Resolve(selector string) ([]string, error) {
	if selector == domain.SectionAll {
		return r.Names(), nil
	}
	if _, err := r.Get(selector); err != nil {
		return nil, err
	}
	return []string{selector}, nil
}

// queryDecimal reads an optional decimal query value into dst.
func queryDecimal(values url.Values, key string, dst **decimal.Decimal, problems *[]string) {
	raw := values.Get(key)
	if raw == "" {
		return
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: must be a number, got '%s'", key, raw))
		return
	}
	*dst = &d
}

// decimalOr returns *d when set, otherwise the fallback.
func decimalOr(d *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if d != nil {
		return *d
	}
	return fallback
}

// metadata is the common echo block every placeholder payload carries.
type metadata struct {
	TimeOfDay domain.TimeOfDay `json:"time_of_day"`
	Books     []string         `json:"books"`
	PosDate   string           `json:"pos_date"`
	EnvDate   string           `json:"env_date"`
}

func newMetadata(common domain.CommonParams) metadata {
	books := make([]string, len(common.Books))
	copy(books, common.Books)
	return metadata{
		TimeOfDay: common.TimeOfDay,
		Books:     books,
		PosDate:   common.PosDate,
		EnvDate:   common.EnvDate,
	}
}

// paramsAs asserts a parameter object to the concrete type a section expects.
func paramsAs[T domain.SectionParams](section string, params domain.SectionParams) (T, error) {
	typed, ok := params.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("section %s: unexpected parameter type %T", section, params)
	}
	return typed, nil
}
