// Package validation turns raw request input into a domain.Request or a
// ValidationError listing every problem found.
package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/sections"
)

const (
	scopeCommon   = "common parameters"
	scopeSections = "section parameters"
)

// Books accepts either a JSON/YAML list or a comma-separated string.
type Books []string

// UnmarshalJSON implements json.Unmarshaler.
func (b *Books) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*b = list
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return fmt.Errorf("books must be a string or list")
	}
	*b = splitBooks(csv)
	return nil
}

func splitBooks(csv string) []string {
	var books []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			books = append(books, part)
		}
	}
	return books
}

// Body is the POST form of a request. Warmup jobs build the same shape from
// configuration.
type Body struct {
	Section       string                     `json:"section"`
	TimeOfDay     string                     `json:"time_of_day"`
	Books         Books                      `json:"books"`
	PosDate       string                     `json:"pos_date"`
	EnvDate       string                     `json:"env_date"`
	SectionParams map[string]json.RawMessage `json:"section_params,omitempty"`
}

// Validator validates requests against a section registry.
type Validator struct {
	registry *sections.Registry
}

// New creates a validator for the given registry.
func New(registry *sections.Registry) *Validator {
	return &Validator{registry: registry}
}

// FromQuery validates a GET query string. Section parameters are read from
// the same flat query, each section picking its own fields.
func (v *Validator) FromQuery(values url.Values) (domain.Request, error) {
	req, err := v.common(values.Get("section"), values.Get("time_of_day"), splitBooks(values.Get("books")),
		values.Get("pos_date"), values.Get("env_date"))
	if err != nil {
		return domain.Request{}, err
	}

	var problems []string
	for _, name := range req.SectionNames() {
		s, _ := v.registry.Get(name)
		params := s.NewParams()
		if qd, ok := params.(sections.QueryDecoder); ok {
			for _, p := range qd.FromQuery(values) {
				problems = append(problems, fmt.Sprintf("section '%s', %s", name, p))
			}
		}
		if err := params.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("section '%s': %v", name, err))
		}
		req.Sections[name] = params
	}

	if len(problems) > 0 {
		return domain.Request{}, &domain.ValidationError{Scope: scopeSections, Problems: problems}
	}
	return req, nil
}

// FromJSON validates a POST body. Field type errors are collected rather than
// stopping at the first one.
func (v *Validator) FromJSON(data []byte) (domain.Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.Request{}, domain.NewValidationError(scopeCommon, "body must be a JSON object: %v", err)
	}

	var body Body
	var problems []string
	decode := func(key string, dst any) {
		raw, ok := fields[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
		}
	}
	decode("section", &body.Section)
	decode("time_of_day", &body.TimeOfDay)
	decode("books", &body.Books)
	decode("pos_date", &body.PosDate)
	decode("env_date", &body.EnvDate)
	decode("section_params", &body.SectionParams)

	if len(problems) > 0 {
		return domain.Request{}, &domain.ValidationError{Scope: scopeCommon, Problems: problems}
	}
	return v.FromBody(body)
}

// FromBody validates an already decoded body.
func (v *Validator) FromBody(body Body) (domain.Request, error) {
	req, err := v.common(body.Section, body.TimeOfDay, body.Books, body.PosDate, body.EnvDate)
	if err != nil {
		return domain.Request{}, err
	}

	var problems []string
	for _, name := range req.SectionNames() {
		s, _ := v.registry.Get(name)
		params := s.NewParams()
		if raw, ok := body.SectionParams[name]; ok && len(raw) > 0 {
			if err := json.Unmarshal(raw, params); err != nil {
				problems = append(problems, fmt.Sprintf("section '%s': %v", name, err))
				continue
			}
		}
		if err := params.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("section '%s': %v", name, err))
			continue
		}
		req.Sections[name] = params
	}

	if len(problems) > 0 {
		return domain.Request{}, &domain.ValidationError{Scope: scopeSections, Problems: problems}
	}
	return req, nil
}

// common validates the shared fields and resolves the section selector.
func (v *Validator) common(section, timeOfDay string, books []string, posDate, envDate string) (domain.Request, error) {
	var problems []string

	var names []string
	if section == "" {
		problems = append(problems, "section: field required")
	} else {
		resolved, err := v.registry.Resolve(section)
		if err != nil {
			problems = append(problems, fmt.Sprintf("section: invalid section '%s', must be 'all' or one of: %s",
				section, strings.Join(v.registry.Names(), ", ")))
		}
		names = resolved
	}

	tod, ok := domain.ParseTimeOfDay(timeOfDay)
	if !ok {
		if timeOfDay == "" {
			problems = append(problems, "time_of_day: field required")
		} else {
			problems = append(problems, fmt.Sprintf("time_of_day: must be one of SOD, EOD, LIVE (or Open, Close, Live), got '%s'", timeOfDay))
		}
	}

	cleaned := make([]string, 0, len(books))
	for _, b := range books {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	if len(cleaned) == 0 {
		problems = append(problems, "books: cannot be empty")
	}

	for _, d := range []struct{ field, value string }{{"pos_date", posDate}, {"env_date", envDate}} {
		if _, err := time.Parse(domain.DateFormat, d.value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: date must be in format YYYYMMDD, got '%s'", d.field, d.value))
		}
	}

	if len(problems) > 0 {
		return domain.Request{}, &domain.ValidationError{Scope: scopeCommon, Problems: problems}
	}

	req := domain.Request{
		Common: domain.CommonParams{
			EnvDate:   envDate,
			PosDate:   posDate,
			Books:     cleaned,
			TimeOfDay: tod,
		},
		Section:  section,
		Sections: make(map[string]domain.SectionParams, len(names)),
	}
	for _, name := range names {
		req.Sections[name] = nil
	}
	return req, nil
}
