// Package domain holds the request, result and error types shared across
// the fan-out, cache and transport layers.
package domain

import (
	"sort"
	"strings"
)

// DateFormat is the layout used for env_date and pos_date (YYYYMMDD).
const DateFormat = "20060102"

// SectionAll selects every registered section.
const SectionAll = "all"

// TimeOfDay identifies which snapshot of the trading day is requested.
type TimeOfDay string

const (
	// StartOfDay is the opening snapshot.
	StartOfDay TimeOfDay = "SOD"
	// EndOfDay is the closing snapshot.
	EndOfDay TimeOfDay = "EOD"
	// Live is the intraday snapshot.
	Live TimeOfDay = "LIVE"
)

// ParseTimeOfDay accepts the canonical values and the Open/Close/Live aliases,
// case-insensitively.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SOD", "OPEN":
		return StartOfDay, true
	case "EOD", "CLOSE":
		return EndOfDay, true
	case "LIVE":
		return Live, true
	}
	return "", false
}

// CommonParams are the business parameters shared by every section.
// Values are immutable once built by the validation layer.
type CommonParams struct {
	EnvDate   string    `json:"env_date" msgpack:"env_date"`
	PosDate   string    `json:"pos_date" msgpack:"pos_date"`
	Books     []string  `json:"books" msgpack:"books"`
	TimeOfDay TimeOfDay `json:"time_of_day" msgpack:"time_of_day"`
}

// SortedBooks returns a sorted copy of the book list.
func (p CommonParams) SortedBooks() []string {
	books := make([]string, len(p.Books))
	copy(books, p.Books)
	sort.Strings(books)
	return books
}

// Request is a validated request: common parameters plus the resolved
// section names and their parameters.
type Request struct {
	Common   CommonParams
	Section  string
	Sections map[string]SectionParams
}

// SectionNames returns the requested section names in sorted order.
func (r Request) SectionNames() []string {
	names := make([]string, 0, len(r.Sections))
	for name := range r.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SectionParams is the validated parameter object of one section.
type SectionParams interface {
	// Validate checks values that decoding alone cannot reject.
	Validate() error
}
