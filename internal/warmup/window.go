package warmup

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// Window is a daily local clock interval [Start, End). Start > End wraps past
// midnight; Start == End covers the whole day.
type Window struct {
	start int // minutes after midnight
	end   int
	raw   string
}

// ParseWindow parses HH:MM bounds.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start_time: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end_time: %w", err)
	}
	return Window{start: s, end: e, raw: start + "-" + end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got '%s'", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t's local clock time falls inside the window.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case w.start == w.end:
		return true
	case w.start < w.end:
		return m >= w.start && m < w.end
	default:
		return m >= w.start || m < w.end
	}
}

func (w Window) String() string {
	return w.raw
}

// InWindow reports whether now falls inside [start, end). Malformed bounds
// are never in window.
func InWindow(now time.Time, start, end string) bool {
	w, err := ParseWindow(start, end)
	if err != nil {
		return false
	}
	return w.Contains(now)
}
