package cache

import "time"

// Section TTL defaults.
const (
	DefaultTTL   = 60 * time.Second
	NewTradesTTL = 30 * time.Second // blotter changes intraday
)

// TTLPolicy maps sections to how long their results stay fresh.
type TTLPolicy struct {
	Default  time.Duration
	Sections map[string]time.Duration
}

// DefaultTTLPolicy returns the built-in section TTLs.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Default: DefaultTTL,
		Sections: map[string]time.Duration{
			"futures":    DefaultTTL,
			"bonds":      DefaultTTL,
			"ir_delta":   DefaultTTL,
			"new_trades": NewTradesTTL,
		},
	}
}

// For returns the TTL for a set of sections: the shortest TTL among them, so
// no section is served staler than its own limit.
func (p TTLPolicy) For(sections []string) time.Duration {
	def := p.Default
	if def <= 0 {
		def = DefaultTTL
	}

	var ttl time.Duration
	for _, name := range sections {
		t, ok := p.Sections[name]
		if !ok || t <= 0 {
			t = def
		}
		if ttl == 0 || t < ttl {
			ttl = t
		}
	}
	if ttl == 0 {
		return def
	}
	return ttl
}
