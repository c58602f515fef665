package testing

import (
	"net/url"

	"github.com/aristath/posenv/internal/domain"
)

// NewCommonFixture returns the common parameters used across tests
func NewCommonFixture() domain.CommonParams {
	return domain.CommonParams{
		EnvDate:   "20250101",
		PosDate:   "20241231",
		Books:     []string{"A", "B"},
		TimeOfDay: domain.Live,
	}
}

// NewQueryFixture returns a valid GET query for the given section selector
func NewQueryFixture(section string) url.Values {
	return url.Values{
		"env_date":    {"20250101"},
		"pos_date":    {"20241231"},
		"books":       {"A,B"},
		"time_of_day": {"LIVE"},
		"section":     {section},
	}
}

// NewBodyFixture returns a valid POST body for the given section selector
func NewBodyFixture(section string) map[string]any {
	return map[string]any{
		"env_date":    "20250101",
		"pos_date":    "20241231",
		"books":       []string{"A", "B"},
		"time_of_day": "LIVE",
		"section":     section,
	}
}
