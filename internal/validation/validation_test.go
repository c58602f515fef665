package validation

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/sections"
)

func newValidator() *Validator {
	return New(sections.DefaultRegistry())
}

func baseQuery() url.Values {
	return url.Values{
		"section":     {"all"},
		"time_of_day": {"LIVE"},
		"books":       {"A, B"},
		"pos_date":    {"20241231"},
		"env_date":    {"20250101"},
	}
}

func problems(t *testing.T, err error) []string {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Problems
}

func TestFromQuery(t *testing.T) {
	v := newValidator()

	t.Run("valid all", func(t *testing.T) {
		req, err := v.FromQuery(baseQuery())
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "B"}, req.Common.Books)
		assert.Equal(t, domain.Live, req.Common.TimeOfDay)
		assert.Equal(t, []string{"bonds", "futures", "ir_delta", "new_trades"}, req.SectionNames())
		for name, p := range req.Sections {
			assert.NotNil(t, p, name)
		}
	})

	t.Run("shared query feeds each section", func(t *testing.T) {
		q := baseQuery()
		q.Set("shift_bps", "2")
		q.Set("include_tplus1", "true")

		req, err := v.FromQuery(q)
		require.NoError(t, err)
		assert.True(t, req.Sections["new_trades"].(*sections.NewTradesParams).IncludeTPlus1)
		assert.Equal(t, "2", req.Sections["ir_delta"].(*sections.IRDeltaParams).ShiftBps.String())
	})

	t.Run("aliases normalise", func(t *testing.T) {
		for alias, want := range map[string]domain.TimeOfDay{
			"Open": domain.StartOfDay, "close": domain.EndOfDay, "Live": domain.Live,
		} {
			q := baseQuery()
			q.Set("time_of_day", alias)
			req, err := v.FromQuery(q)
			require.NoError(t, err)
			assert.Equal(t, want, req.Common.TimeOfDay)
		}
	})

	t.Run("all common problems are reported together", func(t *testing.T) {
		_, err := v.FromQuery(url.Values{
			"section":     {"equities"},
			"time_of_day": {"noon"},
			"books":       {" , "},
			"pos_date":    {"2024-12-31"},
		})
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Len(t, problems(t, err), 5)
	})

	t.Run("section type errors", func(t *testing.T) {
		q := baseQuery()
		q.Set("section", "futures")
		q.Set("eod_price_override", "cheap")

		_, err := v.FromQuery(q)
		p := problems(t, err)
		require.Len(t, p, 1)
		assert.Contains(t, p[0], "section 'futures'")
	})
}

func TestFromJSON(t *testing.T) {
	v := newValidator()

	t.Run("nested section params", func(t *testing.T) {
		req, err := v.FromJSON([]byte(`{
			"section": "all",
			"time_of_day": "EOD",
			"books": ["X", "Y"],
			"pos_date": "20241231",
			"env_date": "20250101",
			"section_params": {
				"futures": {"eod_price_override": 99.5},
				"new_trades": {"include_tplus1": true}
			}
		}`))
		require.NoError(t, err)

		futures := req.Sections["futures"].(*sections.FuturesParams)
		require.NotNil(t, futures.EODPriceOverride)
		assert.Equal(t, "99.5", futures.EODPriceOverride.String())
		assert.True(t, req.Sections["new_trades"].(*sections.NewTradesParams).IncludeTPlus1)
		assert.Nil(t, req.Sections["bonds"].(*sections.BondsParams).YieldOverride)
	})

	t.Run("books as csv string", func(t *testing.T) {
		req, err := v.FromJSON([]byte(`{"section":"bonds","time_of_day":"SOD","books":"A,B","pos_date":"20241231","env_date":"20250101"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, req.Common.Books)
		assert.Equal(t, []string{"bonds"}, req.SectionNames())
	})

	t.Run("type errors are aggregated", func(t *testing.T) {
		_, err := v.FromJSON([]byte(`{"section": 1, "books": 2, "pos_date": "20241231", "env_date": "20250101", "time_of_day": "SOD"}`))
		assert.Len(t, problems(t, err), 2)
	})

	t.Run("section params type error", func(t *testing.T) {
		_, err := v.FromJSON([]byte(`{"section":"bonds","time_of_day":"SOD","books":["A"],"pos_date":"20241231","env_date":"20250101",
			"section_params":{"bonds":{"yield_override":"high"}}}`))
		p := problems(t, err)
		require.Len(t, p, 1)
		assert.Contains(t, p[0], "bonds")
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := v.FromJSON([]byte(`[1,2]`))
		assert.True(t, domain.IsValidation(err))
	})
}

func TestFromBody_Validate(t *testing.T) {
	v := newValidator()

	_, err := v.FromBody(Body{
		Section:   "ir_delta",
		TimeOfDay: "LIVE",
		Books:     Books{"A"},
		PosDate:   "20241231",
		EnvDate:   "20250101",
		SectionParams: map[string]json.RawMessage{
			"ir_delta": json.RawMessage(`{"shift_bps": 0}`),
		},
	})
	p := problems(t, err)
	require.Len(t, p, 1)
	assert.Contains(t, p[0], "shift_bps")
}
