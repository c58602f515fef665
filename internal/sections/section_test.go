package sections

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/posenv/internal/domain"
)

func testCommon() domain.CommonParams {
	return domain.CommonParams{
		EnvDate:   "20250101",
		PosDate:   "20241231",
		Books:     []string{"A", "B"},
		TimeOfDay: domain.Live,
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()

	t.Run("all expands to every section in sorted order", func(t *testing.T) {
		names, err := r.Resolve(domain.SectionAll)
		require.NoError(t, err)
		assert.Equal(t, []string{"bonds", "futures", "ir_delta", "new_trades"}, names)
	})

	t.Run("single section", func(t *testing.T) {
		names, err := r.Resolve("bonds")
		require.NoError(t, err)
		assert.Equal(t, []string{"bonds"}, names)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := r.Resolve("equities")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUnknownSection))
	})
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(NewFutures())
	r.Register(NewFutures())

	assert.Equal(t, []string{"futures"}, r.Names())
}

func TestFutures_Fetch(t *testing.T) {
	s := NewFutures()

	t.Run("defaults", func(t *testing.T) {
		out, err := s.Fetch(context.Background(), testCommon(), s.NewParams())
		require.NoError(t, err)

		payload := out.(*FuturesPayload)
		require.Len(t, payload.Positions, 2)
		assert.True(t, payload.Positions[0].Price.Equal(decimal.RequireFromString("5025.50")))
		assert.True(t, payload.Positions[1].Price.Equal(decimal.RequireFromString("17850.25")))
		assert.Equal(t, []string{"A", "B"}, payload.Metadata.Books)
		assert.False(t, payload.Metadata.OverridesApplied["eod_price"])
	})

	t.Run("override follows time of day", func(t *testing.T) {
		params := &FuturesParams{EODPriceOverride: dec("100"), CurrentPriceOverride: dec("200")}

		common := testCommon()
		common.TimeOfDay = domain.EndOfDay
		out, err := s.Fetch(context.Background(), common, params)
		require.NoError(t, err)
		assert.True(t, out.(*FuturesPayload).Positions[0].Price.Equal(decimal.NewFromInt(100)))

		common.TimeOfDay = domain.Live
		out, err = s.Fetch(context.Background(), common, params)
		require.NoError(t, err)
		assert.True(t, out.(*FuturesPayload).Positions[0].Price.Equal(decimal.NewFromInt(200)))

		common.TimeOfDay = domain.StartOfDay
		out, err = s.Fetch(context.Background(), common, params)
		require.NoError(t, err)
		assert.True(t, out.(*FuturesPayload).Positions[0].Price.Equal(decimal.RequireFromString("5025.50")))
		assert.True(t, out.(*FuturesPayload).Metadata.OverridesApplied["eod_price"])
	})

	t.Run("wrong params type", func(t *testing.T) {
		_, err := s.Fetch(context.Background(), testCommon(), &BondsParams{})
		assert.Error(t, err)
	})
}

func TestFuturesParams(t *testing.T) {
	var p FuturesParams
	problems := p.FromQuery(url.Values{
		"eod_price_override":  {"101.5"},
		"open_price_override": {"abc"},
	})

	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "open_price_override")
	require.NotNil(t, p.EODPriceOverride)
	assert.Nil(t, p.OpenPriceOverride)
	assert.NoError(t, p.Validate())

	p.CurrentPriceOverride = dec("-1")
	assert.Error(t, p.Validate())
}

func TestBonds_Fetch(t *testing.T) {
	s := NewBonds()
	out, err := s.Fetch(context.Background(), testCommon(), &BondsParams{YieldOverride: dec("5")})
	require.NoError(t, err)

	payload := out.(*BondsPayload)
	require.Len(t, payload.Positions, 2)
	for _, pos := range payload.Positions {
		assert.True(t, pos.Yield.Equal(decimal.NewFromInt(5)))
	}
	assert.True(t, payload.Positions[0].Spread.Equal(decimal.RequireFromString("0.015")))
	assert.True(t, payload.Metadata.OverridesApplied["yield"])
	assert.False(t, payload.Metadata.OverridesApplied["spread"])
}

func TestIRDelta_Fetch(t *testing.T) {
	s := NewIRDelta()

	t.Run("defaults", func(t *testing.T) {
		out, err := s.Fetch(context.Background(), testCommon(), s.NewParams())
		require.NoError(t, err)

		payload := out.(*IRDeltaPayload)
		assert.Len(t, payload.Deltas, 8)
		assert.True(t, payload.TotalDelta.Equal(decimal.NewFromInt(197660)))
		assert.Equal(t, "USD_SOFR", payload.Metadata.Curve)
	})

	t.Run("shift scales every tenor", func(t *testing.T) {
		var p IRDeltaParams
		require.Empty(t, p.FromQuery(url.Values{"shift_bps": {"2"}, "curve_override": {"EUR_ESTR"}}))

		out, err := s.Fetch(context.Background(), testCommon(), &p)
		require.NoError(t, err)

		payload := out.(*IRDeltaPayload)
		assert.True(t, payload.TotalDelta.Equal(decimal.NewFromInt(395320)))
		assert.True(t, payload.Deltas[0].Delta.Equal(decimal.NewFromInt(2500)))
		assert.Equal(t, "EUR_ESTR", payload.Metadata.Curve)
	})

	t.Run("zero shift is invalid", func(t *testing.T) {
		p := IRDeltaParams{ShiftBps: dec("0")}
		assert.Error(t, p.Validate())
	})
}

func TestNewTrades_Fetch(t *testing.T) {
	s := NewNewTrades()

	out, err := s.Fetch(context.Background(), testCommon(), s.NewParams())
	require.NoError(t, err)
	payload := out.(*NewTradesPayload)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "20241231", payload.Trades[0].TradeDate)

	var p NewTradesParams
	require.Empty(t, p.FromQuery(url.Values{"include_tplus1": {"true"}}))
	out, err = s.Fetch(context.Background(), testCommon(), &p)
	require.NoError(t, err)
	payload = out.(*NewTradesPayload)
	assert.Equal(t, 3, payload.Count)
	assert.Equal(t, "T+1", payload.Trades[2].SettlementDate)
	assert.True(t, payload.Metadata.IncludeTPlus1)

	assert.Len(t, (&NewTradesParams{}).FromQuery(url.Values{"include_tplus1": {"maybe"}}), 1)
}

func TestFetch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, s := range DefaultRegistry().sections {
		_, err := s.Fetch(ctx, testCommon(), s.NewParams())
		assert.ErrorIs(t, err, context.Canceled, s.Name())
	}
}
