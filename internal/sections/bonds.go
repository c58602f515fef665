package sections

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/aristath/posenv/internal/domain"
)

// BondsParams are the optional curve overrides for the bonds section.
type BondsParams struct {
	SpreadOverride *decimal.Decimal `json:"spread_override,omitempty"`
	YieldOverride  *decimal.Decimal `json:"yield_override,omitempty"`
}

// FromQuery reads the overrides from a query string.
func (p *BondsParams) FromQuery(values url.Values) []string {
	var problems []string
	queryDecimal(values, "spread_override", &p.SpreadOverride, &problems)
	queryDecimal(values, "yield_override", &p.YieldOverride, &problems)
	return problems
}

// Validate accepts any override value.
func (p *BondsParams) Validate() error { return nil }

// BondPosition is one bond position row.
type BondPosition struct {
	Instrument string          `json:"instrument"`
	Notional   decimal.Decimal `json:"notional"`
	Yield      decimal.Decimal `json:"yield"`
	Spread     decimal.Decimal `json:"spread"`
	DV01       decimal.Decimal `json:"dv01"`
}

// BondsPayload is the bonds section payload.
type BondsPayload struct {
	Positions []BondPosition `json:"positions"`
	Metadata  struct {
		metadata
		OverridesApplied map[string]bool `json:"overrides_applied"`
	} `json:"metadata"`
}

// Bonds returns bond positions, prices and P&L.
type Bonds struct{}

// NewBonds creates the bonds section.
func NewBonds() *Bonds {
	return &Bonds{}
}

func (s *Bonds) Name() string { return "bonds" }

func (s *Bonds) NewParams() domain.SectionParams { return &BondsParams{} }

// Fetch returns placeholder bond positions.
func (s *Bonds) Fetch(ctx context.Context, common domain.CommonParams, params domain.SectionParams) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := paramsAs[*BondsParams](s.Name(), params)
	if err != nil {
		return nil, err
	}

	payload := &BondsPayload{
		Positions: []BondPosition{
			{
				Instrument: "US10Y",
				Notional:   decimal.NewFromInt(10_000_000),
				Yield:      decimalOr(p.YieldOverride, decimal.RequireFromString("4.25")),
				Spread:     decimalOr(p.SpreadOverride, decimal.RequireFromString("0.015")),
				DV01:       decimal.RequireFromString("8500.00"),
			},
			{
				Instrument: "US30Y",
				Notional:   decimal.NewFromInt(5_000_000),
				Yield:      decimalOr(p.YieldOverride, decimal.RequireFromString("4.55")),
				Spread:     decimalOr(p.SpreadOverride, decimal.RequireFromString("0.022")),
				DV01:       decimal.RequireFromString("15200.00"),
			},
		},
	}
	payload.Metadata.metadata = newMetadata(common)
	payload.Metadata.OverridesApplied = map[string]bool{
		"spread": p.SpreadOverride != nil,
		"yield":  p.YieldOverride != nil,
	}

	return payload, nil
}
