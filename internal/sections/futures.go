package sections

import (
	"context"
	"errors"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/aristath/posenv/internal/domain"
)

// FuturesParams are the optional price overrides for the futures section.
type FuturesParams struct {
	EODPriceOverride     *decimal.Decimal `json:"eod_price_override,omitempty"`
	OpenPriceOverride    *decimal.Decimal `json:"open_price_override,omitempty"`
	CurrentPriceOverride *decimal.Decimal `json:"current_price_override,omitempty"`
}

// FromQuery reads the overrides from a query string.
func (p *FuturesParams) FromQuery(values url.Values) []string {
	var problems []string
	queryDecimal(values, "eod_price_override", &p.EODPriceOverride, &problems)
	queryDecimal(values, "open_price_override", &p.OpenPriceOverride, &problems)
	queryDecimal(values, "current_price_override", &p.CurrentPriceOverride, &problems)
	return problems
}

// Validate rejects non-positive prices.
func (p *FuturesParams) Validate() error {
	for _, d := range []*decimal.Decimal{p.EODPriceOverride, p.OpenPriceOverride, p.CurrentPriceOverride} {
		if d != nil && !d.IsPositive() {
			return errors.New("price overrides must be positive")
		}
	}
	return nil
}

// override picks the price override matching the requested snapshot.
func (p *FuturesParams) override(tod domain.TimeOfDay) *decimal.Decimal {
	switch tod {
	case domain.StartOfDay:
		return p.OpenPriceOverride
	case domain.EndOfDay:
		return p.EODPriceOverride
	default:
		return p.CurrentPriceOverride
	}
}

// FuturePosition is one futures position row.
type FuturePosition struct {
	Instrument string          `json:"instrument"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	PnL        decimal.Decimal `json:"pnl"`
}

// FuturesPayload is the futures section payload.
type FuturesPayload struct {
	Positions []FuturePosition `json:"positions"`
	Metadata  struct {
		metadata
		OverridesApplied map[string]bool `json:"overrides_applied"`
	} `json:"metadata"`
}

// Futures returns futures positions and risk.
type Futures struct{}

// NewFutures creates the futures section.
func NewFutures() *Futures {
	return &Futures{}
}

// Name returns the section name.
func (s *Futures) Name() string { return "futures" }

// NewParams returns empty futures params.
func (s *Futures) NewParams() domain.SectionParams { return &FuturesParams{} }

// Fetch returns placeholder futures positions.
func (s *Futures) Fetch(ctx context.Context, common domain.CommonParams, params domain.SectionParams) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := paramsAs[*FuturesParams](s.Name(), params)
	if err != nil {
		return nil, err
	}

	price := p.override(common.TimeOfDay)

	payload := &FuturesPayload{
		Positions: []FuturePosition{
			{
				Instrument: "ES_H25",
				Quantity:   100,
				Price:      decimalOr(price, decimal.RequireFromString("5025.50")),
				PnL:        decimal.RequireFromString("12500.00"),
			},
			{
				Instrument: "NQ_H25",
				Quantity:   -50,
				Price:      decimalOr(price, decimal.RequireFromString("17850.25")),
				PnL:        decimal.RequireFromString("-8750.00"),
			},
		},
	}
	payload.Metadata.metadata = newMetadata(common)
	payload.Metadata.OverridesApplied = map[string]bool{
		"eod_price":     p.EODPriceOverride != nil,
		"open_price":    p.OpenPriceOverride != nil,
		"current_price": p.CurrentPriceOverride != nil,
	}

	return payload, nil
}
