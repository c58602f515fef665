package sections

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/aristath/posenv/internal/domain"
)

// NewTradesParams control which trades the blotter includes.
type NewTradesParams struct {
	IncludeTPlus1 bool `json:"include_tplus1"`
}

// FromQuery reads include_tplus1 from a query string.
func (p *NewTradesParams) FromQuery(values url.Values) []string {
	raw := values.Get("include_tplus1")
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return []string{fmt.Sprintf("include_tplus1: must be a boolean, got '%s'", raw)}
	}
	p.IncludeTPlus1 = b
	return nil
}

func (p *NewTradesParams) Validate() error { return nil }

// Trade is one blotter row. Futures carry quantity and price, bonds carry
// notional and yield.
type Trade struct {
	TradeID        string           `json:"trade_id"`
	Instrument     string           `json:"instrument"`
	Side           string           `json:"side"`
	Quantity       int64            `json:"quantity,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	Notional       *decimal.Decimal `json:"notional,omitempty"`
	Yield          *decimal.Decimal `json:"yield,omitempty"`
	TradeDate      string           `json:"trade_date"`
	SettlementDate string           `json:"settlement_date"`
}

// NewTradesPayload is the new_trades section payload.
type NewTradesPayload struct {
	Trades   []Trade `json:"trades"`
	Count    int     `json:"count"`
	Metadata struct {
		metadata
		IncludeTPlus1 bool `json:"include_tplus1"`
	} `json:"metadata"`
}

// NewTrades returns the blotter of trades booked on the position date.
type NewTrades struct{}

// NewNewTrades creates the new_trades section.
func NewNewTrades() *NewTrades {
	return &NewTrades{}
}

func (s *NewTrades) Name() string { return "new_trades" }

func (s *NewTrades) NewParams() domain.SectionParams { return &NewTradesParams{} }

// Fetch returns a placeholder trade blotter.
func (s *NewTrades) Fetch(ctx context.Context, common domain.CommonParams, params domain.SectionParams) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := paramsAs[*NewTradesParams](s.Name(), params)
	if err != nil {
		return nil, err
	}

	ptr := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	trades := []Trade{
		{
			TradeID:        "TRD001",
			Instrument:     "ES_H25",
			Side:           "BUY",
			Quantity:       25,
			Price:          ptr("5020.00"),
			TradeDate:      common.PosDate,
			SettlementDate: common.PosDate,
		},
		{
			TradeID:        "TRD002",
			Instrument:     "US10Y",
			Side:           "SELL",
			Notional:       ptr("5000000"),
			Yield:          ptr("4.28"),
			TradeDate:      common.PosDate,
			SettlementDate: common.PosDate,
		},
	}

	if p.IncludeTPlus1 {
		trades = append(trades, Trade{
			TradeID:        "TRD003",
			Instrument:     "NQ_H25",
			Side:           "BUY",
			Quantity:       10,
			Price:          ptr("17800.00"),
			TradeDate:      common.PosDate,
			SettlementDate: "T+1",
		})
	}

	payload := &NewTradesPayload{Trades: trades, Count: len(trades)}
	payload.Metadata.metadata = newMetadata(common)
	payload.Metadata.IncludeTPlus1 = p.IncludeTPlus1

	return payload, nil
}
