package sections

import (
	"context"
	"errors"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/aristath/posenv/internal/domain"
)

const defaultCurve = "USD_SOFR"

// IRDeltaParams select the curve and bump size for the rate delta ladder.
type IRDeltaParams struct {
	CurveOverride *string          `json:"curve_override,omitempty"`
	ShiftBps      *decimal.Decimal `json:"shift_bps,omitempty"`
}

// FromQuery reads the curve and shift from a query string.
func (p *IRDeltaParams) FromQuery(values url.Values) []string {
	var problems []string
	if curve := values.Get("curve_override"); curve != "" {
		p.CurveOverride = &curve
	}
	queryDecimal(values, "shift_bps", &p.ShiftBps, &problems)
	return problems
}

// Validate rejects a zero shift.
func (p *IRDeltaParams) Validate() error {
	if p.ShiftBps != nil && p.ShiftBps.IsZero() {
		return errors.New("shift_bps must be non-zero")
	}
	return nil
}

// TenorDelta is the delta of one tenor bucket.
type TenorDelta struct {
	Tenor string          `json:"tenor"`
	Delta decimal.Decimal `json:"delta"`
}

// IRDeltaPayload is the ir_delta section payload.
type IRDeltaPayload struct {
	Deltas     []TenorDelta    `json:"deltas"`
	TotalDelta decimal.Decimal `json:"total_delta"`
	Metadata   struct {
		metadata
		Curve    string          `json:"curve"`
		ShiftBps decimal.Decimal `json:"shift_bps"`
	} `json:"metadata"`
}

var baseDeltas = []struct {
	tenor string
	delta string
}{
	{"1M", "1250.00"},
	{"3M", "3420.00"},
	{"6M", "5890.00"},
	{"1Y", "12500.00"},
	{"2Y", "28400.00"},
	{"5Y", "45200.00"},
	{"10Y", "62100.00"},
	{"30Y", "38900.00"},
}

// IRDelta returns interest-rate delta by tenor.
type IRDelta struct{}

// NewIRDelta creates the ir_delta section.
func NewIRDelta() *IRDelta {
	return &IRDelta{}
}

func (s *IRDelta) Name() string { return "ir_delta" }

func (s *IRDelta) NewParams() domain.SectionParams { return &IRDeltaParams{} }

// Fetch returns a placeholder delta ladder scaled by the shift.
func (s *IRDelta) Fetch(ctx context.Context, common domain.CommonParams, params domain.SectionParams) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := paramsAs[*IRDeltaParams](s.Name(), params)
	if err != nil {
		return nil, err
	}

	curve := defaultCurve
	if p.CurveOverride != nil {
		curve = *p.CurveOverride
	}
	shift := decimalOr(p.ShiftBps, decimal.NewFromInt(1))

	payload := &IRDeltaPayload{Deltas: make([]TenorDelta, 0, len(baseDeltas))}
	total := decimal.Zero
	for _, b := range baseDeltas {
		delta := decimal.RequireFromString(b.delta).Mul(shift)
		total = total.Add(delta)
		payload.Deltas = append(payload.Deltas, TenorDelta{Tenor: b.tenor, Delta: delta})
	}
	payload.TotalDelta = total
	payload.Metadata.metadata = newMetadata(common)
	payload.Metadata.Curve = curve
	payload.Metadata.ShiftBps = shift

	return payload, nil
}
