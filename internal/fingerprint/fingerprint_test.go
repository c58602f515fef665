package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/posenv/internal/domain"
)

type testParams struct {
	Override *float64 `json:"override"`
}

func (p *testParams) Validate() error { return nil }

func request(books ...string) domain.Request {
	return domain.Request{
		Common: domain.CommonParams{
			EnvDate:   "20250101",
			PosDate:   "20241231",
			Books:     books,
			TimeOfDay: domain.Live,
		},
		Section: domain.SectionAll,
		Sections: map[string]domain.SectionParams{
			"futures": &testParams{},
			"bonds":   &testParams{},
		},
	}
}

func TestBuild_BookOrderIndependent(t *testing.T) {
	k1, err := Build(request("A", "B", "C"))
	require.NoError(t, err)
	k2, err := Build(request("C", "A", "B"))
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
}

func TestBuild_DoesNotReorderCallerBooks(t *testing.T) {
	req := request("B", "A")
	_, err := Build(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, req.Common.Books)
}

func TestBuild_StableAcrossCalls(t *testing.T) {
	first, err := Build(request("X"))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Build(request("X"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuild_DistinguishesFields(t *testing.T) {
	base, err := Build(request("A", "B"))
	require.NoError(t, err)

	price := 101.5
	tests := []struct {
		name   string
		mutate func(*domain.Request)
	}{
		{"env date", func(r *domain.Request) { r.Common.EnvDate = "20250102" }},
		{"pos date", func(r *domain.Request) { r.Common.PosDate = "20250101" }},
		{"books", func(r *domain.Request) { r.Common.Books = []string{"A"} }},
		{"time of day", func(r *domain.Request) { r.Common.TimeOfDay = domain.EndOfDay }},
		{"section set", func(r *domain.Request) { delete(r.Sections, "bonds") }},
		{"section params", func(r *domain.Request) { r.Sections["futures"] = &testParams{Override: &price} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request("A", "B")
			tt.mutate(&req)
			key, err := Build(req)
			require.NoError(t, err)
			assert.NotEqual(t, base, key)
		})
	}
}
