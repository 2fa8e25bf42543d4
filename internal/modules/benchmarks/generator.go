package benchmarks

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/returns"
	"github.com/rs/zerolog"
)

// ErrSeriesMismatch is returned when two series cannot be blended point by point.
var ErrSeriesMismatch = errors.New("series must be non-empty and of equal length")

// ProfileMix is a fixed bond/equity mix.
type ProfileMix struct {
	ID           string
	Name         string
	BondWeight   float64 // Fraction, BondWeight + EquityWeight = 1
	EquityWeight float64
	Color        string
}

// DefaultProfiles are the five canonical risk tiers, least risky first.
var DefaultProfiles = []ProfileMix{
	{ID: "conservador", Name: "Conservador", BondWeight: 0.90, EquityWeight: 0.10, Color: "#2E7D32"},
	{ID: "moderado", Name: "Moderado", BondWeight: 0.75, EquityWeight: 0.25, Color: "#66BB6A"},
	{ID: "equilibrado", Name: "Equilibrado", BondWeight: 0.50, EquityWeight: 0.50, Color: "#FBC02D"},
	{ID: "dinamico", Name: "Dinámico", BondWeight: 0.25, EquityWeight: 0.75, Color: "#FB8C00"},
	{ID: "agresivo", Name: "Agresivo", BondWeight: 0.10, EquityWeight: 0.90, Color: "#C62828"},
}

// Profile is a synthetic benchmark derived from the base indices.
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	BondWeight    float64   `json:"bond_weight"`
	EquityWeight  float64   `json:"equity_weight"`
	VolatilityPct float64   `json:"volatility_pct"`
	ReturnPct     float64   `json:"return_pct"`
	Color         string    `json:"color"`
	Series        []float64 `json:"series,omitempty"`
}

// Generator builds profiles from candidate reference indices.
type Generator struct {
	selection SelectionConfig
	mixes     []ProfileMix
	log       zerolog.Logger
}

// NewGenerator creates a generator. Nil mixes use DefaultProfiles.
func NewGenerator(selection SelectionConfig, mixes []ProfileMix, log zerolog.Logger) *Generator {
	if len(mixes) == 0 {
		mixes = DefaultProfiles
	}
	return &Generator{
		selection: selection,
		mixes:     mixes,
		log:       log.With().Str("component", "benchmark_generator").Logger(),
	}
}

// SelectBase resolves the bond and equity anchors from the candidates. When
// both anchors come from candidates with overlapping history, their
// normalized value series are aligned onto the shared dates.
func (g *Generator) SelectBase(candidates []domain.Holding) Base {
	base := Base{
		Bond:   g.selection.Select(RoleBond, candidates),
		Equity: g.selection.Select(RoleEquity, candidates),
	}

	byID := make(map[string]domain.Holding, len(candidates))
	for _, h := range candidates {
		byID[h.ID] = h
	}
	bond, okBond := byID[base.Bond.ID]
	equity, okEquity := byID[base.Equity.ID]
	if okBond && okEquity && bond.HasHistory() && equity.HasHistory() {
		dates := returns.CommonDates([]domain.Holding{bond, equity})
		if len(dates) >= 2 {
			base.Dates = dates
			base.Bond.Series = NormalizeSeries(pricesOn(bond, dates))
			base.Equity.Series = NormalizeSeries(pricesOn(equity, dates))
		}
	}

	g.log.Debug().
		Str("bond", base.Bond.ID).
		Str("bond_source", base.Bond.Source).
		Str("equity", base.Equity.ID).
		Str("equity_source", base.Equity.Source).
		Int("series_points", len(base.Dates)).
		Msg("Selected base indices")

	return base
}

// Build selects the base indices and blends every profile.
func (g *Generator) Build(candidates []domain.Holding) ([]Profile, Base) {
	base := g.SelectBase(candidates)
	return g.Profiles(base), base
}

// Profiles blends the base indices into one profile per mix. Volatility and
// return are linear combinations of the two indices; cross-correlation is ignored.
func (g *Generator) Profiles(base Base) []Profile {
	profiles := make([]Profile, 0, len(g.mixes))
	for _, mix := range g.mixes {
		p := Profile{
			ID:            mix.ID,
			Name:          mix.Name,
			BondWeight:    mix.BondWeight,
			EquityWeight:  mix.EquityWeight,
			VolatilityPct: mix.BondWeight*base.Bond.VolatilityPct + mix.EquityWeight*base.Equity.VolatilityPct,
			ReturnPct:     mix.BondWeight*base.Bond.ReturnPct + mix.EquityWeight*base.Equity.ReturnPct,
			Color:         mix.Color,
		}
		if len(base.Dates) > 0 {
			series, err := BlendSeries(base.Bond.Series, base.Equity.Series, mix.BondWeight, mix.EquityWeight)
			if err != nil {
				g.log.Warn().Err(err).Str("profile", mix.ID).Msg("Skipping profile series")
			} else {
				p.Series = series
			}
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// BlendSeries combines two pre-aligned value series point by point. It does
// not align: empty or unequal-length input is rejected.
func BlendSeries(bond, equity []float64, bondWeight, equityWeight float64) ([]float64, error) {
	if len(bond) == 0 || len(bond) != len(equity) {
		return nil, fmt.Errorf("%w: bond=%d equity=%d", ErrSeriesMismatch, len(bond), len(equity))
	}

	out := make([]float64, len(bond))
	for i := range bond {
		out[i] = bondWeight*bond[i] + equityWeight*equity[i]
	}
	return out, nil
}

// NormalizeSeries rebases a price series to start at 100. A series starting
// at zero cannot be rebased and is returned as zeros.
func NormalizeSeries(prices []float64) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 || prices[0] == 0 {
		return out
	}
	for i, p := range prices {
		out[i] = p / prices[0] * 100
	}
	return out
}

func pricesOn(h domain.Holding, dates []string) []float64 {
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = h.Prices[d]
	}
	return out
}

// round rounds to n decimal places
func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	scaled := val * multiplier
	if math.IsInf(scaled, 0) {
		return val
	}
	return math.Round(scaled) / multiplier
}
