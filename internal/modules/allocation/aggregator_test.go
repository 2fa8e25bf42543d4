package allocation

import (
	"testing"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(DefaultConfig(), zerolog.Nop())
}

func TestByCategory(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "A", Weight: 30, Category: "RV Global"},
		{ID: "B", Weight: 20, AssetType: "ETF"},
		{ID: "C", Weight: 30, Category: "RV Global"},
		{ID: "D", Weight: 20},
		{ID: "E", Weight: 0, Category: "Ignored"},
	}

	got := ByCategory(holdings)
	require.Len(t, got, 3)

	assert.Equal(t, Slice{Name: "RV Global", WeightPct: 60, SharePct: 60}, got[0])
	// Ties sort by name
	assert.Equal(t, "ETF", got[1].Name)
	assert.Equal(t, OtherCategory, got[2].Name)
}

func TestByCategory_SharesOfPartialPortfolio(t *testing.T) {
	got := ByCategory([]domain.Holding{{ID: "A", Weight: 30, Category: "X"}, {ID: "B", Weight: 10, Category: "Y"}})
	require.Len(t, got, 2)
	assert.Equal(t, 30.0, got[0].WeightPct)
	assert.Equal(t, 75.0, got[0].SharePct)
}

func TestAssetClasses_ExplicitBreakdownScenario(t *testing.T) {
	split := newTestAggregator().AssetClasses([]domain.Holding{{
		ID:        "A",
		Weight:    100,
		Breakdown: &domain.AssetBreakdown{Equity: 60, Bond: 35, Cash: 5},
	}})

	assert.InDelta(t, 60, split.Equity, 1e-9)
	assert.InDelta(t, 35, split.Bond, 1e-9)
	assert.InDelta(t, 5, split.Cash, 1e-9)
	assert.Equal(t, 0.0, split.Other)
	assert.InDelta(t, 100, split.CoveragePct, 1e-9)
}

func TestAssetClasses_BreakdownScaledWithinTolerance(t *testing.T) {
	split := newTestAggregator().AssetClasses([]domain.Holding{{
		ID:        "A",
		Weight:    50,
		Breakdown: &domain.AssetBreakdown{Equity: 98, Bond: 0, Cash: 0, Other: 0},
	}})

	assert.InDelta(t, 100, split.Equity, 1e-9)
	assert.InDelta(t, 100, split.CoveragePct, 1e-9)
}

func TestAssetClasses_KeywordFallback(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "EQ", Weight: 40, Category: "Renta Variable Global"},
		{ID: "MIX", Weight: 20, Category: "Mixto Moderado"},
		{ID: "BOND", Weight: 20, Category: "Renta Fija Euro"},
		{ID: "MM", Weight: 10, Category: "Monetario"},
		{ID: "GOLD", Weight: 10, Category: "Materias primas"},
		// Sums to 80: outside tolerance, classified by its category instead
		{ID: "BAD", Weight: 0.0001, Category: "Equity", Breakdown: &domain.AssetBreakdown{Equity: 80}},
	}

	split := newTestAggregator().AssetClasses(holdings)

	total := split.Equity + split.Bond + split.Cash + split.Other
	assert.InDelta(t, 100, total, 1e-9)
	assert.InDelta(t, 50, split.Equity, 1e-3)
	assert.InDelta(t, 30, split.Bond, 1e-3)
	assert.InDelta(t, 10, split.Cash, 1e-3)
	assert.InDelta(t, 10, split.Other, 1e-3)
	assert.Equal(t, 0.0, split.CoveragePct)
}

func TestAssetClasses_MixedCoverage(t *testing.T) {
	split := newTestAggregator().AssetClasses([]domain.Holding{
		{ID: "A", Weight: 30, Breakdown: &domain.AssetBreakdown{Equity: 100}},
		{ID: "B", Weight: 10, Category: "Renta Fija"},
	})

	assert.InDelta(t, 75, split.CoveragePct, 1e-9)
	assert.InDelta(t, 75, split.Equity, 1e-9)
	assert.InDelta(t, 25, split.Bond, 1e-9)
}

func TestAssetClasses_Empty(t *testing.T) {
	assert.Equal(t, AssetClassSplit{}, newTestAggregator().AssetClasses(nil))
}

func TestNormalizeRegion(t *testing.T) {
	testCases := map[string]string{
		"USA":             RegionUnitedStates,
		" Estados Unidos": RegionUnitedStates,
		"Europa":          RegionEurope,
		"Reino Unido":     RegionUK,
		"Emergentes":      RegionEmerging,
		"Africa":          "Africa",
	}

	for input, expected := range testCases {
		assert.Equal(t, expected, NormalizeRegion(input), input)
	}
}

func TestInferRegions(t *testing.T) {
	a := newTestAggregator()

	testCases := []struct {
		name     string
		holding  domain.Holding
		expected map[string]float64
	}{
		{"s&p fund", domain.Holding{Name: "Vanguard S&P 500"}, map[string]float64{RegionUnitedStates: 100}},
		{"emerging beats asia", domain.Holding{Name: "Asia Emerging Leaders"}, map[string]float64{RegionEmerging: 100}},
		{"european category", domain.Holding{Category: "RV Europa"}, map[string]float64{RegionEurope: 100}},
		{"global", domain.Holding{Name: "MSCI World Tracker"}, DefaultGlobalSplit()},
		{"unknown", domain.Holding{Name: "Thematic Robotics"}, map[string]float64{RegionOther: 100}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, a.InferRegions(tc.holding))
		})
	}
}

func TestEquityRegions(t *testing.T) {
	holdings := []domain.Holding{
		{
			ID:              "WORLD",
			Weight:          50,
			Category:        "Renta Variable",
			ComputedRegions: map[string]float64{"USA": 60, "Europe": 40},
			DeclaredRegions: map[string]float64{"Japan": 100},
		},
		{
			ID:            "EU",
			Weight:        25,
			Breakdown:     &domain.AssetBreakdown{Equity: 50, Bond: 50},
			VendorRegions: map[string]float64{"Europa": 100},
		},
		{ID: "BOND", Weight: 25, Category: "Renta Fija"},
	}

	summary := newTestAggregator().EquityRegions(holdings)

	// Equity: 50 from WORLD + 12.5 from EU = 62.5 of 100
	assert.InDelta(t, 62.5, summary.EquityExposurePct, 1e-9)
	assert.Equal(t, map[string]string{"WORLD": RegionSourceComputed, "EU": RegionSourceVendor}, summary.Sources)

	require.Len(t, summary.Regions, 2)
	// Europe: 50*0.4 + 12.5 = 32.5; United States: 30
	assert.Equal(t, RegionEurope, summary.Regions[0].Region)
	assert.InDelta(t, 52, summary.Regions[0].EquityPct, 1e-9)
	assert.InDelta(t, 32.5, summary.Regions[0].PortfolioPct, 1e-9)
	assert.Equal(t, RegionUnitedStates, summary.Regions[1].Region)
	assert.InDelta(t, 48, summary.Regions[1].EquityPct, 1e-9)
	assert.InDelta(t, 30, summary.Regions[1].PortfolioPct, 1e-9)
}

func TestEquityRegions_NoEquity(t *testing.T) {
	summary := newTestAggregator().EquityRegions([]domain.Holding{{ID: "B", Weight: 100, Category: "Bond"}})
	assert.Empty(t, summary.Regions)
	assert.Equal(t, 0.0, summary.EquityExposurePct)
}

func TestTopHoldings_LookThrough(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "A", Weight: 50, Positions: []domain.Position{
			{Name: "Apple", Weight: 10, Sector: "Technology"},
			{Name: "Nestle", Weight: 4},
		}},
		{ID: "B", Weight: 50, Positions: []domain.Position{
			{Name: "APPLE ", Weight: 6},
			{Name: "Shell", Weight: 4, Sector: "Energy"},
		}},
	}

	got := TopHoldings(holdings, nil, 10)
	require.Len(t, got, 3)

	assert.Equal(t, Position{Name: "Apple", Sector: "Technology", WeightPct: 8}, got[0])
	// Equal weights keep first-seen order
	assert.Equal(t, "Nestle", got[1].Name)
	assert.Equal(t, "Shell", got[2].Name)
	assert.Equal(t, 2.0, got[2].WeightPct)
}

func TestTopHoldings_Limit(t *testing.T) {
	positions := make([]domain.Position, 15)
	for i := range positions {
		positions[i] = domain.Position{Name: string(rune('A' + i)), Weight: float64(i + 1)}
	}

	got := TopHoldings([]domain.Holding{{ID: "F", Weight: 100, Positions: positions}}, nil, 10)
	require.Len(t, got, 10)
	assert.Equal(t, "O", got[0].Name)
	assert.Equal(t, 15.0, got[0].WeightPct)
}

func TestTopHoldings_Precomputed(t *testing.T) {
	pre := []Position{{Name: "Backend", WeightPct: 1}}
	got := TopHoldings([]domain.Holding{{ID: "A", Weight: 100, Positions: []domain.Position{{Name: "X", Weight: 50}}}}, pre, 10)
	assert.Equal(t, pre, got)
}

func TestTopHoldings_FallsBackToFunds(t *testing.T) {
	got := TopHoldings([]domain.Holding{
		{ID: "A", Name: "Fund A", Weight: 30, Category: "Bond"},
		{ID: "B", Weight: 70},
	}, nil, 10)

	require.Len(t, got, 2)
	assert.Equal(t, Position{Name: "B", WeightPct: 70}, got[0])
	assert.Equal(t, Position{Name: "Fund A", Sector: "Bond", WeightPct: 30}, got[1])
}

func TestSummarize(t *testing.T) {
	s := newTestAggregator().Summarize([]domain.Holding{{
		ID:        "A",
		Name:      "Global Fund",
		Weight:    100,
		Category:  "RV Global",
		Breakdown: &domain.AssetBreakdown{Equity: 100},
	}}, nil)

	require.Len(t, s.Categories, 1)
	assert.InDelta(t, 100, s.AssetClasses.Equity, 1e-9)
	assert.InDelta(t, 100, s.Regions.EquityExposurePct, 1e-9)
	assert.Len(t, s.Regions.Regions, len(DefaultGlobalSplit()))
	require.Len(t, s.TopHoldings, 1)
	assert.Equal(t, "Global Fund", s.TopHoldings[0].Name)
}
