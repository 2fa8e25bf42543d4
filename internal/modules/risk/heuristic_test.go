package risk

import (
	"testing"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v float64) *float64 {
	return &v
}

func TestChain_Resolve(t *testing.T) {
	chain := MetricChain(ReturnOf, 6)

	testCases := []struct {
		name     string
		holding  domain.Holding
		expected float64
	}{
		{
			name: "normalized wins",
			holding: domain.Holding{
				Metrics:       domain.RiskMetrics{ReturnPct: pct(9)},
				VendorMetrics: domain.RiskMetrics{ReturnPct: pct(4)},
			},
			expected: 9,
		},
		{
			name:     "vendor fallback",
			holding:  domain.Holding{VendorMetrics: domain.RiskMetrics{ReturnPct: pct(4)}},
			expected: 4,
		},
		{
			name:     "explicit zero is a value",
			holding:  domain.Holding{Metrics: domain.RiskMetrics{ReturnPct: pct(0)}},
			expected: 0,
		},
		{
			name:     "default",
			holding:  domain.Holding{},
			expected: 6,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := chain.Resolve(tc.holding)
			require.True(t, ok)
			assert.Equal(t, tc.expected, v)
		})
	}

	_, ok := Chain{FromMetrics(BetaOf)}.Resolve(domain.Holding{})
	assert.False(t, ok)
}

func TestEstimate_TwoHoldingScenario(t *testing.T) {
	est := NewHeuristicEstimator(DefaultHeuristicConfig())

	stats := est.Estimate([]domain.Holding{
		{ID: "A", Weight: 50, Metrics: domain.RiskMetrics{ReturnPct: pct(10), VolatilityPct: pct(5)}},
		{ID: "B", Weight: 50, Metrics: domain.RiskMetrics{ReturnPct: pct(20), VolatilityPct: pct(10)}},
	})

	assert.InDelta(t, 15.0, stats.ReturnPct, 1e-12)
	assert.InDelta(t, 7.5, stats.RawVolatilityPct, 1e-12)
	assert.Equal(t, 1.0, stats.DiversificationFactor)
	assert.InDelta(t, 7.5, stats.VolatilityPct, 1e-12)
	assert.InDelta(t, (15.0-2.0)/7.5, stats.Sharpe, 1e-12)

	// Defaults for the fields without metadata
	assert.InDelta(t, 1.2, stats.CostPct, 1e-12)
	assert.InDelta(t, 1.5, stats.YieldPct, 1e-12)
	assert.InDelta(t, 1.0, stats.Beta, 1e-12)
}

func TestEstimate_EmptyPortfolio(t *testing.T) {
	stats := NewHeuristicEstimator(DefaultHeuristicConfig()).Estimate(nil)

	assert.Equal(t, 0.0, stats.ReturnPct)
	assert.Equal(t, 0.0, stats.VolatilityPct)
	assert.Equal(t, 0.0, stats.Sharpe)
}

func TestEstimate_ZeroTotalWeight(t *testing.T) {
	stats := NewHeuristicEstimator(DefaultHeuristicConfig()).Estimate([]domain.Holding{
		{ID: "A"},
		{ID: "B"},
	})

	assert.Equal(t, Stats{DiversificationFactor: 1.0}, stats)
}

func TestEstimate_WeightsNotRenormalized(t *testing.T) {
	stats := NewHeuristicEstimator(DefaultHeuristicConfig()).Estimate([]domain.Holding{
		{ID: "A", Weight: 40, Metrics: domain.RiskMetrics{ReturnPct: pct(10)}},
	})

	assert.InDelta(t, 4.0, stats.ReturnPct, 1e-12)
}

func TestDiversificationFactor(t *testing.T) {
	est := NewHeuristicEstimator(DefaultHeuristicConfig())

	testCases := []struct {
		holdings int
		expected float64
	}{
		{0, 1.0},
		{1, 1.0},
		{3, 1.0},
		{4, 0.85},
		{12, 0.85},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, est.DiversificationFactor(tc.holdings), "holdings=%d", tc.holdings)
	}
}

func TestEstimate_DiscountApplied(t *testing.T) {
	holdings := make([]domain.Holding, 4)
	for i := range holdings {
		holdings[i] = domain.Holding{ID: string(rune('A' + i)), Weight: 25, Metrics: domain.RiskMetrics{VolatilityPct: pct(10)}}
	}

	stats := NewHeuristicEstimator(DefaultHeuristicConfig()).Estimate(holdings)
	assert.InDelta(t, 10.0, stats.RawVolatilityPct, 1e-12)
	assert.InDelta(t, 8.5, stats.VolatilityPct, 1e-12)
}

func TestEstimate_ZeroWeightHoldingsDoNotCountTowardsDiscount(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "A", Weight: 40, Metrics: domain.RiskMetrics{VolatilityPct: pct(10)}},
		{ID: "B", Weight: 30, Metrics: domain.RiskMetrics{VolatilityPct: pct(10)}},
		{ID: "C", Weight: 30, Metrics: domain.RiskMetrics{VolatilityPct: pct(10)}},
		{ID: "D", Weight: 0, Metrics: domain.RiskMetrics{VolatilityPct: pct(10)}},
	}

	stats := NewHeuristicEstimator(DefaultHeuristicConfig()).Estimate(holdings)
	assert.Equal(t, 1.0, stats.DiversificationFactor)
	assert.InDelta(t, 10.0, stats.VolatilityPct, 1e-12)
}

func TestEstimate_CustomConfig(t *testing.T) {
	cfg := DefaultHeuristicConfig()
	cfg.DiversificationDiscount = 0.5
	cfg.DiscountMinHoldings = 1
	cfg.RiskFreeRatePct = 0
	cfg.Defaults.VolatilityPct = 20

	stats := NewHeuristicEstimator(cfg).Estimate([]domain.Holding{
		{ID: "A", Weight: 50, Metrics: domain.RiskMetrics{ReturnPct: pct(10)}},
		{ID: "B", Weight: 50, Metrics: domain.RiskMetrics{ReturnPct: pct(10)}},
	})

	assert.InDelta(t, 10.0, stats.VolatilityPct, 1e-12)
	assert.InDelta(t, 1.0, stats.Sharpe, 1e-12)
}
