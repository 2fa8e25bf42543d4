package risk

import (
	"github.com/aristath/lookthrough/internal/domain"
)

// Extractor pulls one optional metric out of a holding.
type Extractor func(h domain.Holding) *float64

// Chain tries extractors in order and returns the first available value.
type Chain []Extractor

// Resolve returns the first non-nil value and whether any extractor matched.
func (c Chain) Resolve(h domain.Holding) (float64, bool) {
	for _, extract := range c {
		if v := extract(h); v != nil {
			return *v, true
		}
	}
	return 0, false
}

// Constant returns an extractor that always yields v.
func Constant(v float64) Extractor {
	return func(domain.Holding) *float64 {
		return &v
	}
}

// Metric selects one field of a RiskMetrics value.
type Metric func(m domain.RiskMetrics) *float64

// Field accessors for building chains.
var (
	VolatilityOf Metric = func(m domain.RiskMetrics) *float64 { return m.VolatilityPct }
	ReturnOf     Metric = func(m domain.RiskMetrics) *float64 { return m.ReturnPct }
	CostOf       Metric = func(m domain.RiskMetrics) *float64 { return m.CostPct }
	YieldOf      Metric = func(m domain.RiskMetrics) *float64 { return m.YieldPct }
	BetaOf       Metric = func(m domain.RiskMetrics) *float64 { return m.Beta }
)

// FromMetrics reads a field of the normalized metrics.
func FromMetrics(field Metric) Extractor {
	return func(h domain.Holding) *float64 {
		return field(h.Metrics)
	}
}

// FromVendor reads a field of the raw vendor metrics.
func FromVendor(field Metric) Extractor {
	return func(h domain.Holding) *float64 {
		return field(h.VendorMetrics)
	}
}

// MetricChain is the standard priority: normalized metrics, then vendor
// metrics, then the fixed default.
func MetricChain(field Metric, fallback float64) Chain {
	return Chain{FromMetrics(field), FromVendor(field), Constant(fallback)}
}

// Defaults are the per-holding values used when no metadata is available.
// All percentages except Beta.
type Defaults struct {
	VolatilityPct float64
	ReturnPct     float64
	CostPct       float64
	YieldPct      float64
	Beta          float64
}

// DefaultDefaults returns the standard heuristic fallbacks.
func DefaultDefaults() Defaults {
	return Defaults{
		VolatilityPct: 12,
		ReturnPct:     6,
		CostPct:       1.2,
		YieldPct:      1.5,
		Beta:          1.0,
	}
}

// HeuristicConfig tunes the estimator.
type HeuristicConfig struct {
	Defaults                Defaults
	RiskFreeRatePct         float64
	DiversificationDiscount float64 // Applied to volatility above DiscountMinHoldings
	DiscountMinHoldings     int
}

// DefaultHeuristicConfig returns the standard tuning.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		Defaults:                DefaultDefaults(),
		RiskFreeRatePct:         2.0,
		DiversificationDiscount: 0.85,
		DiscountMinHoldings:     3,
	}
}

// Stats are portfolio-level risk/return statistics in percentage points.
type Stats struct {
	VolatilityPct         float64 `json:"volatility_pct"`
	ReturnPct             float64 `json:"return_pct"`
	CostPct               float64 `json:"cost_pct"`
	YieldPct              float64 `json:"yield_pct"`
	Beta                  float64 `json:"beta"`
	Sharpe                float64 `json:"sharpe"`
	DiversificationFactor float64 `json:"diversification_factor"`
	RawVolatilityPct      float64 `json:"raw_volatility_pct"` // Before the diversification discount
}

// HeuristicEstimator computes weighted-average statistics from static metadata.
type HeuristicEstimator struct {
	cfg        HeuristicConfig
	volatility Chain
	ret        Chain
	cost       Chain
	yield      Chain
	beta       Chain
}

// NewHeuristicEstimator creates an estimator with the standard extractor chains.
func NewHeuristicEstimator(cfg HeuristicConfig) *HeuristicEstimator {
	d := cfg.Defaults
	return &HeuristicEstimator{
		cfg:        cfg,
		volatility: MetricChain(VolatilityOf, d.VolatilityPct),
		ret:        MetricChain(ReturnOf, d.ReturnPct),
		cost:       MetricChain(CostOf, d.CostPct),
		yield:      MetricChain(YieldOf, d.YieldPct),
		beta:       MetricChain(BetaOf, d.Beta),
	}
}

// DiversificationFactor returns the volatility multiplier for n weighted holdings.
func (e *HeuristicEstimator) DiversificationFactor(n int) float64 {
	if n > e.cfg.DiscountMinHoldings {
		return e.cfg.DiversificationDiscount
	}
	return 1.0
}

// Estimate weights each holding's metrics by weight/100. Weights are not
// renormalized, so a portfolio with total weight 0 yields all zeros.
func (e *HeuristicEstimator) Estimate(holdings []domain.Holding) Stats {
	var stats Stats
	weighted := 0
	for _, h := range holdings {
		w := h.Weight / 100
		if w == 0 {
			continue
		}
		weighted++
		stats.RawVolatilityPct += w * resolve(e.volatility, h)
		stats.ReturnPct += w * resolve(e.ret, h)
		stats.CostPct += w * resolve(e.cost, h)
		stats.YieldPct += w * resolve(e.yield, h)
		stats.Beta += w * resolve(e.beta, h)
	}

	stats.DiversificationFactor = e.DiversificationFactor(weighted)
	stats.VolatilityPct = stats.RawVolatilityPct * stats.DiversificationFactor
	stats.Sharpe = e.Sharpe(stats.ReturnPct, stats.VolatilityPct)
	return stats
}

// Sharpe returns (return - risk free) / volatility, or 0 without volatility.
func (e *HeuristicEstimator) Sharpe(returnPct, volatilityPct float64) float64 {
	if volatilityPct == 0 {
		return 0
	}
	return (returnPct - e.cfg.RiskFreeRatePct) / volatilityPct
}

func resolve(c Chain, h domain.Holding) float64 {
	v, _ := c.Resolve(h)
	return v
}
