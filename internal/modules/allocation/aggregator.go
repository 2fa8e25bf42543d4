// Package allocation aggregates fund holdings into weight-proportional
// look-through views: categories, asset classes, equity regions and the
// largest underlying positions.
package allocation

import (
	"math"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/rs/zerolog"
)

// Config tunes the aggregator.
type Config struct {
	BreakdownMinPct float64 // Explicit breakdowns must sum within [Min, Max]
	BreakdownMaxPct float64
	TopN            int
	GlobalSplit     map[string]float64 // Region split assumed for global equity funds
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		BreakdownMinPct: 95,
		BreakdownMaxPct: 105,
		TopN:            10,
		GlobalSplit:     DefaultGlobalSplit(),
	}
}

// Summary holds all four aggregates.
type Summary struct {
	Categories   []Slice         `json:"categories"`
	AssetClasses AssetClassSplit `json:"asset_classes"`
	Regions      RegionSummary   `json:"regions"`
	TopHoldings  []Position      `json:"top_holdings"`
}

// Aggregator computes look-through aggregates. It is stateless and safe for concurrent use.
type Aggregator struct {
	cfg Config
	log zerolog.Logger
}

// NewAggregator creates a new aggregator.
func NewAggregator(cfg Config, log zerolog.Logger) *Aggregator {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if len(cfg.GlobalSplit) == 0 {
		cfg.GlobalSplit = DefaultGlobalSplit()
	}
	return &Aggregator{
		cfg: cfg,
		log: log.With().Str("component", "allocation_aggregator").Logger(),
	}
}

// Summarize computes every aggregate. precomputedTop, when non-empty, is a
// backend-provided top holdings list that is returned verbatim.
func (a *Aggregator) Summarize(holdings []domain.Holding, precomputedTop []Position) Summary {
	s := Summary{
		Categories:   ByCategory(holdings),
		AssetClasses: a.AssetClasses(holdings),
		Regions:      a.EquityRegions(holdings),
		TopHoldings:  TopHoldings(holdings, precomputedTop, a.cfg.TopN),
	}

	a.log.Debug().
		Int("holdings", len(holdings)).
		Int("categories", len(s.Categories)).
		Float64("coverage_pct", s.AssetClasses.CoveragePct).
		Int("regions", len(s.Regions.Regions)).
		Msg("Summarized allocation")

	return s
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func classificationText(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}

// round rounds a float64 to n decimal places
func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(val*multiplier) / multiplier
}
