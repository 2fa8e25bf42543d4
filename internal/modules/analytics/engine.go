// Package analytics ties the numeric modules together behind one facade:
// request hydration, real-or-heuristic statistics, risk profiles, allocation
// aggregates and cached backtests.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/lookthrough/internal/config"
	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/allocation"
	"github.com/aristath/lookthrough/internal/modules/backtest"
	"github.com/aristath/lookthrough/internal/modules/benchmarks"
	"github.com/aristath/lookthrough/internal/modules/returns"
	"github.com/aristath/lookthrough/internal/modules/risk"
	"github.com/rs/zerolog"
)

// ErrBacktestDisabled is returned when no backtest service is configured.
var ErrBacktestDisabled = errors.New("backtest service not configured")

// PriceProvider supplies daily closes keyed by canonical date.
type PriceProvider interface {
	PriceHistory(ctx context.Context, id string) (map[string]float64, error)
}

// MetadataProvider supplies the static description of a holding, or nil when unknown.
type MetadataProvider interface {
	Metadata(ctx context.Context, id string) (*domain.RawHolding, error)
}

// BacktestRunner resolves backtests, normally through backtest.Cache.
type BacktestRunner interface {
	Get(ctx context.Context, req backtest.Request) (*backtest.Result, error)
	Stats() backtest.Stats
}

// Dependencies are the optional collaborators of the engine. Nil members
// disable the corresponding feature.
type Dependencies struct {
	Prices    PriceProvider
	Metadata  MetadataProvider
	Backtests BacktestRunner
}

// Engine is the analytics facade. It is safe for concurrent use; per-session
// state lives in Session.
type Engine struct {
	settings   config.Analytics
	aligner    *returns.Aligner
	covariance *risk.CovarianceEngine
	heuristic  *risk.HeuristicEstimator
	generator  *benchmarks.Generator
	aggregator *allocation.Aggregator
	deps       Dependencies
	log        zerolog.Logger
}

// NewEngine wires the numeric modules from the analytics settings.
func NewEngine(settings config.Analytics, deps Dependencies, log zerolog.Logger) *Engine {
	aligner := returns.NewAligner(settings.MinCommonDates, log)

	heuristicCfg := risk.HeuristicConfig{
		Defaults: risk.Defaults{
			VolatilityPct: settings.Defaults.VolatilityPct,
			ReturnPct:     settings.Defaults.ReturnPct,
			CostPct:       settings.Defaults.CostPct,
			YieldPct:      settings.Defaults.YieldPct,
			Beta:          settings.Defaults.Beta,
		},
		RiskFreeRatePct:         settings.RiskFreeRatePct,
		DiversificationDiscount: settings.DiversificationDiscount,
		DiscountMinHoldings:     settings.DiscountMinHoldings,
	}

	selection := benchmarks.DefaultSelectionConfig()
	selection.BondIndexID = settings.BondIndexID
	selection.EquityIndexID = settings.EquityIndexID

	allocationCfg := allocation.DefaultConfig()
	allocationCfg.BreakdownMinPct = settings.BreakdownMinPct
	allocationCfg.BreakdownMaxPct = settings.BreakdownMaxPct
	allocationCfg.TopN = settings.TopHoldingsLimit

	return &Engine{
		settings:   settings,
		aligner:    aligner,
		covariance: risk.NewCovarianceEngine(aligner, log),
		heuristic:  risk.NewHeuristicEstimator(heuristicCfg),
		generator:  benchmarks.NewGenerator(selection, nil, log),
		aggregator: allocation.NewAggregator(allocationCfg, log),
		deps:       deps,
		log:        log.With().Str("component", "analytics_engine").Logger(),
	}
}

// Settings returns the tuning the engine was built with.
func (e *Engine) Settings() config.Analytics {
	return e.settings
}

// Hydrate fills what the caller left out from the metadata and price stores,
// then normalizes. Store failures degrade to the data the caller sent.
func (e *Engine) Hydrate(ctx context.Context, raws []domain.RawHolding) ([]domain.Holding, error) {
	merged := make([]domain.RawHolding, len(raws))
	for i, raw := range raws {
		merged[i] = e.hydrateOne(ctx, raw)
	}

	holdings, err := domain.NormalizeAll(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize holdings: %w", err)
	}
	return holdings, nil
}

func (e *Engine) hydrateOne(ctx context.Context, raw domain.RawHolding) domain.RawHolding {
	id := raw.Identifier()
	if id == "" {
		return raw
	}

	if e.deps.Metadata != nil {
		meta, err := e.deps.Metadata.Metadata(ctx, id)
		switch {
		case err != nil:
			e.log.Warn().Err(err).Str("id", id).Msg("Failed to load holding metadata")
		case meta != nil:
			raw.MergeStatic(*meta)
		}
	}

	if len(raw.Prices) == 0 && e.deps.Prices != nil {
		prices, err := e.deps.Prices.PriceHistory(ctx, id)
		if err != nil {
			e.log.Warn().Err(err).Str("id", id).Msg("Failed to load price history")
		} else if len(prices) > 0 {
			raw.Prices = make(domain.RawPrices, len(prices))
			for date, p := range prices {
				raw.Prices[date] = domain.Float(p)
			}
		}
	}

	return raw
}

// Allocation computes the four look-through aggregates.
func (e *Engine) Allocation(holdings []domain.Holding, precomputedTop []allocation.Position) allocation.Summary {
	return e.aggregator.Summarize(holdings, precomputedTop)
}

// Profiles builds the synthetic risk profiles from candidate base indices.
func (e *Engine) Profiles(candidates []domain.Holding) ([]benchmarks.Profile, benchmarks.Base) {
	return e.generator.Build(candidates)
}

// Explain positions a portfolio against the profiles. A negative tolerance
// uses the configured one.
func (e *Engine) Explain(profiles []benchmarks.Profile, volatilityPct, returnPct float64, targetID string, tolerance float64) (benchmarks.Explanation, error) {
	if tolerance < 0 {
		tolerance = e.settings.SimilarityTolerancePP
	}
	return benchmarks.Explain(profiles, volatilityPct, returnPct, targetID, tolerance)
}

// Backtest resolves a backtest through the runner.
func (e *Engine) Backtest(ctx context.Context, req backtest.Request) (*backtest.Result, error) {
	if e.deps.Backtests == nil {
		return nil, ErrBacktestDisabled
	}
	start := time.Now()
	result, err := e.deps.Backtests.Get(ctx, req)
	e.log.Debug().
		Int("holdings", len(req.Holdings)).
		Dur("elapsed", time.Since(start)).
		Bool("failed", err != nil).
		Msg("Backtest served")
	return result, err
}

// BacktestStats reports cache activity, or nil without a runner.
func (e *Engine) BacktestStats() *backtest.Stats {
	if e.deps.Backtests == nil {
		return nil
	}
	s := e.deps.Backtests.Stats()
	return &s
}
