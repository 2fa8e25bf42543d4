package analytics

import (
	"errors"
	"sort"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/returns"
	"github.com/aristath/lookthrough/internal/modules/risk"
)

// Statistic methods
const (
	MethodReal      = "real"
	MethodHeuristic = "heuristic"
)

// StatsResult is the portfolio statistics together with how they were obtained.
type StatsResult struct {
	risk.Stats
	Method           string                 `json:"method"`
	Reason           string                 `json:"reason,omitempty"` // Why the real path was not used
	Holdings         int                    `json:"holdings"`
	CommonDates      int                    `json:"common_dates,omitempty"`
	HighCorrelations []risk.CorrelationPair `json:"high_correlations,omitempty"`
	Correlation      *CorrelationGrid       `json:"correlation,omitempty"`
}

// CorrelationGrid is the pairwise correlation of the aligned returns, rows and
// columns in IDs order.
type CorrelationGrid struct {
	IDs    []string    `json:"ids"`
	Matrix [][]float64 `json:"matrix"`
}

// Stats computes real statistics when the holdings share enough history and
// falls back to the metadata heuristic otherwise.
func (e *Engine) Stats(holdings []domain.Holding) StatsResult {
	matrix, err := e.covariance.BuildMatrix(holdings)
	return e.statsFrom(holdings, matrix, err)
}

// statsFrom combines a matrix build outcome with the heuristic. On the real
// path only volatility comes from the matrix; return, cost, yield and beta
// have no history-based estimate and stay heuristic, and Sharpe is recomputed.
func (e *Engine) statsFrom(holdings []domain.Holding, matrix *risk.Matrix, buildErr error) StatsResult {
	result := StatsResult{
		Stats:    e.heuristic.Estimate(holdings),
		Method:   MethodHeuristic,
		Holdings: len(holdings),
	}

	if buildErr != nil {
		result.Reason = fallbackReason(buildErr)
		e.log.Debug().Str("reason", result.Reason).Msg("Using heuristic statistics")
		return result
	}

	volPct := matrix.Volatility(weightsByID(holdings), risk.AnnualizationFactor(e.settings.AnnualizationDays)) * 100

	result.Method = MethodReal
	result.VolatilityPct = volPct
	result.RawVolatilityPct = volPct
	result.DiversificationFactor = 1
	result.Sharpe = e.heuristic.Sharpe(result.ReturnPct, volPct)
	result.CommonDates = matrix.Dates
	result.HighCorrelations = matrix.Correlations(e.settings.CorrelationThreshold)
	result.Correlation = &CorrelationGrid{IDs: matrix.IDs, Matrix: matrix.CorrelationMatrix()}
	return result
}

func fallbackReason(err error) string {
	var insufficient *returns.InsufficientHistoryError
	if errors.As(err, &insufficient) {
		return insufficient.Error()
	}
	return err.Error()
}

func weightsByID(holdings []domain.Holding) map[string]float64 {
	weights := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		weights[h.ID] += h.Weight
	}
	return weights
}

// holdingSetKey identifies the set of holdings regardless of order and weight.
func holdingSetKey(holdings []domain.Holding) string {
	ids := domain.IDs(holdings)
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
