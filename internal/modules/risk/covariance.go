// Package risk computes portfolio risk statistics, either exactly from a
// covariance matrix of aligned returns or approximately from static metadata.
package risk

import (
	"fmt"
	"math"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/returns"
	"github.com/aristath/lookthrough/internal/utils"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Constants for the covariance path
const (
	TradingDaysPerYear       = 252
	HighCorrelationThreshold = 0.80
)

// AnnualizationFactor converts a per-period volatility to an annual one.
func AnnualizationFactor(periodsPerYear int) float64 {
	if periodsPerYear <= 0 {
		periodsPerYear = TradingDaysPerYear
	}
	return math.Sqrt(float64(periodsPerYear))
}

// CorrelationPair is a pair of holdings whose returns move together.
type CorrelationPair struct {
	ID1         string  `json:"id1"`
	ID2         string  `json:"id2"`
	Correlation float64 `json:"correlation"`
}

// Matrix is a sample covariance matrix in a fixed holding order.
type Matrix struct {
	IDs   []string
	Cov   *mat.SymDense
	Dates int // Common dates the matrix was built from
}

// Size returns the number of holdings in the matrix.
func (m *Matrix) Size() int {
	return len(m.IDs)
}

// At returns the covariance of two holdings by id.
func (m *Matrix) At(id1, id2 string) (float64, bool) {
	i, j := m.index(id1), m.index(id2)
	if i < 0 || j < 0 || m.Cov == nil {
		return 0, false
	}
	return m.Cov.At(i, j), true
}

func (m *Matrix) index(id string) int {
	for i, v := range m.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// Weights maps percentage weights by id onto fractions in matrix order.
// Ids missing from the map get weight 0.
func (m *Matrix) Weights(weightsByID map[string]float64) []float64 {
	w := make([]float64, len(m.IDs))
	for i, id := range m.IDs {
		w[i] = weightsByID[id] / 100
	}
	return w
}

// Volatility is the annualized portfolio volatility (as a fraction) for
// percentage weights keyed by holding id.
func (m *Matrix) Volatility(weightsByID map[string]float64, annualizeFactor float64) float64 {
	if m.Cov == nil {
		return 0
	}
	return Volatility(m.Weights(weightsByID), m.Cov, annualizeFactor)
}

// Correlations returns all pairs with |correlation| >= threshold.
// Pairs involving a zero-variance holding are skipped.
func (m *Matrix) Correlations(threshold float64) []CorrelationPair {
	pairs := make([]CorrelationPair, 0)
	n := len(m.IDs)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho, ok := m.correlation(i, j)
			if ok && math.Abs(rho) >= threshold {
				pairs = append(pairs, CorrelationPair{ID1: m.IDs[i], ID2: m.IDs[j], Correlation: rho})
			}
		}
	}
	return pairs
}

// CorrelationMatrix returns the full correlation grid in matrix order.
// Undefined correlations (zero variance) are reported as 0, the diagonal as 1.
func (m *Matrix) CorrelationMatrix() [][]float64 {
	n := len(m.IDs)
	grid := make([][]float64, n)
	for i := range grid {
		grid[i] = make([]float64, n)
		for j := range grid[i] {
			if i == j {
				grid[i][j] = 1
				continue
			}
			if rho, ok := m.correlation(i, j); ok {
				grid[i][j] = rho
			}
		}
	}
	return grid
}

func (m *Matrix) correlation(i, j int) (float64, bool) {
	if m.Cov == nil {
		return 0, false
	}
	vi, vj := m.Cov.At(i, i), m.Cov.At(j, j)
	if vi <= 0 || vj <= 0 {
		return 0, false
	}
	rho := m.Cov.At(i, j) / math.Sqrt(vi*vj)
	// Clamp floating-point overshoot
	return math.Max(-1, math.Min(1, rho)), true
}

// Covariance is the sample covariance (n-1 divisor) of two equal-length series.
func Covariance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	return stat.Covariance(a, b, nil)
}

// Volatility computes sqrt(wᵀΣw) * annualizeFactor. The quadratic form is
// floored at zero before the square root. Weights must follow the matrix order;
// a length mismatch yields 0.
func Volatility(weights []float64, cov mat.Symmetric, annualizeFactor float64) float64 {
	if cov == nil || len(weights) == 0 || len(weights) != cov.SymmetricDim() {
		return 0
	}

	w := mat.NewVecDense(len(weights), append([]float64(nil), weights...))
	variance := mat.Inner(w, cov, w)
	if variance < 0 || math.IsNaN(variance) {
		variance = 0
	}
	return math.Sqrt(variance) * annualizeFactor
}

// CovarianceEngine builds covariance matrices from holdings' price histories.
type CovarianceEngine struct {
	aligner *returns.Aligner
	log     zerolog.Logger
}

// NewCovarianceEngine creates a new covariance engine.
func NewCovarianceEngine(aligner *returns.Aligner, log zerolog.Logger) *CovarianceEngine {
	return &CovarianceEngine{
		aligner: aligner,
		log:     log.With().Str("component", "covariance_engine").Logger(),
	}
}

// BuildMatrix aligns the holdings and computes their pairwise sample covariance.
// Any alignment failure disables the matrix entirely; no partial matrix is produced.
func (e *CovarianceEngine) BuildMatrix(holdings []domain.Holding) (*Matrix, error) {
	timer := utils.NewTimer("build_covariance_matrix", e.log)
	defer timer.Stop()

	aligned, err := e.aligner.Align(holdings)
	if err != nil {
		return nil, fmt.Errorf("failed to align returns: %w", err)
	}

	m := FromAligned(aligned)

	e.log.Debug().
		Int("matrix_size", m.Size()).
		Int("common_dates", m.Dates).
		Msg("Built covariance matrix")

	return m, nil
}

// FromAligned computes the covariance matrix of already aligned returns.
func FromAligned(aligned *returns.AlignedSeries) *Matrix {
	n := len(aligned.IDs)
	if n == 0 {
		return &Matrix{Dates: len(aligned.Dates)}
	}
	cov := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		ri := aligned.Returns[aligned.IDs[i]]
		for j := i; j < n; j++ {
			cov.SetSym(i, j, Covariance(ri, aligned.Returns[aligned.IDs[j]]))
		}
	}

	return &Matrix{
		IDs:   append([]string(nil), aligned.IDs...),
		Cov:   cov,
		Dates: len(aligned.Dates),
	}
}
