package risk

import (
	"fmt"
	"math"
	"testing"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/returns"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func pricesFrom(start float64, rets []float64) domain.PriceHistory {
	out := domain.PriceHistory{"2024-03-01": start}
	p := start
	for i, r := range rets {
		p *= 1 + r
		out[fmt.Sprintf("2024-03-%02d", i+2)] = p
	}
	return out
}

func TestCovariance_SelfIsVariance(t *testing.T) {
	testCases := [][]float64{
		{0.01, -0.02, 0.03, 0.0, 0.015},
		{0.5, 0.5, 0.5},
		{-0.1, 0.2},
	}

	for i, s := range testCases {
		t.Run(fmt.Sprintf("series_%d", i), func(t *testing.T) {
			v := Covariance(s, s)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.InDelta(t, stat.Variance(s, nil), v, 1e-15)
		})
	}
}

func TestCovariance_MirrorIsNegativeVariance(t *testing.T) {
	s := []float64{0.01, -0.02, 0.03, 0.0, 0.015, -0.005}
	mirror := make([]float64, len(s))
	for i, v := range s {
		mirror[i] = -v
	}

	assert.InDelta(t, -Covariance(s, s), Covariance(s, mirror), 1e-15)
	assert.InDelta(t, Covariance(s, s), Covariance(mirror, mirror), 1e-15)
}

func TestCovariance_SampleDivisor(t *testing.T) {
	// Mean 2, squared deviations 1+0+1 over n-1=2
	assert.InDelta(t, 1.0, Covariance([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
}

func TestCovariance_InvalidInput(t *testing.T) {
	assert.Equal(t, 0.0, Covariance([]float64{1, 2}, []float64{1}))
	assert.Equal(t, 0.0, Covariance([]float64{1}, []float64{1}))
}

func TestVolatility(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.01,
		0.01, 0.09,
	})

	// w = (0.5, 0.5): 0.25*0.04 + 0.25*0.09 + 2*0.25*0.01 = 0.0375
	got := Volatility([]float64{0.5, 0.5}, cov, 1)
	assert.InDelta(t, math.Sqrt(0.0375), got, 1e-12)

	annual := Volatility([]float64{0.5, 0.5}, cov, AnnualizationFactor(252))
	assert.InDelta(t, math.Sqrt(0.0375)*math.Sqrt(252), annual, 1e-12)

	assert.Equal(t, 0.0, Volatility([]float64{1}, cov, 1), "length mismatch")
	assert.Equal(t, 0.0, Volatility(nil, cov, 1))
}

func TestVolatility_FlooredAtZero(t *testing.T) {
	// Not positive semi-definite: the quadratic form goes negative
	cov := mat.NewSymDense(2, []float64{
		0.01, 0.05,
		0.05, 0.01,
	})
	assert.Equal(t, 0.0, Volatility([]float64{1, -1}, cov, 1))
}

func TestVolatility_OrderInvariant(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		0.040, 0.006, -0.002,
		0.006, 0.090, 0.010,
		-0.002, 0.010, 0.025,
	})
	weights := []float64{0.2, 0.5, 0.3}

	// Same portfolio with holdings permuted as (2, 0, 1)
	perm := []int{2, 0, 1}
	permCov := mat.NewSymDense(3, nil)
	permWeights := make([]float64, 3)
	for i, pi := range perm {
		permWeights[i] = weights[pi]
		for j, pj := range perm {
			if j >= i {
				permCov.SetSym(i, j, cov.At(pi, pj))
			}
		}
	}

	assert.InDelta(t,
		Volatility(weights, cov, AnnualizationFactor(252)),
		Volatility(permWeights, permCov, AnnualizationFactor(252)),
		1e-12,
	)
}

func TestCovarianceEngine_BuildMatrix(t *testing.T) {
	engine := NewCovarianceEngine(returns.NewAligner(10, zerolog.Nop()), zerolog.Nop())

	retsA := []float64{0.01, -0.02, 0.015, 0.005, -0.01, 0.02, 0.0, 0.01, -0.005, 0.012, 0.003}
	retsB := make([]float64, len(retsA))
	for i, r := range retsA {
		retsB[i] = -r
	}

	holdings := []domain.Holding{
		{ID: "A", Weight: 50, Prices: pricesFrom(100, retsA)},
		{ID: "B", Weight: 50, Prices: pricesFrom(80, retsB)},
		{ID: "FLAT", Weight: 0, Prices: pricesFrom(10, make([]float64, len(retsA)))},
	}

	m, err := engine.BuildMatrix(holdings)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "FLAT"}, m.IDs)
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, len(retsA)+1, m.Dates)

	varA, ok := m.At("A", "A")
	require.True(t, ok)
	assert.InDelta(t, stat.Variance(retsA, nil), varA, 1e-12)

	covAB, _ := m.At("A", "B")
	assert.InDelta(t, -varA, covAB, 1e-12)

	// Constant price: zero variance and zero covariance against anything
	for _, id := range m.IDs {
		c, _ := m.At("FLAT", id)
		assert.Equal(t, 0.0, c)
	}

	// Perfect hedge: 50/50 A/B has no volatility
	assert.InDelta(t, 0.0, m.Volatility(map[string]float64{"A": 50, "B": 50}, AnnualizationFactor(252)), 1e-6)

	pairs := m.Correlations(HighCorrelationThreshold)
	require.Len(t, pairs, 1)
	assert.Equal(t, "A", pairs[0].ID1)
	assert.Equal(t, "B", pairs[0].ID2)
	assert.InDelta(t, -1.0, pairs[0].Correlation, 1e-9)

	grid := m.CorrelationMatrix()
	assert.Equal(t, 1.0, grid[2][2])
	assert.Equal(t, 0.0, grid[0][2])
	assert.InDelta(t, -1.0, grid[1][0], 1e-9)
}

func TestCovarianceEngine_BuildMatrixFailsClosed(t *testing.T) {
	engine := NewCovarianceEngine(returns.NewAligner(10, zerolog.Nop()), zerolog.Nop())

	holdings := []domain.Holding{
		{ID: "A", Weight: 50, Prices: pricesFrom(100, make([]float64, 20))},
		{ID: "NEW", Weight: 50},
	}

	m, err := engine.BuildMatrix(holdings)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, returns.ErrInsufficientHistory)
}

func TestMatrix_VolatilityIgnoresMissingWeights(t *testing.T) {
	m := &Matrix{
		IDs: []string{"A", "B"},
		Cov: mat.NewSymDense(2, []float64{0.04, 0, 0, 0.09}),
	}

	assert.InDelta(t, 0.2, m.Volatility(map[string]float64{"A": 100}, 1), 1e-12)
	assert.Equal(t, 0.0, (&Matrix{}).Volatility(map[string]float64{"A": 100}, 1))
}
