// Package returns turns sparse per-holding price histories into dense,
// date-aligned simple return series.
package returns

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultMinCommonDates is the smallest number of shared dates worth aligning.
const DefaultMinCommonDates = 10

// ErrInsufficientHistory signals that the caller must fall back to heuristics.
var ErrInsufficientHistory = errors.New("insufficient common price history")

// InsufficientHistoryError details why alignment failed.
type InsufficientHistoryError struct {
	HoldingID   string // Set when one holding has no history at all
	CommonDates int
	Required    int
}

func (e *InsufficientHistoryError) Error() string {
	if e.HoldingID != "" {
		return fmt.Sprintf("holding %s has no price history", e.HoldingID)
	}
	return fmt.Sprintf("only %d common dates (need at least %d)", e.CommonDates, e.Required)
}

// Unwrap lets callers match with errors.Is(err, ErrInsufficientHistory).
func (e *InsufficientHistoryError) Unwrap() error {
	return ErrInsufficientHistory
}

// AlignedSeries holds one return sequence per holding over one shared date axis.
// Returns[id][i] is the return from Dates[i] to Dates[i+1].
type AlignedSeries struct {
	Dates   []string
	IDs     []string // Input order
	Returns map[string][]float64
}

// Len returns the number of return observations per holding.
func (s *AlignedSeries) Len() int {
	if len(s.Dates) < 2 {
		return 0
	}
	return len(s.Dates) - 1
}

// Aligner builds AlignedSeries from holdings.
type Aligner struct {
	minCommonDates int
	log            zerolog.Logger
}

// NewAligner creates an aligner. minCommonDates below 2 uses the default.
func NewAligner(minCommonDates int, log zerolog.Logger) *Aligner {
	if minCommonDates < 2 {
		minCommonDates = DefaultMinCommonDates
	}
	return &Aligner{
		minCommonDates: minCommonDates,
		log:            log.With().Str("component", "series_aligner").Logger(),
	}
}

// MinCommonDates returns the configured threshold.
func (a *Aligner) MinCommonDates() int {
	return a.minCommonDates
}

// Align intersects the dates of every holding and computes simple returns
// over the shared, chronologically sorted dates.
//
// It fails closed: a single holding without history, or fewer than
// minCommonDates shared dates, voids the whole batch instead of silently
// dropping holdings and misstating coverage.
func (a *Aligner) Align(holdings []domain.Holding) (*AlignedSeries, error) {
	if len(holdings) == 0 {
		return nil, &InsufficientHistoryError{Required: a.minCommonDates}
	}

	for _, h := range holdings {
		if !h.HasHistory() {
			a.log.Debug().Str("holding", h.ID).Msg("Holding without price history, alignment voided")
			return nil, &InsufficientHistoryError{HoldingID: h.ID, Required: a.minCommonDates}
		}
	}

	dates := CommonDates(holdings)
	if len(dates) < a.minCommonDates {
		a.log.Debug().
			Int("common_dates", len(dates)).
			Int("required", a.minCommonDates).
			Int("holdings", len(holdings)).
			Msg("Too few common dates for alignment")
		return nil, &InsufficientHistoryError{CommonDates: len(dates), Required: a.minCommonDates}
	}

	series := &AlignedSeries{
		Dates:   dates,
		IDs:     make([]string, 0, len(holdings)),
		Returns: make(map[string][]float64, len(holdings)),
	}

	for _, h := range holdings {
		if _, seen := series.Returns[h.ID]; seen {
			continue
		}
		prices := make([]float64, len(dates))
		for i, d := range dates {
			prices[i] = h.Prices[d]
		}
		series.IDs = append(series.IDs, h.ID)
		series.Returns[h.ID] = SimpleReturns(prices)
	}

	a.log.Debug().
		Int("common_dates", len(dates)).
		Int("holdings", len(series.IDs)).
		Msg("Aligned return series")

	return series, nil
}

// CommonDates returns the strict intersection of the holdings' dates, sorted ascending.
func CommonDates(holdings []domain.Holding) []string {
	if len(holdings) == 0 {
		return nil
	}

	// Start from the shortest history to keep the candidate set small
	shortest := 0
	for i, h := range holdings {
		if len(h.Prices) < len(holdings[shortest].Prices) {
			shortest = i
		}
	}

	dates := make([]string, 0, len(holdings[shortest].Prices))
	for d := range holdings[shortest].Prices {
		inAll := true
		for _, h := range holdings {
			if _, ok := h.Prices[d]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			dates = append(dates, d)
		}
	}

	// Canonical YYYY-MM-DD keys sort chronologically as strings
	sort.Strings(dates)
	return dates
}

// SimpleReturns computes period-over-period returns. A zero base price
// yields a 0% return instead of a division error.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return out
}
