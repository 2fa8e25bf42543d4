// Package backtest memoizes calls to the external backtest service and
// collapses concurrent duplicate requests into one call.
package backtest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvable wraps transport failures and malformed service responses.
var ErrUnresolvable = errors.New("backtest request could not be resolved")

// Result statuses
const (
	StatusOK                  = "ok"
	StatusInsufficientHistory = "insufficient_history"
	StatusError               = "error"
)

// HoldingWeight is one holding of a backtest request.
type HoldingWeight struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// Request describes one backtest.
type Request struct {
	Holdings     []HoldingWeight `json:"holdings"`
	Period       string          `json:"period"`
	BenchmarkIDs []string        `json:"benchmarkIds"`
}

// SeriesPoint is one dated value of a backtest series.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// RiskMetrics are the backtested portfolio statistics.
type RiskMetrics struct {
	VolatilityPct float64  `json:"volatility"`
	ReturnPct     float64  `json:"return"`
	SharpeRatio   float64  `json:"sharpe"`
	MaxDrawdown   float64  `json:"maxDrawdown"`
	Beta          *float64 `json:"beta,omitempty"`
}

// TopHolding is one entry of the service's look-through ranking.
type TopHolding struct {
	Name   string  `json:"name"`
	Sector string  `json:"sector,omitempty"`
	Weight float64 `json:"weight"`
}

// Result is the service response, or an error-shaped value standing in for it.
type Result struct {
	Status            string                        `json:"status"`
	ValueSeries       []SeriesPoint                 `json:"valueSeries,omitempty"`
	BenchmarkSeries   map[string][]SeriesPoint      `json:"benchmarkSeries,omitempty"`
	RiskMetrics       *RiskMetrics                  `json:"riskMetrics,omitempty"`
	RegionAllocation  map[string]float64            `json:"regionAllocation,omitempty"`
	TopHoldings       []TopHolding                  `json:"topHoldings,omitempty"`
	CorrelationMatrix map[string]map[string]float64 `json:"correlationMatrix,omitempty"`
	MissingIDs        []string                      `json:"missingIds,omitempty"`
	Error             string                        `json:"error,omitempty"`
}

// OK reports whether the result carries backtest data.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusOK
}

// Rejection returns the service's logical rejection, or nil.
func (r *Result) Rejection() *RejectionError {
	if r == nil || r.Status != StatusInsufficientHistory {
		return nil
	}
	return &RejectionError{MissingIDs: append([]string(nil), r.MissingIDs...)}
}

// RejectionError is an explicit "no common history" answer from the service.
type RejectionError struct {
	MissingIDs []string
}

func (e *RejectionError) Error() string {
	if len(e.MissingIDs) == 0 {
		return "backtest rejected: insufficient common history"
	}
	return fmt.Sprintf("backtest rejected: insufficient history for %s", strings.Join(e.MissingIDs, ", "))
}

// ErrorResult builds the error-shaped value cached for a failed call.
func ErrorResult(err error) *Result {
	return &Result{Status: StatusError, Error: err.Error()}
}
