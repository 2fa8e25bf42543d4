// Package domain holds the typed records the analytics engine works on.
//
// Everything arriving from outside (HTTP bodies, the history store, vendor
// feeds) is loosely typed and goes through Normalize first. The numeric
// packages only ever see Holding and never parse or coerce values themselves.
package domain

// DateLayout is the canonical key format of a PriceHistory.
const DateLayout = "2006-01-02"

// PriceHistory maps a canonical date (YYYY-MM-DD) to a closing price.
// It is sparse: funds publish on different calendars.
type PriceHistory map[string]float64

// RiskMetrics are static per-fund statistics. Nil fields are unknown.
// All values are percentage points except Beta.
type RiskMetrics struct {
	VolatilityPct *float64 `json:"volatility_pct,omitempty"`
	ReturnPct     *float64 `json:"return_pct,omitempty"`
	CostPct       *float64 `json:"cost_pct,omitempty"` // Ongoing charges
	YieldPct      *float64 `json:"yield_pct,omitempty"`
	Beta          *float64 `json:"beta,omitempty"`
}

// AssetBreakdown is a declared equity/bond/cash/other split in percent.
type AssetBreakdown struct {
	Equity float64 `json:"equity"`
	Bond   float64 `json:"bond"`
	Cash   float64 `json:"cash"`
	Other  float64 `json:"other"`
}

// Total returns the sum of the four components.
func (b AssetBreakdown) Total() float64 {
	return b.Equity + b.Bond + b.Cash + b.Other
}

// Position is one underlying security held by a fund.
type Position struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"` // Percent of the fund (intra-fund weight)
	Sector string  `json:"sector,omitempty"`
}

// Holding is one fund position of a portfolio after boundary normalization.
type Holding struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Weight    float64      `json:"weight"` // 0-100, portfolio weights need not sum to 100
	Prices    PriceHistory `json:"prices,omitempty"`
	Category  string       `json:"category,omitempty"`   // Explicit fund category
	AssetType string       `json:"asset_type,omitempty"` // Coarse type (equity fund, bond fund, ETF...)

	Metrics       RiskMetrics `json:"metrics"`        // Normalized metrics
	VendorMetrics RiskMetrics `json:"vendor_metrics"` // Raw vendor metrics

	Breakdown *AssetBreakdown `json:"breakdown,omitempty"`

	// Regional equity breakdowns, region -> percent, most granular first
	ComputedRegions map[string]float64 `json:"computed_regions,omitempty"`
	DeclaredRegions map[string]float64 `json:"declared_regions,omitempty"`
	VendorRegions   map[string]float64 `json:"vendor_regions,omitempty"`

	Positions []Position `json:"positions,omitempty"`
}

// DisplayName returns the fund name, or its identifier when unnamed.
func (h Holding) DisplayName() string {
	if h.Name != "" {
		return h.Name
	}
	return h.ID
}

// HasHistory reports whether any price is known for the holding.
func (h Holding) HasHistory() bool {
	return len(h.Prices) > 0
}

// TotalWeight sums portfolio weights.
func TotalWeight(holdings []Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		total += h.Weight
	}
	return total
}

// IDs returns holding identifiers in input order.
func IDs(holdings []Holding) []string {
	ids := make([]string, len(holdings))
	for i, h := range holdings {
		ids[i] = h.ID
	}
	return ids
}
