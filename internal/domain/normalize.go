package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrMissingIdentifier is returned for holdings without id or ISIN.
var ErrMissingIdentifier = errors.New("holding has no identifier")

// Compact dates ("20240105") are tried as layouts before any epoch reading.
// Unix timestamps above this are milliseconds (year 2286 in seconds).
const millisThreshold = 10_000_000_000

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

// ParseDate converts the date formats external sources use into the canonical key.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(DateLayout), true
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		var t time.Time
		if n >= millisThreshold {
			t = time.UnixMilli(n)
		} else {
			t = time.Unix(n, 0)
		}
		return t.UTC().Format(DateLayout), true
	}

	return "", false
}

// Normalize turns a raw holding into the typed record the engine consumes.
// Only a missing identifier is an error; every other defect degrades to
// "unknown" (nil metric, dropped price point, zero weight).
func Normalize(raw RawHolding) (Holding, error) {
	id := raw.Identifier()
	if id == "" {
		return Holding{}, ErrMissingIdentifier
	}

	h := Holding{
		ID:              id,
		Name:            strings.TrimSpace(raw.Name),
		Weight:          clampWeight(raw.Weight),
		Prices:          normalizePrices(raw.Prices),
		Category:        strings.TrimSpace(raw.Category),
		AssetType:       strings.TrimSpace(raw.AssetType),
		Metrics:         normalizeMetrics(raw.Metrics),
		VendorMetrics:   normalizeMetrics(raw.VendorMetrics),
		Breakdown:       normalizeBreakdown(raw.Breakdown),
		ComputedRegions: normalizeShares(raw.ComputedRegions),
		DeclaredRegions: normalizeShares(raw.DeclaredRegions),
		VendorRegions:   normalizeShares(raw.VendorRegions),
		Positions:       normalizePositions(raw.Positions),
	}

	return h, nil
}

// NormalizeAll normalizes a batch and merges duplicate identifiers: weights
// are summed and the first occurrence's metadata is kept. Input order is preserved.
func NormalizeAll(raws []RawHolding) ([]Holding, error) {
	holdings := make([]Holding, 0, len(raws))
	index := make(map[string]int, len(raws))

	for i, raw := range raws {
		h, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("holding %d: %w", i, err)
		}
		if j, ok := index[h.ID]; ok {
			holdings[j].Weight += h.Weight
			continue
		}
		index[h.ID] = len(holdings)
		holdings = append(holdings, h)
	}

	return holdings, nil
}

func clampWeight(w FlexFloat) float64 {
	if !w.Valid || w.Value < 0 {
		return 0
	}
	if w.Value > 100 {
		return 100
	}
	return w.Value
}

func normalizePrices(raw RawPrices) PriceHistory {
	if len(raw) == 0 {
		return nil
	}

	// Sorted iteration keeps the result deterministic when two raw keys
	// collapse onto the same calendar day.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(PriceHistory, len(raw))
	for _, k := range keys {
		p := raw[k]
		if !p.Valid || p.Value < 0 {
			continue
		}
		date, ok := ParseDate(k)
		if !ok {
			continue
		}
		out[date] = p.Value
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeMetrics(raw *RawMetrics) RiskMetrics {
	if raw == nil {
		return RiskMetrics{}
	}

	m := RiskMetrics{
		VolatilityPct: raw.Volatility.Ptr(),
		ReturnPct:     raw.Return.Ptr(),
		CostPct:       raw.Cost.Ptr(),
		YieldPct:      raw.Yield.Ptr(),
		Beta:          raw.Beta.Ptr(),
	}
	// A negative dispersion or charge is a feed error, not a value
	if m.VolatilityPct != nil && *m.VolatilityPct < 0 {
		m.VolatilityPct = nil
	}
	if m.CostPct != nil && *m.CostPct < 0 {
		m.CostPct = nil
	}
	return m
}

func normalizeBreakdown(raw *RawBreakdown) *AssetBreakdown {
	if raw == nil {
		return nil
	}
	if !raw.Equity.Valid && !raw.Bond.Valid && !raw.Cash.Valid && !raw.Other.Valid {
		return nil
	}

	nonNegative := func(f FlexFloat) float64 {
		if !f.Valid || f.Value < 0 {
			return 0
		}
		return f.Value
	}

	return &AssetBreakdown{
		Equity: nonNegative(raw.Equity),
		Bond:   nonNegative(raw.Bond),
		Cash:   nonNegative(raw.Cash),
		Other:  nonNegative(raw.Other),
	}
}

func normalizeShares(raw map[string]FlexFloat) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}

	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" || !v.Valid || v.Value <= 0 {
			continue
		}
		out[key] += v.Value
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizePositions(raw []RawPosition) []Position {
	if len(raw) == 0 {
		return nil
	}

	out := make([]Position, 0, len(raw))
	for _, p := range raw {
		name := strings.TrimSpace(p.Name)
		if name == "" || !p.Weight.Valid || p.Weight.Value <= 0 {
			continue
		}
		out = append(out, Position{
			Name:   name,
			Weight: p.Weight.Value,
			Sector: strings.TrimSpace(p.Sector),
		})
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
