package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexFloat is a number decoded from whatever an external source sent:
// a JSON number, a numeric string ("12.5", "12,5", "12.5%"), null or "".
// Valid is false when no usable number was present.
type FlexFloat struct {
	Value float64
	Valid bool
}

// Float wraps a known value.
func Float(v float64) FlexFloat {
	return FlexFloat{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler and never fails on bad input;
// unparseable values simply stay invalid.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, ok := parseLooseFloat(s); ok {
			*f = Float(v)
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		*f = Float(v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value as an optional pointer.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

func parseLooseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// The right-most separator is the decimal one: "1.234,5" and "1,234.5"
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// RawPrices is a price history as received: either an object of
// date -> price or an array of {date, price|close|value} points.
type RawPrices map[string]FlexFloat

type rawPricePoint struct {
	Date  json.RawMessage `json:"date"`
	Price FlexFloat       `json:"price"`
	Close FlexFloat       `json:"close"`
	Value FlexFloat       `json:"value"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *RawPrices) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}

	if data[0] == '[' {
		var points []rawPricePoint
		if err := json.Unmarshal(data, &points); err != nil {
			return fmt.Errorf("failed to decode price points: %w", err)
		}
		out := make(RawPrices, len(points))
		for _, pt := range points {
			key := strings.Trim(string(pt.Date), `"`)
			switch {
			case pt.Close.Valid:
				out[key] = pt.Close
			case pt.Price.Valid:
				out[key] = pt.Price
			default:
				out[key] = pt.Value
			}
		}
		*p = out
		return nil
	}

	var m map[string]FlexFloat
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to decode price map: %w", err)
	}
	*p = m
	return nil
}

// RawMetrics mirrors RiskMetrics before coercion.
type RawMetrics struct {
	Volatility FlexFloat `json:"volatility"`
	Return     FlexFloat `json:"return"`
	Cost       FlexFloat `json:"cost"`
	Yield      FlexFloat `json:"yield"`
	Beta       FlexFloat `json:"beta"`
}

// RawBreakdown mirrors AssetBreakdown before coercion.
type RawBreakdown struct {
	Equity FlexFloat `json:"equity"`
	Bond   FlexFloat `json:"bond"`
	Cash   FlexFloat `json:"cash"`
	Other  FlexFloat `json:"other"`
}

// RawPosition mirrors Position before coercion.
type RawPosition struct {
	Name   string    `json:"name"`
	Weight FlexFloat `json:"weight"`
	Sector string    `json:"sector"`
}

// RawHolding is a holding as received from the UI, the metadata store or a vendor.
type RawHolding struct {
	ID              string               `json:"id"`
	ISIN            string               `json:"isin"`
	Name            string               `json:"name"`
	Weight          FlexFloat            `json:"weight"`
	Prices          RawPrices            `json:"prices"`
	Category        string               `json:"category"`
	AssetType       string               `json:"asset_type"`
	Metrics         *RawMetrics          `json:"metrics"`
	VendorMetrics   *RawMetrics          `json:"vendor_metrics"`
	Breakdown       *RawBreakdown        `json:"breakdown"`
	ComputedRegions map[string]FlexFloat `json:"computed_regions"`
	DeclaredRegions map[string]FlexFloat `json:"declared_regions"`
	VendorRegions   map[string]FlexFloat `json:"vendor_regions"`
	Positions       []RawPosition        `json:"positions"`
}

// Identifier returns the explicit id, falling back to the ISIN.
func (r RawHolding) Identifier() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ISIN)
}

// MergeStatic fills every static field that r lacks from meta.
// Weight and identifier are never taken from meta.
func (r *RawHolding) MergeStatic(meta RawHolding) {
	if r.Name == "" {
		r.Name = meta.Name
	}
	if len(r.Prices) == 0 {
		r.Prices = meta.Prices
	}
	if r.Category == "" {
		r.Category = meta.Category
	}
	if r.AssetType == "" {
		r.AssetType = meta.AssetType
	}
	if r.Metrics == nil {
		r.Metrics = meta.Metrics
	}
	if r.VendorMetrics == nil {
		r.VendorMetrics = meta.VendorMetrics
	}
	if r.Breakdown == nil {
		r.Breakdown = meta.Breakdown
	}
	if len(r.ComputedRegions) == 0 {
		r.ComputedRegions = meta.ComputedRegions
	}
	if len(r.DeclaredRegions) == 0 {
		r.DeclaredRegions = meta.DeclaredRegions
	}
	if len(r.VendorRegions) == 0 {
		r.VendorRegions = meta.VendorRegions
	}
	if len(r.Positions) == 0 {
		r.Positions = meta.Positions
	}
}
