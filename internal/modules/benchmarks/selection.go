// Package benchmarks builds synthetic risk-tier profiles by blending a
// bond-like and an equity-like reference index, and positions a portfolio
// against them.
package benchmarks

import (
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/risk"
)

// Role is the side of the blend an index anchors.
type Role string

const (
	RoleBond   Role = "bond"
	RoleEquity Role = "equity"
)

// How a base index was chosen
const (
	SourceExplicit  = "explicit"
	SourceThreshold = "threshold"
	SourceKeyword   = "keyword"
	SourceFallback  = "fallback"
)

var roleKeywords = map[Role][]string{
	RoleBond: {
		"bond", "renta fija", "fixed income", "aggregate", "treasury",
		"government", "govt", "deuda", "credit",
	},
	RoleEquity: {
		"equity", "renta variable", "stock", "acciones", "msci",
		"s&p", "world index", "shares",
	},
}

// Index is one resolved base index.
type Index struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	VolatilityPct float64   `json:"volatility_pct"`
	ReturnPct     float64   `json:"return_pct"`
	Source        string    `json:"source"`
	Series        []float64 `json:"-"` // Normalized values, aligned with Base.Dates
}

// Base is the pair of indices every profile is blended from.
type Base struct {
	Bond   Index    `json:"bond"`
	Equity Index    `json:"equity"`
	Dates  []string `json:"dates,omitempty"` // Set when both indices have aligned history
}

// SelectionConfig drives base index selection.
type SelectionConfig struct {
	BondIndexID     string
	EquityIndexID   string
	BondMaxVolPct   float64 // Bond candidates must not be more volatile
	EquityMinVolPct float64 // Equity candidates must be at least this volatile
	BondFallback    Index
	EquityFallback  Index
}

// DefaultSelectionConfig returns the standard thresholds and fallback pair.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		BondMaxVolPct:   5,
		EquityMinVolPct: 10,
		BondFallback: Index{
			ID: "fallback-bond", Name: "Reference bond index",
			VolatilityPct: 2, ReturnPct: 2, Source: SourceFallback,
		},
		EquityFallback: Index{
			ID: "fallback-equity", Name: "Reference equity index",
			VolatilityPct: 15, ReturnPct: 8, Source: SourceFallback,
		},
	}
}

// Selector picks a candidate for a role, or reports no match.
type Selector func(candidates []domain.Holding) (domain.Holding, bool)

type step struct {
	source string
	pick   Selector
}

// selectors returns the ordered selection chain for a role.
func (c SelectionConfig) selectors(role Role) []step {
	explicitID := c.BondIndexID
	within := func(vol float64) bool { return vol <= c.BondMaxVolPct }
	if role == RoleEquity {
		explicitID = c.EquityIndexID
		within = func(vol float64) bool { return vol >= c.EquityMinVolPct }
	}

	return []step{
		{SourceExplicit, ByID(explicitID)},
		{SourceThreshold, ByKeywordAndVolatility(role, within)},
		{SourceKeyword, ByKeyword(role)},
	}
}

// ByID matches the candidate with the given identifier.
func ByID(id string) Selector {
	return func(candidates []domain.Holding) (domain.Holding, bool) {
		if id == "" {
			return domain.Holding{}, false
		}
		for _, h := range candidates {
			if strings.EqualFold(h.ID, id) {
				return h, true
			}
		}
		return domain.Holding{}, false
	}
}

// ByKeywordAndVolatility matches the first classified candidate whose known
// volatility satisfies within.
func ByKeywordAndVolatility(role Role, within func(vol float64) bool) Selector {
	return func(candidates []domain.Holding) (domain.Holding, bool) {
		for _, h := range candidates {
			if !Classify(h, role) {
				continue
			}
			if vol, ok := knownVolatility.Resolve(h); ok && within(vol) {
				return h, true
			}
		}
		return domain.Holding{}, false
	}
}

// ByKeyword matches the first candidate classified for the role.
func ByKeyword(role Role) Selector {
	return func(candidates []domain.Holding) (domain.Holding, bool) {
		for _, h := range candidates {
			if Classify(h, role) {
				return h, true
			}
		}
		return domain.Holding{}, false
	}
}

// Classify reports whether the candidate's classification text names the role.
func Classify(h domain.Holding, role Role) bool {
	text := strings.ToLower(h.Category + " " + h.AssetType + " " + h.Name)
	for _, kw := range roleKeywords[role] {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var knownVolatility = risk.Chain{risk.FromMetrics(risk.VolatilityOf), risk.FromVendor(risk.VolatilityOf)}

// Select resolves the index for a role. Metrics missing on the selected
// candidate are taken from the role's fallback index.
func (c SelectionConfig) Select(role Role, candidates []domain.Holding) Index {
	fallback := c.BondFallback
	if role == RoleEquity {
		fallback = c.EquityFallback
	}

	for _, s := range c.selectors(role) {
		h, ok := s.pick(candidates)
		if !ok {
			continue
		}
		return Index{
			ID:            h.ID,
			Name:          h.DisplayName(),
			VolatilityPct: resolveOr(risk.MetricChain(risk.VolatilityOf, fallback.VolatilityPct), h),
			ReturnPct:     resolveOr(risk.MetricChain(risk.ReturnOf, fallback.ReturnPct), h),
			Source:        s.source,
		}
	}

	fallback.Source = SourceFallback
	return fallback
}

func resolveOr(c risk.Chain, h domain.Holding) float64 {
	v, _ := c.Resolve(h)
	return v
}
