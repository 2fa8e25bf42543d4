package allocation

import (
	"github.com/aristath/lookthrough/internal/domain"
)

// Keyword families for classifying funds without a usable breakdown.
// Mixed is checked first so "mixto renta variable" does not count as pure equity.
var (
	mixedKeywords  = []string{"mixto", "mixed", "balanced", "allocation", "multi-asset", "multiasset", "flexible"}
	cashKeywords   = []string{"monetario", "money market", "cash", "liquidez"}
	bondKeywords   = []string{"renta fija", "fixed income", "bond", "deuda", "credit", "treasury", "aggregate"}
	equityKeywords = []string{"renta variable", "equity", "acciones", "stock", "shares", "msci", "s&p", "index"}
)

// AssetClassSplit is the global equity/bond/cash/other split in percent,
// re-normalized to sum to exactly 100.
type AssetClassSplit struct {
	Equity      float64 `json:"equity"`
	Bond        float64 `json:"bond"`
	Cash        float64 `json:"cash"`
	Other       float64 `json:"other"`
	CoveragePct float64 `json:"coverage_pct"` // Weight resolved from explicit breakdowns
}

// shares are fractions of one holding, summing to 1.
type shares struct {
	equity, bond, cash, other float64
}

// holdingShares returns the holding's asset-class fractions and whether they
// came from a valid explicit breakdown.
func (a *Aggregator) holdingShares(h domain.Holding) (shares, bool) {
	if b := h.Breakdown; b != nil {
		total := b.Total()
		if total >= a.cfg.BreakdownMinPct && total <= a.cfg.BreakdownMaxPct {
			return shares{
				equity: b.Equity / total,
				bond:   b.Bond / total,
				cash:   b.Cash / total,
				other:  b.Other / total,
			}, true
		}
	}
	return classifyByKeywords(h), false
}

func classifyByKeywords(h domain.Holding) shares {
	text := classificationText(h.Category, h.AssetType)
	switch {
	case containsAny(text, mixedKeywords):
		return shares{equity: 0.5, bond: 0.5}
	case containsAny(text, cashKeywords):
		return shares{cash: 1}
	case containsAny(text, bondKeywords):
		return shares{bond: 1}
	case containsAny(text, equityKeywords):
		return shares{equity: 1}
	default:
		return shares{other: 1}
	}
}

// AssetClasses computes the portfolio split. Holdings with a breakdown whose
// components sum within the configured tolerance are scaled to exactly 100
// and count toward coverage; the rest are classified from their category text.
func (a *Aggregator) AssetClasses(holdings []domain.Holding) AssetClassSplit {
	var acc shares
	total, covered := 0.0, 0.0

	for _, h := range holdings {
		if h.Weight <= 0 {
			continue
		}
		s, explicit := a.holdingShares(h)
		acc.equity += h.Weight * s.equity
		acc.bond += h.Weight * s.bond
		acc.cash += h.Weight * s.cash
		acc.other += h.Weight * s.other
		total += h.Weight
		if explicit {
			covered += h.Weight
		}
	}

	sum := acc.equity + acc.bond + acc.cash + acc.other
	if total == 0 || sum == 0 {
		return AssetClassSplit{}
	}

	scale := 100 / sum
	return AssetClassSplit{
		Equity:      acc.equity * scale,
		Bond:        acc.bond * scale,
		Cash:        acc.cash * scale,
		Other:       acc.other * scale,
		CoveragePct: covered / total * 100,
	}
}
