package allocation

import (
	"sort"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
)

// Position is one underlying security with its look-through portfolio weight.
type Position struct {
	Name      string  `json:"name"`
	Sector    string  `json:"sector,omitempty"`
	WeightPct float64 `json:"weight_pct"`
}

// TopHoldings returns the largest look-through positions. A non-empty
// precomputed list is returned verbatim. Otherwise each fund's underlying
// positions are weighted by the fund's portfolio weight and merged by
// case-insensitive name; when no fund exposes positions, the funds
// themselves are ranked instead.
func TopHoldings(holdings []domain.Holding, precomputed []Position, limit int) []Position {
	if len(precomputed) > 0 {
		return precomputed
	}

	type entry struct {
		pos   Position
		order int
	}
	merged := make(map[string]*entry)
	add := func(name, sector string, weight float64) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || weight <= 0 {
			return
		}
		e, ok := merged[key]
		if !ok {
			e = &entry{pos: Position{Name: strings.TrimSpace(name)}, order: len(merged)}
			merged[key] = e
		}
		if e.pos.Sector == "" {
			e.pos.Sector = sector
		}
		e.pos.WeightPct += weight
	}

	for _, h := range holdings {
		for _, p := range h.Positions {
			add(p.Name, p.Sector, h.Weight*p.Weight/100)
		}
	}

	if len(merged) == 0 {
		for _, h := range holdings {
			add(h.DisplayName(), h.Category, h.Weight)
		}
	}

	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].pos.WeightPct != entries[j].pos.WeightPct {
			return entries[i].pos.WeightPct > entries[j].pos.WeightPct
		}
		return entries[i].order < entries[j].order
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]Position, len(entries))
	for i, e := range entries {
		out[i] = e.pos
		out[i].WeightPct = round(e.pos.WeightPct, 4)
	}
	return out
}
