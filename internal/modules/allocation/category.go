package allocation

import (
	"sort"

	"github.com/aristath/lookthrough/internal/domain"
)

// OtherCategory collects holdings without any classification.
const OtherCategory = "Other"

// Slice is one group of an allocation.
type Slice struct {
	Name      string  `json:"name"`
	WeightPct float64 `json:"weight_pct"` // Sum of portfolio weights
	SharePct  float64 `json:"share_pct"`  // Share of the total portfolio weight
}

// ByCategory groups holdings by explicit category, else asset type, else
// "Other", sorted by weight descending.
func ByCategory(holdings []domain.Holding) []Slice {
	weights := make(map[string]float64)
	total := 0.0
	for _, h := range holdings {
		if h.Weight <= 0 {
			continue
		}
		weights[categoryOf(h)] += h.Weight
		total += h.Weight
	}

	slices := make([]Slice, 0, len(weights))
	for name, w := range weights {
		s := Slice{Name: name, WeightPct: round(w, 4)}
		if total > 0 {
			s.SharePct = round(w/total*100, 4)
		}
		slices = append(slices, s)
	}

	sort.Slice(slices, func(i, j int) bool {
		if slices[i].WeightPct != slices[j].WeightPct {
			return slices[i].WeightPct > slices[j].WeightPct
		}
		return slices[i].Name < slices[j].Name
	})

	return slices
}

func categoryOf(h domain.Holding) string {
	switch {
	case h.Category != "":
		return h.Category
	case h.AssetType != "":
		return h.AssetType
	default:
		return OtherCategory
	}
}
