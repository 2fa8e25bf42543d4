package allocation

import (
	"sort"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
)

// Canonical region keys
const (
	RegionUnitedStates = "United States"
	RegionEurope       = "Europe"
	RegionUK           = "United Kingdom"
	RegionJapan        = "Japan"
	RegionAsiaPacific  = "Asia Pacific"
	RegionEmerging     = "Emerging Markets"
	RegionLatinAmerica = "Latin America"
	RegionOther        = "Other"
)

// Where a holding's regional breakdown came from
const (
	RegionSourceComputed = "computed"
	RegionSourceDeclared = "declared"
	RegionSourceVendor   = "vendor"
	RegionSourceInferred = "inferred"
)

var regionSynonyms = map[string]string{
	"us":                  RegionUnitedStates,
	"usa":                 RegionUnitedStates,
	"united states":       RegionUnitedStates,
	"estados unidos":      RegionUnitedStates,
	"eeuu":                RegionUnitedStates,
	"north america":       RegionUnitedStates,
	"norteamerica":        RegionUnitedStates,
	"norteamérica":        RegionUnitedStates,
	"america":             RegionUnitedStates,
	"europe":              RegionEurope,
	"europa":              RegionEurope,
	"eurozone":            RegionEurope,
	"euro area":           RegionEurope,
	"europe ex uk":        RegionEurope,
	"uk":                  RegionUK,
	"united kingdom":      RegionUK,
	"reino unido":         RegionUK,
	"great britain":       RegionUK,
	"japan":               RegionJapan,
	"japon":               RegionJapan,
	"japón":               RegionJapan,
	"asia pacific":        RegionAsiaPacific,
	"asia-pacific":        RegionAsiaPacific,
	"asia pacifico":       RegionAsiaPacific,
	"asia pacífico":       RegionAsiaPacific,
	"asia":                RegionAsiaPacific,
	"pacific":             RegionAsiaPacific,
	"emerging":            RegionEmerging,
	"emerging markets":    RegionEmerging,
	"emergentes":          RegionEmerging,
	"mercados emergentes": RegionEmerging,
	"em":                  RegionEmerging,
	"latin america":       RegionLatinAmerica,
	"latinoamerica":       RegionLatinAmerica,
	"latinoamérica":       RegionLatinAmerica,
	"latam":               RegionLatinAmerica,
}

// NormalizeRegion maps a region label onto its canonical key. Unknown labels
// are kept with their original spelling.
func NormalizeRegion(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if canonical, ok := regionSynonyms[key]; ok {
		return canonical
	}
	return strings.TrimSpace(label)
}

// DefaultGlobalSplit is the regional mix assumed for global equity funds.
func DefaultGlobalSplit() map[string]float64 {
	return map[string]float64{
		RegionUnitedStates: 65,
		RegionEurope:       13,
		RegionJapan:        6,
		RegionUK:           4,
		RegionAsiaPacific:  4,
		RegionEmerging:     8,
	}
}

type regionRule struct {
	keywords []string
	region   string
}

// Checked in order: specific markets before broad ones.
var regionRules = []regionRule{
	{[]string{"emerging", "emergentes"}, RegionEmerging},
	{[]string{"latam", "latin america", "latinoam"}, RegionLatinAmerica},
	{[]string{"japan", "japon", "japón", "nikkei", "topix"}, RegionJapan},
	{[]string{"uk ", "united kingdom", "reino unido", "ftse 100"}, RegionUK},
	{[]string{"s&p", "usa", "us equity", "estados unidos", "eeuu", "nasdaq", "america", "norteam"}, RegionUnitedStates},
	{[]string{"europe", "europa", "euro", "stoxx"}, RegionEurope},
	{[]string{"asia", "pacific", "pacífico", "pacifico"}, RegionAsiaPacific},
}

var globalKeywords = []string{"global", "world", "mundial", "international", "internacional", "acwi"}

// RegionExposure is one region of the look-through equity allocation.
type RegionExposure struct {
	Region       string  `json:"region"`
	EquityPct    float64 `json:"equity_pct"`    // Share of identified equity exposure
	PortfolioPct float64 `json:"portfolio_pct"` // Share of the whole portfolio
}

// RegionSummary is the equity region look-through.
type RegionSummary struct {
	Regions           []RegionExposure  `json:"regions"`
	EquityExposurePct float64           `json:"equity_exposure_pct"` // Identified equity as % of portfolio
	Sources           map[string]string `json:"sources"`             // Holding id -> breakdown source
}

// RegionExtractor returns a holding's regional breakdown, or nil.
type RegionExtractor func(h domain.Holding) map[string]float64

type regionStep struct {
	source  string
	extract RegionExtractor
}

// regionChain is the breakdown priority, most granular first.
func (a *Aggregator) regionChain() []regionStep {
	return []regionStep{
		{RegionSourceComputed, func(h domain.Holding) map[string]float64 { return h.ComputedRegions }},
		{RegionSourceDeclared, func(h domain.Holding) map[string]float64 { return h.DeclaredRegions }},
		{RegionSourceVendor, func(h domain.Holding) map[string]float64 { return h.VendorRegions }},
		{RegionSourceInferred, a.InferRegions},
	}
}

// InferRegions guesses a regional split from the fund's name and category.
func (a *Aggregator) InferRegions(h domain.Holding) map[string]float64 {
	text := " " + classificationText(h.Name, h.Category) + " "
	for _, rule := range regionRules {
		if containsAny(text, rule.keywords) {
			return map[string]float64{rule.region: 100}
		}
	}
	if containsAny(text, globalKeywords) {
		return a.cfg.GlobalSplit
	}
	return map[string]float64{RegionOther: 100}
}

// EquityRegions attributes each holding's equity exposure to regions.
// Contribution = portfolio weight x equity share x region share.
func (a *Aggregator) EquityRegions(holdings []domain.Holding) RegionSummary {
	summary := RegionSummary{
		Regions: []RegionExposure{},
		Sources: make(map[string]string),
	}

	contributions := make(map[string]float64)
	total, equity := 0.0, 0.0

	for _, h := range holdings {
		if h.Weight <= 0 {
			continue
		}
		total += h.Weight

		s, _ := a.holdingShares(h)
		if s.equity <= 0 {
			continue
		}

		regions, source := a.resolveRegions(h)
		regionTotal := 0.0
		for _, v := range regions {
			regionTotal += v
		}
		if regionTotal <= 0 {
			continue
		}

		summary.Sources[h.ID] = source
		exposure := h.Weight * s.equity
		equity += exposure
		for label, v := range regions {
			contributions[NormalizeRegion(label)] += exposure * v / regionTotal
		}
	}

	if total == 0 || equity == 0 {
		return summary
	}

	summary.EquityExposurePct = round(equity/total*100, 4)
	for region, c := range contributions {
		summary.Regions = append(summary.Regions, RegionExposure{
			Region:       region,
			EquityPct:    round(c/equity*100, 4),
			PortfolioPct: round(c/total*100, 4),
		})
	}

	sort.Slice(summary.Regions, func(i, j int) bool {
		if summary.Regions[i].EquityPct != summary.Regions[j].EquityPct {
			return summary.Regions[i].EquityPct > summary.Regions[j].EquityPct
		}
		return summary.Regions[i].Region < summary.Regions[j].Region
	})

	return summary
}

func (a *Aggregator) resolveRegions(h domain.Holding) (map[string]float64, string) {
	for _, step := range a.regionChain() {
		if regions := step.extract(h); len(regions) > 0 {
			return regions, step.source
		}
	}
	return nil, ""
}
