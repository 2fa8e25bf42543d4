package benchmarks

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoProfiles is returned when there is nothing to compare against.
var ErrNoProfiles = errors.New("no risk profiles available")

// DefaultTolerancePP is the difference (in percentage points) still considered equal.
const DefaultTolerancePP = 1.0

// Risk and alpha verdicts
const (
	RiskHigher  = "higher"
	RiskLower   = "lower"
	RiskSimilar = "similar"

	AlphaPositive = "positive"
	AlphaNegative = "negative"
	AlphaNeutral  = "neutral"
)

// Explanation positions a portfolio relative to one profile.
type Explanation struct {
	Profile      Profile `json:"profile"`
	Nearest      bool    `json:"nearest"` // Chosen by distance rather than requested
	Distance     float64 `json:"distance"`
	RiskDiffPP   float64 `json:"risk_diff_pp"`
	ReturnDiffPP float64 `json:"return_diff_pp"`
	Risk         string  `json:"risk"`
	Alpha        string  `json:"alpha"`
	Summary      string  `json:"summary"`
}

// Explain compares a portfolio's (volatility, return) with the profile named
// by targetID or, when absent or unknown, with the nearest profile by
// Euclidean distance. Ties go to the earlier profile.
func Explain(profiles []Profile, volatilityPct, returnPct float64, targetID string, tolerance float64) (Explanation, error) {
	if len(profiles) == 0 {
		return Explanation{}, ErrNoProfiles
	}
	if tolerance < 0 {
		tolerance = DefaultTolerancePP
	}

	idx := -1
	if targetID != "" {
		for i, p := range profiles {
			if p.ID == targetID {
				idx = i
				break
			}
		}
	}

	nearest := idx < 0
	if nearest {
		best := math.Inf(1)
		for i, p := range profiles {
			if d := distance(p, volatilityPct, returnPct); d < best {
				best, idx = d, i
			}
		}
		// Every distance overflowed
		if idx < 0 {
			idx = 0
		}
	}

	p := profiles[idx]
	e := Explanation{
		Profile:      p,
		Nearest:      nearest,
		Distance:     round(finite(distance(p, volatilityPct, returnPct)), 4),
		RiskDiffPP:   round(volatilityPct-p.VolatilityPct, 4),
		ReturnDiffPP: round(returnPct-p.ReturnPct, 4),
	}
	e.Risk = verdict(volatilityPct-p.VolatilityPct, tolerance, RiskHigher, RiskLower, RiskSimilar)
	e.Alpha = verdict(returnPct-p.ReturnPct, tolerance, AlphaPositive, AlphaNegative, AlphaNeutral)
	e.Summary = summarize(e)
	return e, nil
}

// finite clamps an overflowed distance so the explanation stays encodable.
func finite(v float64) float64 {
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

func distance(p Profile, vol, ret float64) float64 {
	return math.Hypot(vol-p.VolatilityPct, ret-p.ReturnPct)
}

func verdict(diff, tolerance float64, above, below, within string) string {
	switch {
	case math.Abs(diff) <= tolerance:
		return within
	case diff > 0:
		return above
	default:
		return below
	}
}

func summarize(e Explanation) string {
	var risk string
	switch e.Risk {
	case RiskSimilar:
		risk = fmt.Sprintf("Risk is in line with the %s profile", e.Profile.Name)
	case RiskHigher:
		risk = fmt.Sprintf("Risk is %.2f pp above the %s profile", e.RiskDiffPP, e.Profile.Name)
	default:
		risk = fmt.Sprintf("Risk is %.2f pp below the %s profile", -e.RiskDiffPP, e.Profile.Name)
	}

	var alpha string
	switch e.Alpha {
	case AlphaNeutral:
		alpha = "expected return matches it"
	case AlphaPositive:
		alpha = fmt.Sprintf("expected return beats it by %.2f pp", e.ReturnDiffPP)
	default:
		alpha = fmt.Sprintf("expected return trails it by %.2f pp", -e.ReturnDiffPP)
	}

	return risk + "; " + alpha + "."
}
