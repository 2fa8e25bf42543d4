package testing

import (
	"fmt"
	"time"

	"github.com/aristath/lookthrough/internal/domain"
)

// TradingDays returns n consecutive weekdays starting at start (2006-01-02).
func TradingDays(start string, n int) []string {
	day, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		panic(fmt.Sprintf("invalid fixture date %q: %v", start, err))
	}

	dates := make([]string, 0, n)
	for len(dates) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, day.Format(domain.DateLayout))
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

// Compound builds a price history starting at 100 that applies returns[i % len]
// on each date after the first.
func Compound(dates []string, returns ...float64) domain.PriceHistory {
	prices := make(domain.PriceHistory, len(dates))
	price := 100.0
	for i, d := range dates {
		if i > 0 && len(returns) > 0 {
			price *= 1 + returns[(i-1)%len(returns)]
		}
		prices[d] = price
	}
	return prices
}

// Flat builds a constant price history.
func Flat(dates []string, price float64) domain.PriceHistory {
	prices := make(domain.PriceHistory, len(dates))
	for _, d := range dates {
		prices[d] = price
	}
	return prices
}

// Fund returns a holding with the given weight, history and normalized metrics.
func Fund(id string, weight float64, prices domain.PriceHistory, volPct, retPct float64) domain.Holding {
	return domain.Holding{
		ID:     id,
		Name:   "Fund " + id,
		Weight: weight,
		Prices: prices,
		Metrics: domain.RiskMetrics{
			VolatilityPct: &volPct,
			ReturnPct:     &retPct,
		},
	}
}

// BondIndex is a low volatility aggregate bond index candidate.
func BondIndex(dates []string) domain.Holding {
	h := Fund("IDX-AGG", 0, Compound(dates, 0.001, -0.0005, 0.0008), 4, 2.5)
	h.Name = "Global Aggregate Bond Index"
	h.AssetType = "bond"
	return h
}

// EquityIndex is a high volatility world equity index candidate.
func EquityIndex(dates []string) domain.Holding {
	h := Fund("IDX-MSCI", 0, Compound(dates, 0.01, -0.008, 0.006, -0.002), 16, 8)
	h.Name = "MSCI World Equity Index"
	h.AssetType = "equity"
	return h
}
