package backtest

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// WeightPrecision is the number of decimals weights are rounded to before keying.
const WeightPrecision = 6

// Canonical returns the request in canonical form: holdings sorted by id,
// then weight, with weights rounded to WeightPrecision decimals, and sorted benchmark ids.
func Canonical(req Request) Request {
	holdings := make([]HoldingWeight, len(req.Holdings))
	for i, h := range req.Holdings {
		w, _ := decimal.NewFromFloat(h.Weight).Round(WeightPrecision).Float64()
		holdings[i] = HoldingWeight{ID: strings.TrimSpace(h.ID), Weight: w}
	}
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].ID != holdings[j].ID {
			return holdings[i].ID < holdings[j].ID
		}
		return holdings[i].Weight < holdings[j].Weight
	})

	benchmarks := make([]string, 0, len(req.BenchmarkIDs))
	for _, id := range req.BenchmarkIDs {
		if id = strings.TrimSpace(id); id != "" {
			benchmarks = append(benchmarks, id)
		}
	}
	sort.Strings(benchmarks)

	return Request{
		Holdings:     holdings,
		Period:       strings.TrimSpace(req.Period),
		BenchmarkIDs: benchmarks,
	}
}

// Key derives the cache key. Requests that differ only in holding or
// benchmark order, or in weight noise below the rounding precision, share a key.
func Key(req Request) string {
	c := Canonical(req)

	var b strings.Builder
	for i, h := range c.Holdings {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(h.ID)
		b.WriteByte(':')
		b.WriteString(decimal.NewFromFloat(h.Weight).StringFixed(WeightPrecision))
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(c.BenchmarkIDs, ","))
	b.WriteByte('|')
	b.WriteString(c.Period)

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:16])
}
