// Package dataset derives the processed dataset and serializes snapshots.
package dataset

import (
	"math"
	"sort"

	"CryptoIngest/internal/model"
)

// Valid reports whether every field of r is present and finite.
func Valid(r model.Record) bool {
	if r.Coin == "" || r.Date.IsZero() {
		return false
	}
	for _, v := range [5]float64{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clean drops invalid records, sorts by (coin, date) and keeps the first
// record of each (coin, date) pair. The input is not modified.
// Clean(Clean(x)) == Clean(x).
func Clean(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if Valid(r) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Coin != out[j].Coin {
			return out[i].Coin < out[j].Coin
		}
		return out[i].Date.Before(out[j].Date)
	})

	deduped := out[:0]
	for i, r := range out {
		if i > 0 && r.Coin == out[i-1].Coin && r.Date.Equal(out[i-1].Date) {
			continue
		}
		deduped = append(deduped, r)
	}
	return deduped
}
