// Package normalizer converts upstream candles into unified records.
package normalizer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"CryptoIngest/internal/model"
)

// MalformedCandleError reports a candle that cannot become a Record.
type MalformedCandleError struct {
	OpenTimeMs int64
	Field      string
	Value      string
	Reason     string
}

func (e *MalformedCandleError) Error() string {
	return fmt.Sprintf("malformed candle at %d: %s %q: %s", e.OpenTimeMs, e.Field, e.Value, e.Reason)
}

// Normalize converts one candle into a Record for coin.
func Normalize(c model.RawCandle, coin string) (model.Record, error) {
	r, merr := normalize(c, coin)
	if merr != nil {
		return model.Record{}, merr
	}
	return r, nil
}

func normalize(c model.RawCandle, coin string) (model.Record, *MalformedCandleError) {
	if c.OpenTimeMs <= 0 {
		return model.Record{}, &MalformedCandleError{
			OpenTimeMs: c.OpenTimeMs,
			Field:      "open_time",
			Value:      strconv.FormatInt(c.OpenTimeMs, 10),
			Reason:     "timestamp must be positive",
		}
	}

	fields := [5]struct {
		name string
		raw  string
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
		{"volume", c.Volume},
	}
	var vals [5]float64
	for i, f := range fields {
		v, err := parseFinite(f.raw)
		if err != nil {
			return model.Record{}, &MalformedCandleError{
				OpenTimeMs: c.OpenTimeMs,
				Field:      f.name,
				Value:      f.raw,
				Reason:     err.Error(),
			}
		}
		vals[i] = v
	}

	return model.Record{
		Date:   model.Day(time.UnixMilli(c.OpenTimeMs)),
		Coin:   coin,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return v, nil
}

// Series is the result of normalizing every candle of one fetch.
type Series struct {
	Records []model.Record
	Errors  []*MalformedCandleError
	// Reordered is set when the source was not oldest first.
	Reordered bool
}

// NormalizeSeries normalizes candles in source order, dropping malformed
// ones. Records are returned in ascending date order; the source order is
// trusted only when it already satisfies that.
func NormalizeSeries(candles []model.RawCandle, coin string) Series {
	s := Series{Records: make([]model.Record, 0, len(candles))}
	for _, c := range candles {
		r, err := normalize(c, coin)
		if err != nil {
			s.Errors = append(s.Errors, err)
			continue
		}
		s.Records = append(s.Records, r)
	}

	byDate := func(i, j int) bool { return s.Records[i].Date.Before(s.Records[j].Date) }
	if !sort.SliceIsSorted(s.Records, byDate) {
		sort.SliceStable(s.Records, byDate)
		s.Reordered = true
	}
	return s
}
