package model

import "time"

// RawCandle is one daily kline as returned by the upstream source.
// Numeric fields keep the upstream text until normalization.
type RawCandle struct {
	OpenTimeMs int64
	Open       string
	High       string
	Low        string
	Close      string
	Volume     string
}

// Record is a normalized daily OHLCV row for one coin.
type Record struct {
	Date   time.Time // UTC midnight
	Coin   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DateLayout is the serialized form of Record.Date.
const DateLayout = "2006-01-02"

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
