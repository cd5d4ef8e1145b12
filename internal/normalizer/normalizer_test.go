package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoIngest/internal/model"
)

func candle(ts int64, close string) model.RawCandle {
	return model.RawCandle{OpenTimeMs: ts, Open: "1.5", High: "2.25", Low: "1", Close: close, Volume: "1000.125"}
}

func TestNormalize_Valid(t *testing.T) {
	// 2024-01-01T23:59:59Z
	ts := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC).UnixMilli()

	r, err := Normalize(model.RawCandle{
		OpenTimeMs: ts,
		Open:       "42283.58",
		High:       "44184.10",
		Low:        "42180.77",
		Close:      "44179.55",
		Volume:     "27174.29903",
	}, "BTC")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Equal(t, "BTC", r.Coin)
	assert.Equal(t, 42283.58, r.Open)
	assert.Equal(t, 44184.10, r.High)
	assert.Equal(t, 42180.77, r.Low)
	assert.Equal(t, 44179.55, r.Close)
	assert.Equal(t, 27174.29903, r.Volume)
}

func TestNormalize_DateIsUTCOfSeconds(t *testing.T) {
	for _, ts := range []int64{1, 86_399_999, 86_400_000, 1704067200000, 1704153599999} {
		r, err := Normalize(candle(ts, "1"), "ETH")
		require.NoError(t, err)
		want := time.Unix(ts/1000, 0).UTC()
		assert.Equal(t, time.Date(want.Year(), want.Month(), want.Day(), 0, 0, 0, 0, time.UTC), r.Date, "ts %d", ts)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		c     model.RawCandle
		field string
	}{
		{"zero timestamp", candle(0, "1"), "open_time"},
		{"negative timestamp", candle(-5, "1"), "open_time"},
		{"NaN close", candle(1, "NaN"), "close"},
		{"Inf close", candle(1, "+Inf"), "close"},
		{"empty close", candle(1, ""), "close"},
		{"null close", candle(1, "null"), "close"},
		{"text open", model.RawCandle{OpenTimeMs: 1, Open: "abc", High: "1", Low: "1", Close: "1", Volume: "1"}, "open"},
		{"text volume", model.RawCandle{OpenTimeMs: 1, Open: "1", High: "1", Low: "1", Close: "1", Volume: "lots"}, "volume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Normalize(tt.c, "BTC")
			require.Error(t, err)
			assert.Equal(t, model.Record{}, r)

			var me *MalformedCandleError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestNormalizeSeries_DropsMalformed(t *testing.T) {
	day := int64(86_400_000)
	candles := []model.RawCandle{
		candle(1*day, "10"),
		candle(2*day, "11"),
		candle(3*day, "NaN"),
		candle(4*day, "12"),
		candle(5*day, "13"),
	}

	s := NormalizeSeries(candles, "SOL")
	assert.Len(t, s.Records, 4)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, 3*day, s.Errors[0].OpenTimeMs)
	assert.False(t, s.Reordered)
}

func TestNormalizeSeries_SortsOutOfOrderSource(t *testing.T) {
	day := int64(86_400_000)
	candles := []model.RawCandle{
		candle(3*day, "3"),
		candle(1*day, "1"),
		candle(2*day, "2"),
	}

	s := NormalizeSeries(candles, "ADA")
	assert.True(t, s.Reordered)
	require.Len(t, s.Records, 3)
	assert.Equal(t, 1.0, s.Records[0].Close)
	assert.Equal(t, 2.0, s.Records[1].Close)
	assert.Equal(t, 3.0, s.Records[2].Close)
}
