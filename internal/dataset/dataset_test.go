package dataset

import (
	"bytes"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoIngest/internal/model"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func rec(coin string, d int, close float64) model.Record {
	return model.Record{Date: day(d), Coin: coin, Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 10}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(rec("BTC", 1, 5)))

	noCoin := rec("", 1, 5)
	assert.False(t, Valid(noCoin))

	noDate := rec("BTC", 1, 5)
	noDate.Date = time.Time{}
	assert.False(t, Valid(noDate))

	nan := rec("BTC", 1, 5)
	nan.Volume = math.NaN()
	assert.False(t, Valid(nan))

	inf := rec("BTC", 1, 5)
	inf.High = math.Inf(1)
	assert.False(t, Valid(inf))
}

func TestClean_SortsDropsAndDedupes(t *testing.T) {
	bad := rec("ETH", 4, 1)
	bad.Close = math.NaN()

	raw := []model.Record{
		rec("ETH", 2, 20),
		rec("BTC", 3, 3),
		bad,
		rec("BTC", 1, 1),
		rec("ETH", 1, 10),
		rec("BTC", 3, 99), // duplicate (BTC, 3); first one wins
	}
	input := append([]model.Record(nil), raw...)

	got := Clean(raw)
	require.Len(t, got, 4)
	assert.Equal(t, rec("BTC", 1, 1), got[0])
	assert.Equal(t, rec("BTC", 3, 3), got[1])
	assert.Equal(t, rec("ETH", 1, 10), got[2])
	assert.Equal(t, rec("ETH", 2, 20), got[3])

	// input untouched
	assert.Equal(t, len(input), len(raw))
	for i := range input {
		assert.Equal(t, input[i].Coin, raw[i].Coin)
		assert.Equal(t, input[i].Date, raw[i].Date)
	}
}

func TestClean_FixedPoint(t *testing.T) {
	raw := []model.Record{rec("SOL", 5, 5), rec("ADA", 2, 2), rec("SOL", 1, 1), rec("ADA", 2, 7), rec("ADA", 1, 1)}

	once := Clean(raw)
	twice := Clean(once)
	assert.Equal(t, once, twice)

	assert.True(t, sort.SliceIsSorted(once, func(i, j int) bool {
		if once[i].Coin != once[j].Coin {
			return once[i].Coin < once[j].Coin
		}
		return once[i].Date.Before(once[j].Date)
	}))
}

func TestClean_Empty(t *testing.T) {
	assert.Empty(t, Clean(nil))
}

func TestCSV_RoundTrip(t *testing.T) {
	records := []model.Record{
		{Date: day(1), Coin: "BTC", Open: 42283.58, High: 44184.1, Low: 42180.77, Close: 44179.55, Volume: 27174.29903},
		{Date: day(2), Coin: "BTC", Open: 0.1 + 0.2, High: 1e-7, Low: 1234567890.123456, Close: 3, Volume: 0},
		{Date: day(31), Coin: "DOGE", Open: 0.08912, High: 0.0902, Low: 0.0871, Close: 0.0899, Volume: 1.5e9},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestWriteCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.Record{
		{Date: day(1), Coin: "BTC", Open: 1, High: 2.5, Low: 0.5, Close: 2, Volume: 1500000},
	}))

	assert.Equal(t,
		"date,coin,open,high,low,close,volume\n"+
			"2024-01-01,BTC,1,2.5,0.5,2,1500000\n",
		buf.String())
}

func TestWriteCSV_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "date,coin,open,high,low,close,volume\n", buf.String())

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "day,coin,open,high,low,close,volume\n"},
		{"bad date", "date,coin,open,high,low,close,volume\n01/02/2024,BTC,1,1,1,1,1\n"},
		{"bad number", "date,coin,open,high,low,close,volume\n2024-01-02,BTC,1,x,1,1,1\n"},
		{"short row", "date,coin,open,high,low,close,volume\n2024-01-02,BTC,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
