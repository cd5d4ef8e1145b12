package collector

import (
	"context"
	"strconv"
	"sync"
	"time"

	"CryptoIngest/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Pairs without configured candles or errors get generated bars.
type MockFetcher struct {
	BasePrice float64
	Candles   map[string][]model.RawCandle
	Errors    map[string]error
	// FailFirst makes the first N calls for a pair fail with a temporary error.
	FailFirst map[string]int
	Delay     time.Duration
	Now       func() time.Time

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyCandles(ctx context.Context, marketPair string, window int) ([]model.RawCandle, error) {
	n := m.recordCall(marketPair)

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &FetchError{MarketPair: marketPair, Reason: "request failed", Err: ctx.Err(), Temporary: true}
		case <-time.After(m.Delay):
		}
	}
	if n <= m.FailFirst[marketPair] {
		return nil, &FetchError{MarketPair: marketPair, Reason: "status 503", Temporary: true}
	}
	if err, ok := m.Errors[marketPair]; ok {
		return nil, err
	}
	if c, ok := m.Candles[marketPair]; ok {
		if len(c) > window {
			c = c[len(c)-window:]
		}
		out := make([]model.RawCandle, len(c))
		copy(out, c)
		return out, nil
	}
	return m.generate(window), nil
}

// Calls returns how many times marketPair was requested.
func (m *MockFetcher) Calls(marketPair string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[marketPair]
}

func (m *MockFetcher) recordCall(marketPair string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[marketPair]++
	return m.calls[marketPair]
}

func (m *MockFetcher) generate(count int) []model.RawCandle {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	base := m.BasePrice
	if base == 0 {
		base = 100
	}
	today := model.Day(now())
	bars := make([]model.RawCandle, count)
	for i := 0; i < count; i++ {
		p := base * (1 + float64(i-count/2)*0.001)
		bars[i] = model.RawCandle{
			OpenTimeMs: today.AddDate(0, 0, -(count - 1 - i)).UnixMilli(),
			Open:       formatPrice(p * 0.999),
			High:       formatPrice(p * 1.005),
			Low:        formatPrice(p * 0.995),
			Close:      formatPrice(p),
			Volume:     "1000000",
		}
	}
	return bars
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}
