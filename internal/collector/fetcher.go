package collector

import (
	"context"
	"fmt"

	"CryptoIngest/internal/model"
)

// MaxWindow is the largest number of daily candles one request may ask for.
const MaxWindow = 1000

// Fetcher retrieves daily candles for one market pair.
// Implementations make exactly one outbound request per call and never retry.
type Fetcher interface {
	FetchDailyCandles(ctx context.Context, marketPair string, window int) ([]model.RawCandle, error)
	Name() string
}

// FetchError is a per-symbol failure at the network or endpoint level.
type FetchError struct {
	MarketPair string
	Reason     string
	Err        error
	// Temporary marks transport errors, timeouts, 429 and 5xx responses.
	Temporary bool
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.MarketPair, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.MarketPair, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }
