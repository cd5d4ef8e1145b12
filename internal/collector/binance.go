package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"CryptoIngest/internal/model"
)

// BinanceFetcher implements Fetcher using the Binance spot klines endpoint.
type BinanceFetcher struct {
	BaseURL  string
	Interval string
	Client   *http.Client
}

// NewBinanceFetcher creates a fetcher with optional proxy support.
func NewBinanceFetcher(baseURL, proxyURL string) *BinanceFetcher {
	return &BinanceFetcher{
		BaseURL:  baseURL,
		Interval: "1d",
		Client:   NewHTTPClient(30*time.Second, proxyURL),
	}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// binanceError is the object Binance returns instead of a kline list.
type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// FetchDailyCandles requests up to window candles, oldest first.
func (f *BinanceFetcher) FetchDailyCandles(ctx context.Context, marketPair string, window int) ([]model.RawCandle, error) {
	if window <= 0 || window > MaxWindow {
		return nil, &FetchError{MarketPair: marketPair, Reason: fmt.Sprintf("window %d outside 1..%d", window, MaxWindow)}
	}

	q := url.Values{}
	q.Set("symbol", marketPair)
	q.Set("interval", f.Interval)
	q.Set("limit", strconv.Itoa(window))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{MarketPair: marketPair, Reason: "build request", Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{MarketPair: marketPair, Reason: "request failed", Err: err, Temporary: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{MarketPair: marketPair, Reason: "read body", Err: err, Temporary: true}
	}

	candles, err := decodeKlines(body)
	if err != nil {
		var apiErr *upstreamError
		if errors.As(err, &apiErr) {
			return nil, &FetchError{
				MarketPair: marketPair,
				Reason:     fmt.Sprintf("status %d: %s", resp.StatusCode, apiErr.Error()),
				Temporary:  temporaryStatus(resp.StatusCode),
			}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &FetchError{
				MarketPair: marketPair,
				Reason:     fmt.Sprintf("status %d, body: %s", resp.StatusCode, truncate(body, 200)),
				Temporary:  temporaryStatus(resp.StatusCode),
			}
		}
		return nil, &FetchError{MarketPair: marketPair, Reason: "malformed response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			MarketPair: marketPair,
			Reason:     fmt.Sprintf("status %d", resp.StatusCode),
			Temporary:  temporaryStatus(resp.StatusCode),
		}
	}

	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	return candles, nil
}

type upstreamError struct {
	code int
	msg  string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.code, e.msg)
}

// decodeKlines decides once whether the body is a kline list or an error
// object. Rows are [open_time, open, high, low, close, volume, ...].
// A body that is not a list fails the fetch. A row that is too short or
// has an unreadable open time is kept with the missing parts zeroed, so
// the normalizer drops that day alone.
func decodeKlines(body []byte) ([]model.RawCandle, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] == '{' {
		var e binanceError
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, fmt.Errorf("decode error object: %w", err)
		}
		return nil, &upstreamError{code: e.Code, msg: e.Msg}
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("expected kline list")
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	candles := make([]model.RawCandle, 0, len(rows))
	for i, raw := range rows {
		var row []json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil {
			log.Printf("[WARN] kline row %d is not a list: %s", i, truncate(raw, 64))
		}
		var fields [6]string
		for j := 0; j < len(fields) && j < len(row); j++ {
			fields[j] = fieldText(row[j])
		}
		// 0 is rejected downstream as an invalid open time.
		ts, _ := strconv.ParseInt(fields[0], 10, 64)
		candles = append(candles, model.RawCandle{
			OpenTimeMs: ts,
			Open:       fields[1],
			High:       fields[2],
			Low:        fields[3],
			Close:      fields[4],
			Volume:     fields[5],
		})
	}
	return candles, nil
}

// fieldText returns the string value of a JSON string, or the literal text
// of any other JSON value.
func fieldText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func temporaryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
