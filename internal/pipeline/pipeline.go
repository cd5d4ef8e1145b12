// Package pipeline fetches, normalizes, cleans and persists daily OHLCV
// history for every cataloged symbol.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"CryptoIngest/internal/catalog"
	"CryptoIngest/internal/collector"
	"CryptoIngest/internal/dataset"
	"CryptoIngest/internal/model"
	"CryptoIngest/internal/normalizer"
	"CryptoIngest/internal/snapshot"
)

// Pipeline runs ingestion over a fixed catalog.
type Pipeline struct {
	cfg     Config
	fetcher collector.Fetcher
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Pipeline. cfg is validated and copied.
func New(cfg Config, fetcher collector.Fetcher) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("pipeline: fetcher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}, nil
}

// Run ingests the configured window.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	return p.RunWindow(ctx, p.cfg.Window)
}

// symbolOutcome is the private accumulator of one per-symbol task.
type symbolOutcome struct {
	result   model.SymbolResult
	records  []model.Record
	warnings []model.CandleWarning
}

// RunWindow ingests up to window daily candles per symbol. The returned
// summary is never nil. Only ErrEmptyResult, *PersistenceError and
// cancellation are returned as errors; per-symbol and per-candle problems
// are reported in the summary.
func (p *Pipeline) RunWindow(ctx context.Context, window int) (summary *model.RunSummary, err error) {
	summary = &model.RunSummary{
		StartedAt:     p.now(),
		Window:        window,
		RawPath:       p.cfg.RawPath,
		ProcessedPath: p.cfg.ProcessedPath,
	}
	defer func() {
		summary.FinishedAt = p.now()
		switch {
		case err == nil:
			summary.Status = model.RunSucceeded
		case ctx.Err() != nil:
			summary.Status = model.RunCancelled
			summary.Error = err.Error()
		default:
			summary.Status = model.RunFailed
			summary.Error = err.Error()
		}
		logSummary(summary)
	}()

	if window <= 0 {
		return summary, fmt.Errorf("window must be positive, got %d", window)
	}
	if window > collector.MaxWindow {
		log.Printf("[WARN] window %d exceeds upstream page size, clamping to %d", window, collector.MaxWindow)
		window = collector.MaxWindow
		summary.Window = window
	}

	entries := p.cfg.Catalog.Entries()
	outcomes := make([]symbolOutcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxParallelism)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			outcomes[i] = p.collect(gctx, e, window)
			return nil
		})
	}
	_ = g.Wait()

	raw := merge(summary, outcomes)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run cancelled: %w", err)
	}
	if len(raw) == 0 {
		return summary, ErrEmptyResult
	}

	processed := dataset.Clean(raw)
	summary.ProcessedRecords = len(processed)

	err = snapshot.WriteAll(ctx,
		snapshot.Target{Path: p.cfg.RawPath, Records: raw},
		snapshot.Target{Path: p.cfg.ProcessedPath, Records: processed},
	)
	if err != nil {
		if ctx.Err() != nil {
			return summary, fmt.Errorf("run cancelled: %w", err)
		}
		var we *snapshot.WriteError
		if errors.As(err, &we) {
			return summary, &PersistenceError{Path: we.Path, Err: we.Err}
		}
		return summary, &PersistenceError{Err: err}
	}
	return summary, nil
}

// merge folds the per-task accumulators into the summary in catalog order
// and returns the raw dataset.
func merge(summary *model.RunSummary, outcomes []symbolOutcome) []model.Record {
	var raw []model.Record
	for _, o := range outcomes {
		summary.Attempted++
		summary.Symbols = append(summary.Symbols, o.result)
		summary.Warnings = append(summary.Warnings, o.warnings...)
		if !o.result.OK {
			summary.Failed++
			summary.Failures = append(summary.Failures, model.SymbolFailure{
				Coin:   o.result.Coin,
				Kind:   o.result.ErrKind,
				Reason: o.result.Reason,
			})
			continue
		}
		summary.Succeeded++
		raw = append(raw, o.records...)
	}
	summary.RawRecords = len(raw)
	return raw
}

// collect fetches and normalizes one symbol. It never returns an error;
// failures are recorded in the outcome.
func (p *Pipeline) collect(ctx context.Context, e catalog.Entry, window int) symbolOutcome {
	out := symbolOutcome{result: model.SymbolResult{Coin: e.CoinID, MarketPair: e.MarketPair}}

	log.Printf("[INFO] fetching %s (%s) daily candles, window=%d", e.CoinID, e.MarketPair, window)
	candles, err := p.fetchWithRetry(ctx, e, window, &out.result.Attempts)
	if err != nil {
		out.result.ErrKind = KindFetch
		out.result.Reason = err.Error()
		log.Printf("[WARN] %s fetch failed after %d attempt(s): %v", e.CoinID, out.result.Attempts, err)
		return out
	}

	series := normalizer.NormalizeSeries(candles, e.CoinID)
	for _, me := range series.Errors {
		log.Printf("[WARN] %s: dropping candle (%s): %v", e.CoinID, KindMalformed, me)
		out.warnings = append(out.warnings, model.CandleWarning{
			Coin:       e.CoinID,
			OpenTimeMs: me.OpenTimeMs,
			Reason:     me.Error(),
		})
	}
	if series.Reordered {
		log.Printf("[WARN] %s: upstream candles were not oldest first, re-sorted", e.CoinID)
	}

	out.records = series.Records
	out.result.OK = true
	out.result.Candles = len(candles)
	out.result.Records = len(series.Records)
	out.result.Dropped = len(series.Errors)
	out.result.Reordered = series.Reordered
	return out
}

// fetchWithRetry retries temporary fetch errors with exponential backoff.
// Each attempt gets its own timeout; a timed out attempt is a fetch error.
func (p *Pipeline) fetchWithRetry(ctx context.Context, e catalog.Entry, window int, attempts *int) ([]model.RawCandle, error) {
	var lastErr error
	for i := 0; i <= p.cfg.Retries; i++ {
		if i > 0 {
			backoff := p.cfg.backoff(i - 1)
			log.Printf("[WARN] %s fetch failed (attempt %d/%d): %v, retrying in %v",
				e.CoinID, i, p.cfg.Retries+1, lastErr, backoff)
			select {
			case <-ctx.Done():
				return nil, &collector.FetchError{MarketPair: e.MarketPair, Reason: "cancelled", Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &collector.FetchError{MarketPair: e.MarketPair, Reason: "rate limit wait", Err: err}
		}

		*attempts++
		candles, err := p.fetchOnce(ctx, e, window)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if ctx.Err() != nil || !temporary(err) {
			break
		}
	}
	return nil, lastErr
}

func (p *Pipeline) fetchOnce(ctx context.Context, e catalog.Entry, window int) ([]model.RawCandle, error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	candles, err := p.fetcher.FetchDailyCandles(actx, e.MarketPair, window)
	if err == nil {
		return candles, nil
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &collector.FetchError{
			MarketPair: e.MarketPair,
			Reason:     fmt.Sprintf("timeout after %v", p.cfg.Timeout),
			Err:        err,
			Temporary:  true,
		}
	}
	var fe *collector.FetchError
	if errors.As(err, &fe) {
		return nil, err
	}
	return nil, &collector.FetchError{MarketPair: e.MarketPair, Reason: "fetcher error", Err: err}
}

func temporary(err error) bool {
	var fe *collector.FetchError
	return errors.As(err, &fe) && fe.Temporary
}

func logSummary(s *model.RunSummary) {
	level := "[INFO]"
	if s.Status != model.RunSucceeded {
		level = "[ERROR]"
	}
	log.Printf("%s run %s in %v: symbols attempted=%d succeeded=%d failed=%d, dropped candles=%d",
		level, s.Status, s.Duration().Round(time.Millisecond), s.Attempted, s.Succeeded, s.Failed, len(s.Warnings))
	for _, f := range s.Failures {
		log.Printf("%s   failed %s (%s): %s", level, f.Coin, f.Kind, f.Reason)
	}
	log.Printf("%s Raw rows: %d", level, s.RawRecords)
	log.Printf("%s Processed rows: %d", level, s.ProcessedRecords)
	if s.Error != "" {
		log.Printf("[ERROR] run error: %s", s.Error)
	}
}
