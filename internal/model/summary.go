package model

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
	RunCancelled RunStatus = "CANCELLED"
)

// SymbolResult is the outcome of fetching and normalizing one catalog entry.
type SymbolResult struct {
	Coin       string
	MarketPair string
	OK         bool
	Attempts   int
	Candles    int  // candles returned by the upstream source
	Records    int  // candles that normalized into records
	Dropped    int  // malformed candles
	Reordered  bool // source order was not chronological
	ErrKind    string
	Reason     string
}

// SymbolFailure names a symbol whose fetch failed.
type SymbolFailure struct {
	Coin   string
	Kind   string
	Reason string
}

// CandleWarning names a single dropped candle.
type CandleWarning struct {
	Coin       string
	OpenTimeMs int64
	Reason     string
}

// RunSummary is surfaced to the operator after every run, fatal or not.
type RunSummary struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	Window           int
	Status           RunStatus
	Attempted        int
	Succeeded        int
	Failed           int
	Symbols          []SymbolResult
	Failures         []SymbolFailure
	Warnings         []CandleWarning
	RawRecords       int
	ProcessedRecords int
	RawPath          string
	ProcessedPath    string
	Error            string
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
