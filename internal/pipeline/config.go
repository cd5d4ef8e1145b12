package pipeline

import (
	"fmt"
	"time"

	"CryptoIngest/internal/catalog"
)

// Config is everything a Pipeline needs. It is passed in at construction
// and never shared as package state.
type Config struct {
	Catalog        *catalog.Catalog
	Window         int
	RawPath        string
	ProcessedPath  string
	Timeout        time.Duration // per fetch attempt
	MaxParallelism int
	Retries        int
	RetryBackoff   time.Duration
	// RequestsPerSecond caps upstream calls across all workers; <= 0 disables it.
	RequestsPerSecond float64
}

const (
	DefaultWindow         = 365
	DefaultRawPath        = "data/raw/raw_data.csv"
	DefaultProcessedPath  = "data/processed/processed_data.csv"
	DefaultTimeout        = 15 * time.Second
	DefaultMaxParallelism = 4
	DefaultRetries        = 2
	DefaultRetryBackoff   = time.Second
	maxRetryBackoff       = 30 * time.Second
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Catalog:           catalog.Default(),
		Window:            DefaultWindow,
		RawPath:           DefaultRawPath,
		ProcessedPath:     DefaultProcessedPath,
		Timeout:           DefaultTimeout,
		MaxParallelism:    DefaultMaxParallelism,
		Retries:           DefaultRetries,
		RetryBackoff:      DefaultRetryBackoff,
		RequestsPerSecond: 10,
	}
}

func (c Config) validate() error {
	if c.Catalog == nil || c.Catalog.Len() == 0 {
		return fmt.Errorf("catalog is empty")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %d", c.Window)
	}
	if c.RawPath == "" || c.ProcessedPath == "" {
		return fmt.Errorf("raw and processed paths are required")
	}
	if c.RawPath == c.ProcessedPath {
		return fmt.Errorf("raw and processed paths must differ")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxParallelism <= 0 {
		return fmt.Errorf("max parallelism must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	return nil
}

// backoff returns RetryBackoff * 2^retry, capped.
func (c Config) backoff(retry int) time.Duration {
	if retry > 16 {
		return maxRetryBackoff
	}
	d := c.RetryBackoff * time.Duration(1<<uint(retry))
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}
