package catalog

import (
	"fmt"
	"strings"
)

// Entry maps a short coin identifier to the upstream trading pair.
type Entry struct {
	CoinID     string `yaml:"coin"`
	MarketPair string `yaml:"pair"`
}

// Catalog is an ordered, immutable set of entries with unique coin ids.
type Catalog struct {
	entries []Entry
}

// defaultCoins is the symbol set ingested when no catalog is configured.
var defaultCoins = []string{"BTC", "ETH", "BNB", "XRP", "ADA", "SOL", "DOGE", "DOT", "LTC", "TRX"}

// New builds a Catalog, rejecting empty or duplicate coin ids and empty pairs.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: no entries")
	}
	c := &Catalog{entries: make([]Entry, 0, len(entries))}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		coin := strings.TrimSpace(e.CoinID)
		pair := strings.TrimSpace(e.MarketPair)
		if coin == "" {
			return nil, fmt.Errorf("catalog: entry %d has empty coin id", i)
		}
		if pair == "" {
			return nil, fmt.Errorf("catalog: coin %s has empty market pair", coin)
		}
		if seen[coin] {
			return nil, fmt.Errorf("catalog: duplicate coin id %s", coin)
		}
		seen[coin] = true
		c.entries = append(c.entries, Entry{CoinID: coin, MarketPair: pair})
	}
	return c, nil
}

// Default returns the built-in USDT catalog.
func Default() *Catalog {
	entries := make([]Entry, len(defaultCoins))
	for i, coin := range defaultCoins {
		entries[i] = Entry{CoinID: coin, MarketPair: coin + "USDT"}
	}
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultEntries returns the built-in entries, for use as a config default.
func DefaultEntries() []Entry {
	return Default().Entries()
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }
