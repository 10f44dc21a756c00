// Package data provides the validated in-memory bar store that feeds the
// quant core. All acquisition happens outside the core; the store's job is
// to enforce the input contract (strictly time-ascending bars with no
// duplicate timestamps) and hand out immutable series.
package data

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/pkg/types"
)

// ValidateBars enforces the input contract: a non-empty, strictly
// time-ascending sequence with no duplicate timestamps.
func ValidateBars(bars []types.PriceBar) error {
	if len(bars) == 0 {
		return fmt.Errorf("empty bar sequence")
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bars not strictly ascending at index %d (%s then %s)",
				i, bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
	return nil
}

// Store holds validated bar series per symbol.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	series map[string][]types.PriceBar
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger: logger,
		series: make(map[string][]types.PriceBar),
	}
}

// Put validates and stores a bar series for a symbol, replacing any existing
// series. The input is copied so callers cannot mutate stored bars.
func (s *Store) Put(symbol string, bars []types.PriceBar) error {
	if err := ValidateBars(bars); err != nil {
		return fmt.Errorf("invalid series for %s: %w", symbol, err)
	}

	copied := make([]types.PriceBar, len(bars))
	copy(copied, bars)

	s.mu.Lock()
	s.series[symbol] = copied
	s.mu.Unlock()

	s.logger.Info("stored bar series",
		zap.String("symbol", symbol),
		zap.Int("bars", len(copied)),
	)
	return nil
}

// Get returns a copy of the series for a symbol.
func (s *Store) Get(symbol string) ([]types.PriceBar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars, ok := s.series[symbol]
	if !ok {
		return nil, false
	}
	copied := make([]types.PriceBar, len(bars))
	copy(copied, bars)
	return copied, true
}

// Symbols returns all stored symbols.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for symbol := range s.series {
		out = append(out, symbol)
	}
	return out
}
