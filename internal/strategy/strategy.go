// Package strategy provides the pluggable trading strategy interface and the
// built-in concrete strategies.
package strategy

import (
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// Strategy is the capability set every pluggable decision unit implements.
// The caller (the backtest engine, or a future live driver) owns position
// state and synchronizes it via SetPosition before each CalculateSignal call.
// Any type satisfying this interface can be dropped into the backtest engine,
// including the ensemble orchestrator itself.
type Strategy interface {
	Name() string
	// CalculateSignal decides BUY/SELL/HOLD for the bar at index, using only
	// the series up to and including that bar. Insufficient lookback must
	// yield HOLD, never an error.
	CalculateSignal(series *types.ScoredSeries, index int) types.Signal
	// CalculateQuantity returns the share count for a signal given available
	// capital and the prospective execution price.
	CalculateQuantity(capital, price decimal.Decimal, signal types.Signal) int64
	// SetPosition synchronizes the caller-owned open position (nil when flat).
	SetPosition(pos *types.Position)
	// Reset clears all internal state between independent runs.
	Reset()
}
