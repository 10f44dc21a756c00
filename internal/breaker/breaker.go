// Package breaker implements the daily circuit breaker: a per-trading-day
// state machine that halts new entries once loss or trade-count limits are
// breached. A halt is sticky until the next StartDay.
package breaker

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// HaltedError is returned by CheckCanTrade when trading is halted. It is
// designed to propagate to callers outside the backtest engine (a live
// driver would surface it); the engine itself treats it as a blocked entry.
type HaltedError struct {
	Reason string
}

func (e *HaltedError) Error() string {
	return fmt.Sprintf("trading halted: %s", e.Reason)
}

// Config configures the circuit breaker limits.
type Config struct {
	MaxDailyLossPct float64 // fraction of starting capital, e.g. 0.02
	MaxTradesPerDay int
}

// DefaultConfig returns a 2% daily loss limit and 10 trades per day.
func DefaultConfig() Config {
	return Config{
		MaxDailyLossPct: 0.02,
		MaxTradesPerDay: 10,
	}
}

// CircuitBreaker tracks daily realized and unrealized P&L and trade count.
// It is not safe for concurrent use; the backtest engine is its sole caller
// during a run.
type CircuitBreaker struct {
	logger *zap.Logger
	config Config

	halted     bool
	haltReason string
	stats      types.DailyStats
}

// New creates a circuit breaker. Call StartDay before trading.
func New(logger *zap.Logger, config Config) *CircuitBreaker {
	return &CircuitBreaker{logger: logger, config: config}
}

// StartDay resets to an unhalted state with fresh daily stats.
func (cb *CircuitBreaker) StartDay(capital decimal.Decimal, date time.Time) {
	cb.halted = false
	cb.haltReason = ""
	cb.stats = types.DailyStats{
		Date:            date,
		StartingCapital: capital,
		CurrentCapital:  capital,
	}
}

// dailyPnLPct returns realized+unrealized P&L as a percentage of starting
// capital.
func (cb *CircuitBreaker) dailyPnLPct() float64 {
	if cb.stats.StartingCapital.IsZero() {
		return 0
	}
	total := cb.stats.RealizedPnL.Add(cb.stats.UnrealizedPnL)
	pct, _ := total.Div(cb.stats.StartingCapital).Float64()
	return pct * 100
}

// CheckCanTrade returns a HaltedError if trading is halted, halting first if
// a limit has just been breached. A nil return means a new entry is allowed.
func (cb *CircuitBreaker) CheckCanTrade() error {
	if cb.halted {
		return &HaltedError{Reason: cb.haltReason}
	}

	if pct := cb.dailyPnLPct(); pct <= -cb.config.MaxDailyLossPct*100 {
		cb.halt(fmt.Sprintf("daily loss %.2f%% breached limit %.2f%%", pct, cb.config.MaxDailyLossPct*100))
		return &HaltedError{Reason: cb.haltReason}
	}

	if cb.stats.TradeCount >= cb.config.MaxTradesPerDay {
		cb.halt(fmt.Sprintf("trade count %d reached daily limit %d", cb.stats.TradeCount, cb.config.MaxTradesPerDay))
		return &HaltedError{Reason: cb.haltReason}
	}

	return nil
}

func (cb *CircuitBreaker) halt(reason string) {
	cb.halted = true
	cb.haltReason = reason
	cb.logger.Warn("circuit breaker halted trading",
		zap.String("reason", reason),
		zap.Time("date", cb.stats.Date),
	)
}

// RecordTrade adds a closed trade's realized P&L to the daily stats. Callers
// must invoke this exactly once per closed trade.
func (cb *CircuitBreaker) RecordTrade(pnl decimal.Decimal, isWin bool) {
	cb.stats.RealizedPnL = cb.stats.RealizedPnL.Add(pnl)
	cb.stats.CurrentCapital = cb.stats.CurrentCapital.Add(pnl)
	cb.stats.TradeCount++
	if isWin {
		cb.stats.WinCount++
	} else {
		cb.stats.LossCount++
	}
}

// UpdateUnrealizedPnL feeds mark-to-market P&L into the loss-limit check
// without counting as a trade.
func (cb *CircuitBreaker) UpdateUnrealizedPnL(pnl decimal.Decimal) {
	cb.stats.UnrealizedPnL = pnl
}

// Halted reports whether trading is currently halted.
func (cb *CircuitBreaker) Halted() bool { return cb.halted }

// Stats returns a snapshot of the current daily stats.
func (cb *CircuitBreaker) Stats() types.DailyStats { return cb.stats }
