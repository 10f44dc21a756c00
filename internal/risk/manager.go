// Package risk provides position sizing and stop-loss management.
// Sizing is fixed-fractional by default and switches to a conservative
// fractional Kelly once enough trade history has accumulated.
package risk

import (
	"math"

	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/indicator"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// Config configures the risk manager.
type Config struct {
	ATRPeriod             int     // lookback for ATR
	ATRMultiplier         float64 // stop distance in ATRs
	FixedStopLossPct      float64 // fallback stop distance when ATR is unusable
	MinStopDistancePct    float64 // the stop is never closer than this below entry
	RiskPerTradePct       float64 // capital fraction risked per trade (fixed-fractional)
	MaxCapitalPerTradePct float64 // hard cap on capital deployed in one trade
	KellyEnabled          bool    // use Kelly-fraction allocation when history allows
	KellyFraction         float64 // safety scalar applied to the raw Kelly fraction
	KellyMinTrades        int     // trades required before Kelly kicks in
}

// DefaultConfig returns conservative defaults (half-Kelly, 2% risk per trade).
func DefaultConfig() Config {
	return Config{
		ATRPeriod:             14,
		ATRMultiplier:         2.0,
		FixedStopLossPct:      0.03,
		MinStopDistancePct:    0.01,
		RiskPerTradePct:       0.02,
		MaxCapitalPerTradePct: 0.2,
		KellyEnabled:          false,
		KellyFraction:         0.5,
		KellyMinTrades:        10,
	}
}

// Manager computes position sizes and stop-loss prices. It keeps trailing
// win/loss statistics for Kelly sizing; callers must Reset between
// independent backtest runs.
type Manager struct {
	logger *zap.Logger
	config Config

	wins       int
	losses     int
	sumWinPct  float64
	sumLossPct float64
}

// NewManager creates a risk manager.
func NewManager(logger *zap.Logger, config Config) *Manager {
	return &Manager{logger: logger, config: config}
}

// Reset clears the trailing trade statistics.
func (m *Manager) Reset() {
	m.wins, m.losses = 0, 0
	m.sumWinPct, m.sumLossPct = 0, 0
}

// RecordTrade feeds a closed trade's percentage return into the trailing
// statistics used by Kelly sizing.
func (m *Manager) RecordTrade(pnlPct float64, isWin bool) {
	if isWin {
		m.wins++
		m.sumWinPct += pnlPct
	} else {
		m.losses++
		m.sumLossPct += math.Abs(pnlPct)
	}
}

// DynamicStopLoss returns entry - ATR*multiplier computed over the supplied
// window. When ATR is undefined or non-positive it falls back to the fixed
// percentage stop. The result is capped so the stop is never closer than
// MinStopDistancePct below entry.
func (m *Manager) DynamicStopLoss(bars []types.PriceBar, entryPrice decimal.Decimal) decimal.Decimal {
	entry, _ := entryPrice.Float64()

	atr := indicator.ATRAt(bars, m.config.ATRPeriod)

	var stop float64
	if math.IsNaN(atr) || atr <= 0 {
		stop = entry * (1 - m.config.FixedStopLossPct)
	} else {
		stop = entry - atr*m.config.ATRMultiplier
	}

	ceiling := entry * (1 - m.config.MinStopDistancePct)
	if stop > ceiling {
		stop = ceiling
	}

	return decimal.NewFromFloat(stop)
}

// KellyFraction returns W - (1-W)/R from the trailing statistics, scaled by
// the configured safety fraction and clamped to [0, MaxCapitalPerTradePct].
// With no recorded losses or wins it returns 0.
func (m *Manager) KellyFraction() float64 {
	total := m.wins + m.losses
	if total == 0 || m.wins == 0 || m.losses == 0 {
		return 0
	}

	w := float64(m.wins) / float64(total)
	avgWin := m.sumWinPct / float64(m.wins)
	avgLoss := m.sumLossPct / float64(m.losses)
	if avgLoss == 0 {
		return 0
	}

	r := avgWin / avgLoss
	f := w - (1-w)/r
	f *= m.config.KellyFraction

	if f < 0 {
		return 0
	}
	if f > m.config.MaxCapitalPerTradePct {
		return m.config.MaxCapitalPerTradePct
	}
	return f
}

// allocationPct picks the capital fraction risked on the next trade: the
// Kelly fraction once enabled and warmed up, the fixed per-trade risk
// otherwise.
func (m *Manager) allocationPct() float64 {
	if m.config.KellyEnabled && m.wins+m.losses >= m.config.KellyMinTrades {
		if f := m.KellyFraction(); f > 0 {
			return f
		}
	}
	return m.config.RiskPerTradePct
}

// PositionSize computes the share quantity and the stop-loss price for an
// entry. A nil stopLoss derives one from the bar window (ATR or fixed
// fallback). Risk per share is guarded against non-positive values, the
// quantity is capped by MaxCapitalPerTradePct of capital, and a single share
// is returned when the computed quantity rounds to zero but capital covers
// one share.
func (m *Manager) PositionSize(capital, entryPrice decimal.Decimal, stopLoss *decimal.Decimal, bars []types.PriceBar) (int64, decimal.Decimal) {
	var stop decimal.Decimal
	if stopLoss != nil {
		stop = *stopLoss
	} else {
		stop = m.DynamicStopLoss(bars, entryPrice)
	}

	entry, _ := entryPrice.Float64()
	stopF, _ := stop.Float64()
	cap64, _ := capital.Float64()

	riskPerShare := entry - stopF
	if riskPerShare <= 0 {
		riskPerShare = entry * m.config.FixedStopLossPct
	}
	if riskPerShare <= 0 || entry <= 0 {
		return 0, stop
	}

	riskAmount := cap64 * m.allocationPct()
	quantity := int64(riskAmount / riskPerShare)

	maxShares := int64(cap64 * m.config.MaxCapitalPerTradePct / entry)
	if quantity > maxShares {
		quantity = maxShares
	}

	if quantity == 0 && cap64 >= entry {
		quantity = 1
	}

	return quantity, stop
}

// TrailingStop returns highest - max(ATR*multiplier, highest*fixedStopPct),
// floored at the initial fixed stop from the entry price so the stop only
// ratchets upward as the position moves in favor.
func (m *Manager) TrailingStop(entryPrice, highestPrice decimal.Decimal, atr float64) decimal.Decimal {
	entry, _ := entryPrice.Float64()
	highest, _ := highestPrice.Float64()

	distance := highest * m.config.FixedStopLossPct
	if !math.IsNaN(atr) && atr*m.config.ATRMultiplier > distance {
		distance = atr * m.config.ATRMultiplier
	}

	stop := highest - distance
	floor := entry * (1 - m.config.FixedStopLossPct)
	if stop < floor {
		stop = floor
	}

	return decimal.NewFromFloat(stop)
}

// Stats exposes the trailing win/loss counters, mainly for diagnostics.
func (m *Manager) Stats() (wins, losses int) {
	return m.wins, m.losses
}
