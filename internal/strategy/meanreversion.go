package strategy

import (
	"math"

	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/indicator"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// MeanReversionConfig configures the Bollinger Band mean-reversion strategy.
type MeanReversionConfig struct {
	Period          int     // Bollinger lookback
	StdDevMult      float64 // band width in standard deviations
	CapitalFraction float64 // fraction of capital deployed per entry
}

// DefaultMeanReversionConfig returns the standard 20-bar, 2-sigma bands.
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		Period:          20,
		StdDevMult:      2.0,
		CapitalFraction: 0.9,
	}
}

// MeanReversion buys at or below the lower Bollinger Band and sells at the
// upper band, or takes profit when price returns to the middle band while
// holding. Band arrays are computed lazily and cached keyed by series length,
// so appending a bar invalidates the cache.
type MeanReversion struct {
	logger   *zap.Logger
	config   MeanReversionConfig
	position *types.Position

	cachedLen int
	upper     []float64
	middle    []float64
	lower     []float64
}

// NewMeanReversion creates a Bollinger mean-reversion strategy.
func NewMeanReversion(logger *zap.Logger, config MeanReversionConfig) *MeanReversion {
	return &MeanReversion{logger: logger, config: config, cachedLen: -1}
}

func (s *MeanReversion) Name() string { return "mean_reversion" }

// bands returns the cached band arrays, recomputing when the series length
// changed since the last call.
func (s *MeanReversion) bands(series *types.ScoredSeries) (upper, middle, lower []float64) {
	if len(series.Bars) != s.cachedLen {
		s.upper, s.middle, s.lower = indicator.Bollinger(series.Bars, s.config.Period, s.config.StdDevMult)
		s.cachedLen = len(series.Bars)
	}
	return s.upper, s.middle, s.lower
}

// CalculateSignal returns HOLD until the band period is satisfied (the bands
// are NaN-guarded), then trades band touches.
func (s *MeanReversion) CalculateSignal(series *types.ScoredSeries, index int) types.Signal {
	if index < 0 || index >= len(series.Bars) {
		return types.SignalHold
	}

	upper, middle, lower := s.bands(series)
	if math.IsNaN(upper[index]) || math.IsNaN(lower[index]) {
		return types.SignalHold
	}

	price, _ := series.Bars[index].Close.Float64()

	if s.position == nil {
		if price <= lower[index] {
			return types.SignalBuy
		}
		return types.SignalHold
	}

	// Holding: exit at the upper band, or take profit at the middle band.
	if price >= upper[index] || price >= middle[index] {
		return types.SignalSell
	}
	return types.SignalHold
}

// CalculateQuantity deploys the configured capital fraction on BUY and the
// full held quantity on SELL.
func (s *MeanReversion) CalculateQuantity(capital, price decimal.Decimal, signal types.Signal) int64 {
	switch {
	case signal.IsBuy():
		if price.IsZero() {
			return 0
		}
		budget := capital.Mul(decimal.NewFromFloat(s.config.CapitalFraction))
		return budget.Div(price).IntPart()
	case signal.IsSell() && s.position != nil:
		return s.position.Quantity
	default:
		return 0
	}
}

func (s *MeanReversion) SetPosition(pos *types.Position) { s.position = pos }

// Reset clears the position and invalidates the band cache.
func (s *MeanReversion) Reset() {
	s.position = nil
	s.cachedLen = -1
	s.upper, s.middle, s.lower = nil, nil, nil
}
