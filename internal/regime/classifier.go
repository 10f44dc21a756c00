// Package regime classifies market trend state (BULL/BEAR/SIDEWAY) with a
// confidence score, from the moving-average gap, its slope, and ATR-based
// volatility. Classification is stateless: every bar is evaluated
// independently from the price window ending at that bar, with no smoothing
// or hysteresis between adjacent labels.
package regime

import (
	"math"

	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/indicator"
	"github.com/aegisdesk/aegis/pkg/types"
)

// Config configures the classifier.
type Config struct {
	ShortPeriod      int     // fast moving average
	LongPeriod       int     // slow moving average
	SlopePeriod      int     // bars for the MA slope
	ATRPeriod        int     // lookback for volatility
	TrendThreshold   float64 // MA gap beyond which the market is trending
	LowVolThreshold  float64 // ATR/close below which a range is "quiet"
	SlopeAgreeBonus  float64 // confidence bonus when slope confirms the trend
}

// DefaultConfig returns the 20/60 MA classifier with a 2% trend threshold.
func DefaultConfig() Config {
	return Config{
		ShortPeriod:     20,
		LongPeriod:      60,
		SlopePeriod:     5,
		ATRPeriod:       14,
		TrendThreshold:  0.02,
		LowVolThreshold: 0.02,
		SlopeAgreeBonus: 0.1,
	}
}

// Classifier labels bars with a market regime.
type Classifier struct {
	logger *zap.Logger
	config Config
}

// NewClassifier creates a regime classifier.
func NewClassifier(logger *zap.Logger, config Config) *Classifier {
	return &Classifier{logger: logger, config: config}
}

// ClassifyAt evaluates the regime at one bar index using only bars up to and
// including it. With insufficient history for the long moving average it
// reports SIDEWAY at base confidence.
func (c *Classifier) ClassifyAt(bars []types.PriceBar, index int) types.RegimeResult {
	if index < 0 || index >= len(bars) || index < c.config.LongPeriod-1 {
		return types.RegimeResult{Regime: types.RegimeSideway, Confidence: 0.5}
	}

	window := bars[:index+1]
	maShort := indicator.SMA(window, c.config.ShortPeriod)
	maLong := indicator.SMA(window, c.config.LongPeriod)

	short := maShort[index]
	long := maLong[index]
	if math.IsNaN(short) || math.IsNaN(long) || long == 0 {
		return types.RegimeResult{Regime: types.RegimeSideway, Confidence: 0.5}
	}

	gap := (short - long) / long
	slope := indicator.Slope(maShort, index, c.config.SlopePeriod)

	close, _ := bars[index].Close.Float64()
	atr := indicator.ATRAt(window, c.config.ATRPeriod)
	volatility := 0.0
	if !math.IsNaN(atr) && close > 0 {
		volatility = atr / close
	}

	result := types.RegimeResult{
		MAShort:       short,
		MALong:        long,
		Volatility:    volatility,
		TrendStrength: math.Abs(gap) / c.config.TrendThreshold,
	}

	switch {
	case gap > c.config.TrendThreshold:
		result.Regime = types.RegimeBull
		result.Confidence = c.trendConfidence(gap, slope, +1)
	case gap < -c.config.TrendThreshold:
		result.Regime = types.RegimeBear
		result.Confidence = c.trendConfidence(gap, slope, -1)
	default:
		result.Regime = types.RegimeSideway
		if volatility < c.config.LowVolThreshold {
			result.Confidence = 0.7
		} else {
			result.Confidence = 0.6
		}
	}

	return result
}

// trendConfidence starts at 0.5, scales with |gap|/threshold, adds the slope
// bonus when the slope direction agrees with the trend call, and caps at 1.
func (c *Classifier) trendConfidence(gap, slope float64, direction float64) float64 {
	confidence := 0.5 * math.Abs(gap) / c.config.TrendThreshold
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0.5 {
		confidence = 0.5
	}
	if !math.IsNaN(slope) && slope*direction > 0 {
		confidence += c.config.SlopeAgreeBonus
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// Classify evaluates only the latest bar of the series.
func (c *Classifier) Classify(bars []types.PriceBar) types.RegimeResult {
	return c.ClassifyAt(bars, len(bars)-1)
}

// Series classifies every bar independently.
func (c *Classifier) Series(bars []types.PriceBar) []types.RegimeResult {
	out := make([]types.RegimeResult, len(bars))
	for i := range bars {
		out[i] = c.ClassifyAt(bars, i)
	}
	return out
}
