// Package indicator computes technical indicators over ordered bar sequences.
// All functions are pure: they derive values from the supplied window only and
// keep no state between calls. Values that lack the required lookback are NaN
// unless a defined fallback is specified (RSI is neutral-filled).
package indicator

import (
	"math"

	"github.com/aegisdesk/aegis/pkg/types"
)

// TypicalPrice returns (high + low + close) / 3 for a bar.
func TypicalPrice(bar types.PriceBar) float64 {
	h, _ := bar.High.Float64()
	l, _ := bar.Low.Float64()
	c, _ := bar.Close.Float64()
	return (h + l + c) / 3
}

// VWAP computes the volume-weighted average price per bar. The cumulative
// price*volume and volume sums reset at each calendar date change in the
// timestamp index, so each session carries its own VWAP. On daily-bar input
// every session holds exactly one bar and VWAP degenerates to the bar's
// typical price; that is the documented behavior, not an error.
func VWAP(bars []types.PriceBar) []float64 {
	out := make([]float64, len(bars))

	var cumPV, cumVol float64
	var curYear, curDay int

	for i, bar := range bars {
		year, day := bar.Timestamp.Year(), bar.Timestamp.YearDay()
		if i == 0 || year != curYear || day != curDay {
			cumPV, cumVol = 0, 0
			curYear, curDay = year, day
		}

		vol, _ := bar.Volume.Float64()
		cumPV += TypicalPrice(bar) * vol
		cumVol += vol

		if cumVol == 0 {
			out[i] = TypicalPrice(bar)
		} else {
			out[i] = cumPV / cumVol
		}
	}

	return out
}

// RSI computes Wilder's smoothed RSI with alpha = 1/period. The first
// `period` values have insufficient history and are fixed to a neutral 50.
// With gains present and zero smoothed loss the RSI is 100 by definition;
// with no movement at all (both averages zero) it stays at 50.
func RSI(bars []types.PriceBar, period int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) == 0 {
		return out
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64

	out[0] = 50
	for i := 1; i < len(bars); i++ {
		prev, _ := bars[i-1].Close.Float64()
		cur, _ := bars[i].Close.Float64()
		change := cur - prev

		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha

		if i < period {
			out[i] = 50
			continue
		}

		if avgGain == 0 && avgLoss == 0 {
			out[i] = 50
			continue
		}
		if avgLoss == 0 {
			out[i] = 100
			continue
		}

		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}

	return out
}

// SMA computes a simple rolling mean of closes. Values before `period` bars
// are NaN.
func SMA(bars []types.PriceBar, period int) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i], _ = bar.Close.Float64()
	}
	return RollingMean(closes, period)
}

// RollingMean computes a simple rolling mean over any series, NaN before
// `period` values are available.
func RollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	var sum float64

	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}

	return out
}

// TrueRange returns the per-bar true range:
// max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(bars []types.PriceBar) []float64 {
	out := make([]float64, len(bars))

	for i, bar := range bars {
		h, _ := bar.High.Float64()
		l, _ := bar.Low.Float64()
		tr := h - l

		if i > 0 {
			pc, _ := bars[i-1].Close.Float64()
			tr = math.Max(tr, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		}
		out[i] = tr
	}

	return out
}

// ATR computes the rolling mean of the true range. NaN before `period` bars.
func ATR(bars []types.PriceBar, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}

// ATRAt returns the ATR value at the final bar of the window, or NaN when the
// window is shorter than the period.
func ATRAt(bars []types.PriceBar, period int) float64 {
	if len(bars) == 0 {
		return math.NaN()
	}
	atr := ATR(bars, period)
	return atr[len(atr)-1]
}

// Bollinger computes rolling Bollinger Bands over closes: a middle SMA plus
// upper/lower bands offset by mult standard deviations. All three are NaN
// before `period` bars.
func Bollinger(bars []types.PriceBar, period int, mult float64) (upper, middle, lower []float64) {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i], _ = bar.Close.Float64()
	}

	middle = RollingMean(closes, period)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))

	for i := range closes {
		if i < period-1 {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := closes[j] - middle[i]
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(period))

		upper[i] = middle[i] + mult*std
		lower[i] = middle[i] - mult*std
	}

	return upper, middle, lower
}

// Slope returns the average per-bar change of a series over the trailing n
// bars ending at index. NaN when the lookback is not satisfied or either
// endpoint is NaN.
func Slope(values []float64, index, n int) float64 {
	if index < n || index >= len(values) {
		return math.NaN()
	}
	a, b := values[index-n], values[index]
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return (b - a) / float64(n)
}
