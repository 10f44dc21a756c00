// Package scorer converts indicator values into a bounded composite score and
// a discrete trading signal per bar.
package scorer

import (
	"math"

	"github.com/aegisdesk/aegis/internal/indicator"
	"github.com/aegisdesk/aegis/pkg/types"
)

// Scoring parameters. The moving-average triplet and RSI bounds mirror the
// indicator defaults used across the engine.
const (
	MAShortPeriod = 5
	MAMidPeriod   = 20
	MALongPeriod  = 60

	RSIPeriod     = 14
	RSIOversold   = 30
	RSIOverbought = 70
)

// ScoreToSignal maps a total score in [-3, 3] to a signal. The mapping is
// total: every integer score has a defined signal.
func ScoreToSignal(score int) types.Signal {
	switch {
	case score >= 2:
		return types.SignalStrongBuy
	case score == 1:
		return types.SignalBuy
	case score == -1:
		return types.SignalSell
	case score <= -2:
		return types.SignalStrongSell
	default:
		return types.SignalHold
	}
}

// MAScore is +1 for a golden alignment (ma5 > ma20 > ma60), -1 for a death
// alignment (ma5 < ma20 < ma60), 0 otherwise or while any average is
// undefined.
func MAScore(maShort, maMid, maLong float64) int {
	if math.IsNaN(maShort) || math.IsNaN(maMid) || math.IsNaN(maLong) {
		return 0
	}
	switch {
	case maShort > maMid && maMid > maLong:
		return 1
	case maShort < maMid && maMid < maLong:
		return -1
	default:
		return 0
	}
}

// VWAPScore is +1 when the close is above VWAP and -1 otherwise.
func VWAPScore(close, vwap float64) int {
	if close > vwap {
		return 1
	}
	return -1
}

// RSIScore is +1 when oversold (< 30), -1 when overbought (> 70), else 0.
func RSIScore(rsi float64) int {
	switch {
	case rsi < RSIOversold:
		return 1
	case rsi > RSIOverbought:
		return -1
	default:
		return 0
	}
}

// BuildRows computes one IndicatorRow per input bar: VWAP, RSI, the 5/20/60
// moving averages, the three sub-scores, the total score in [-3, 3], and the
// mapped signal.
func BuildRows(bars []types.PriceBar) []types.IndicatorRow {
	vwap := indicator.VWAP(bars)
	rsi := indicator.RSI(bars, RSIPeriod)
	maShort := indicator.SMA(bars, MAShortPeriod)
	maMid := indicator.SMA(bars, MAMidPeriod)
	maLong := indicator.SMA(bars, MALongPeriod)

	rows := make([]types.IndicatorRow, len(bars))
	for i, bar := range bars {
		close, _ := bar.Close.Float64()

		row := types.IndicatorRow{
			VWAP:    vwap[i],
			RSI:     rsi[i],
			MAShort: maShort[i],
			MAMid:   maMid[i],
			MALong:  maLong[i],
		}
		row.MAScore = MAScore(maShort[i], maMid[i], maLong[i])
		row.VWAPScore = VWAPScore(close, vwap[i])
		row.RSIScore = RSIScore(rsi[i])
		row.TotalScore = row.MAScore + row.VWAPScore + row.RSIScore
		row.Signal = ScoreToSignal(row.TotalScore)

		rows[i] = row
	}

	return rows
}

// NewSeries builds a ScoredSeries from raw bars, satisfying the backtest
// engine's precondition that every bar carries a total score.
func NewSeries(symbol string, bars []types.PriceBar) *types.ScoredSeries {
	return &types.ScoredSeries{
		Symbol: symbol,
		Bars:   bars,
		Rows:   BuildRows(bars),
	}
}
