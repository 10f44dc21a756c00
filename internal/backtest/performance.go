package backtest

import (
	"math"

	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// PerformanceConfig parameterizes statistics that depend on bar granularity.
type PerformanceConfig struct {
	// BarsPerYear is the Sharpe annualization factor's base: 252*390 for
	// 1-minute bars across a 390-minute trading day. Daily-bar runs must set
	// 252 or the Sharpe ratio is meaningless.
	BarsPerYear float64
}

// DefaultPerformanceConfig assumes 1-minute bars.
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{BarsPerYear: 252 * 390}
}

// Monitor derives summary statistics from a trade log and equity curve.
type Monitor struct {
	config PerformanceConfig
}

// NewMonitor creates a performance monitor.
func NewMonitor(config PerformanceConfig) *Monitor {
	if config.BarsPerYear <= 0 {
		config = DefaultPerformanceConfig()
	}
	return &Monitor{config: config}
}

// Report summarizes the run. With zero trades there is nothing to report and
// the result is nil; callers treat that as a normal state, not a failure.
func (m *Monitor) Report(trades []types.TradeRecord, equityCurve []types.EquityPoint, initialCapital decimal.Decimal) *types.PerformanceReport {
	if len(trades) == 0 {
		return nil
	}

	report := &types.PerformanceReport{TotalTrades: len(trades)}

	var grossProfit, grossLoss decimal.Decimal
	for _, trade := range trades {
		report.TotalPnL = report.TotalPnL.Add(trade.PnL)
		if trade.PnL.GreaterThan(decimal.Zero) {
			report.WinningTrades++
			grossProfit = grossProfit.Add(trade.PnL)
		} else {
			report.LosingTrades++
			grossLoss = grossLoss.Add(trade.PnL.Abs())
		}
	}

	report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100

	if report.WinningTrades > 0 {
		report.AvgWin = grossProfit.Div(decimal.NewFromInt(int64(report.WinningTrades)))
	}
	if report.LosingTrades > 0 {
		report.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(report.LosingTrades)))
	}

	// Profit factor degenerates to +Inf with profits and no losses, 0
	// otherwise; both are defined sentinel values, not errors.
	switch {
	case !grossLoss.IsZero():
		pf, _ := grossProfit.Div(grossLoss).Float64()
		report.ProfitFactor = pf
	case grossProfit.GreaterThan(decimal.Zero):
		report.ProfitFactor = math.Inf(1)
	default:
		report.ProfitFactor = 0
	}

	report.MaxDrawdown, report.MaxDrawdownPct = m.maxDrawdown(equityCurve)
	report.SharpeRatio = m.sharpe(equityCurve)

	return report
}

// maxDrawdown is the largest peak-to-trough decline over the running maximum
// of the equity curve, absolute and as a percentage of the peak.
func (m *Monitor) maxDrawdown(equityCurve []types.EquityPoint) (decimal.Decimal, float64) {
	if len(equityCurve) == 0 {
		return decimal.Zero, 0
	}

	peak := equityCurve[0].Equity
	maxDD := decimal.Zero
	maxDDPct := 0.0

	for _, point := range equityCurve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		dd := peak.Sub(point.Equity)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			if !peak.IsZero() {
				pct, _ := dd.Div(peak).Float64()
				maxDDPct = pct * 100
			}
		}
	}

	return maxDD, maxDDPct
}

// sharpe is the annualized mean per-bar equity return over its annualized
// standard deviation, with the annualization base from the config.
func (m *Monitor) sharpe(equityCurve []types.EquityPoint) float64 {
	if len(equityCurve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1].Equity
		if prev.IsZero() {
			continue
		}
		r, _ := equityCurve[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return mean / std * math.Sqrt(m.config.BarsPerYear)
}
