package backtest_test

import (
	"math"
	"testing"
	"time"

	"github.com/aegisdesk/aegis/internal/backtest"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

func trade(pnl float64) types.TradeRecord {
	return types.TradeRecord{PnL: decimal.NewFromFloat(pnl)}
}

func curve(equities ...float64) []types.EquityPoint {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	points := make([]types.EquityPoint, len(equities))
	for i, e := range equities {
		points[i] = types.EquityPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Equity:    decimal.NewFromFloat(e),
		}
	}
	return points
}

func TestReportNilOnZeroTrades(t *testing.T) {
	m := backtest.NewMonitor(backtest.DefaultPerformanceConfig())

	report := m.Report(nil, curve(100, 101), decimal.NewFromInt(100))
	if report != nil {
		t.Errorf("zero trades: got %+v, want nil report", report)
	}
}

func TestReportCounts(t *testing.T) {
	m := backtest.NewMonitor(backtest.DefaultPerformanceConfig())

	trades := []types.TradeRecord{trade(100), trade(-50), trade(200), trade(-50)}
	report := m.Report(trades, curve(1000, 1100, 1050, 1250, 1200), decimal.NewFromInt(1000))
	if report == nil {
		t.Fatal("nil report")
	}

	if report.TotalTrades != 4 || report.WinningTrades != 2 || report.LosingTrades != 2 {
		t.Errorf("counts = %d/%d/%d, want 4/2/2",
			report.TotalTrades, report.WinningTrades, report.LosingTrades)
	}
	if report.WinRate != 50 {
		t.Errorf("win rate = %f, want 50", report.WinRate)
	}
	if !report.TotalPnL.Equal(decimal.NewFromInt(200)) {
		t.Errorf("total PnL = %s, want 200", report.TotalPnL)
	}
	if !report.AvgWin.Equal(decimal.NewFromInt(150)) {
		t.Errorf("avg win = %s, want 150", report.AvgWin)
	}
	if !report.AvgLoss.Equal(decimal.NewFromInt(50)) {
		t.Errorf("avg loss = %s, want 50", report.AvgLoss)
	}
	if report.ProfitFactor != 3 {
		t.Errorf("profit factor = %f, want 3", report.ProfitFactor)
	}
}

func TestProfitFactorSentinels(t *testing.T) {
	m := backtest.NewMonitor(backtest.DefaultPerformanceConfig())

	// All winners: profit factor degenerates to +Inf.
	report := m.Report([]types.TradeRecord{trade(10), trade(20)},
		curve(100, 110, 130), decimal.NewFromInt(100))
	if !math.IsInf(report.ProfitFactor, 1) {
		t.Errorf("no losses: profit factor = %f, want +Inf", report.ProfitFactor)
	}

	// All losers: zero.
	report = m.Report([]types.TradeRecord{trade(-10), trade(-20)},
		curve(100, 90, 70), decimal.NewFromInt(100))
	if report.ProfitFactor != 0 {
		t.Errorf("no wins: profit factor = %f, want 0", report.ProfitFactor)
	}

	// Zero-PnL trades count as losses but contribute no gross loss.
	report = m.Report([]types.TradeRecord{trade(0)},
		curve(100, 100), decimal.NewFromInt(100))
	if report.ProfitFactor != 0 {
		t.Errorf("breakeven only: profit factor = %f, want 0", report.ProfitFactor)
	}
	if report.WinningTrades != 0 {
		t.Errorf("breakeven counted as a win")
	}
}

func TestMaxDrawdown(t *testing.T) {
	m := backtest.NewMonitor(backtest.DefaultPerformanceConfig())

	// Peak 1200, trough 900: drawdown 300 = 25% of peak.
	report := m.Report([]types.TradeRecord{trade(1)},
		curve(1000, 1200, 900, 1100), decimal.NewFromInt(1000))

	if !report.MaxDrawdown.Equal(decimal.NewFromInt(300)) {
		t.Errorf("max drawdown = %s, want 300", report.MaxDrawdown)
	}
	if math.Abs(report.MaxDrawdownPct-25) > 1e-9 {
		t.Errorf("max drawdown pct = %f, want 25", report.MaxDrawdownPct)
	}
}

func TestSharpeFlatCurveZero(t *testing.T) {
	m := backtest.NewMonitor(backtest.DefaultPerformanceConfig())

	report := m.Report([]types.TradeRecord{trade(1)},
		curve(100, 100, 100, 100), decimal.NewFromInt(100))
	if report.SharpeRatio != 0 {
		t.Errorf("flat curve Sharpe = %f, want 0", report.SharpeRatio)
	}
}

func TestSharpeAnnualizationScaling(t *testing.T) {
	trades := []types.TradeRecord{trade(1)}
	eq := curve(100, 101, 100.5, 102, 101.5, 103)

	minute := backtest.NewMonitor(backtest.PerformanceConfig{BarsPerYear: 252 * 390})
	daily := backtest.NewMonitor(backtest.PerformanceConfig{BarsPerYear: 252})

	sMinute := minute.Report(trades, eq, decimal.NewFromInt(100)).SharpeRatio
	sDaily := daily.Report(trades, eq, decimal.NewFromInt(100)).SharpeRatio

	want := math.Sqrt(390)
	if math.Abs(sMinute/sDaily-want) > 1e-9 {
		t.Errorf("annualization ratio = %f, want sqrt(390) = %f", sMinute/sDaily, want)
	}
}
