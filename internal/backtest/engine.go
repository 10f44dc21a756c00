// Package backtest drives a bar-by-bar, single-asset simulation of a
// strategy over a scored price series. The engine is the sole owner of
// capital and position state for the duration of a run; a run is a bounded
// loop over a fixed-length input and terminates deterministically.
package backtest

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/breaker"
	"github.com/aegisdesk/aegis/internal/indicator"
	"github.com/aegisdesk/aegis/internal/risk"
	"github.com/aegisdesk/aegis/internal/strategy"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrMissingScores is returned when the input series lacks the per-bar
// indicator rows (total score) the simulation requires. This is a
// precondition violation: the run fails fast before any bar is processed.
var ErrMissingScores = errors.New("backtest: series has no scored indicator rows")

// Config configures a backtest run.
type Config struct {
	InitialCapital    decimal.Decimal
	SlippagePct       float64 // adverse move applied on both sides, e.g. 0.0005
	CommissionPct     float64 // of notional, e.g. 0.00015
	DefaultStartIndex int     // fallback start when the long MA never defines
	UseTrailingStop   bool    // ratchet the stop up as the position gains

	Risk        risk.Config
	Breaker     breaker.Config
	Performance PerformanceConfig
}

// DefaultConfig returns A-share style costs: 0.05% slippage, 0.015%
// commission, simulation starting where the 60-bar MA defines.
func DefaultConfig() Config {
	return Config{
		InitialCapital:    decimal.NewFromInt(1_000_000),
		SlippagePct:       0.0005,
		CommissionPct:     0.00015,
		DefaultStartIndex: 60,
		Risk:              risk.DefaultConfig(),
		Breaker:           breaker.DefaultConfig(),
		Performance:       DefaultPerformanceConfig(),
	}
}

// Engine executes backtest runs. A single engine can be reused; every Run
// resets all run state, so identical inputs produce identical results.
type Engine struct {
	logger  *zap.Logger
	config  Config
	risk    *risk.Manager
	breaker *breaker.CircuitBreaker
	monitor *Monitor

	// Run state, reset at the start of every Run.
	capital      decimal.Decimal
	position     *types.Position
	stopLoss     decimal.Decimal
	highestPrice decimal.Decimal
	entryTime    time.Time
	curYear      int
	curDay       int

	trades      []types.TradeRecord
	signals     []types.SignalEvent
	equityCurve []types.EquityPoint
	riskStats   types.RiskStats

	onProgress func(types.BacktestProgress)
}

// NewEngine creates a backtest engine.
func NewEngine(logger *zap.Logger, config Config) *Engine {
	return &Engine{
		logger:  logger,
		config:  config,
		risk:    risk.NewManager(logger, config.Risk),
		breaker: breaker.New(logger, config.Breaker),
		monitor: NewMonitor(config.Performance),
	}
}

// SetProgressCallback installs a callback invoked periodically during a run.
func (e *Engine) SetProgressCallback(fn func(types.BacktestProgress)) {
	e.onProgress = fn
}

// Run simulates the strategy over the series and returns the result.
func (e *Engine) Run(series *types.ScoredSeries, strat strategy.Strategy) (*types.BacktestResult, error) {
	if len(series.Bars) == 0 || len(series.Rows) != len(series.Bars) {
		return nil, ErrMissingScores
	}

	startedAt := time.Now()
	e.reset()
	strat.Reset()

	startIdx := e.startIndex(series)
	e.logger.Info("starting backtest",
		zap.String("symbol", series.Symbol),
		zap.String("strategy", strat.Name()),
		zap.Int("bars", len(series.Bars)),
		zap.Int("start_index", startIdx),
		zap.String("initial_capital", e.config.InitialCapital.String()),
	)

	for i := startIdx; i < len(series.Bars); i++ {
		e.processBar(series, strat, i)

		if e.onProgress != nil && (i-startIdx)%100 == 0 {
			e.onProgress(types.BacktestProgress{
				Status:        "running",
				BarsProcessed: i - startIdx,
				TotalBars:     len(series.Bars) - startIdx,
				CurrentDate:   series.Bars[i].Timestamp,
				Trades:        len(e.trades),
				Equity:        e.equity(),
			})
		}
	}

	// Any still-open position is forcibly liquidated at the final close.
	if e.position != nil {
		last := series.Bars[len(series.Bars)-1]
		e.closePosition(last.Close, last.Timestamp, types.EventForceSell, "end of data")
	}

	result := e.buildResult(series, strat, startedAt)
	e.logger.Info("backtest completed",
		zap.String("symbol", series.Symbol),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("total_return_pct", result.TotalReturnPct),
		zap.Int("stop_loss_hits", result.RiskStats.StopLossHits),
		zap.Int("circuit_breaker_hits", result.RiskStats.CircuitBreakerHits),
	)

	return result, nil
}

// reset clears all run state so repeated runs on identical input are
// identical.
func (e *Engine) reset() {
	e.capital = e.config.InitialCapital
	e.position = nil
	e.stopLoss = decimal.Zero
	e.highestPrice = decimal.Zero
	e.entryTime = time.Time{}
	e.curYear, e.curDay = 0, 0
	e.trades = nil
	e.signals = nil
	e.equityCurve = nil
	e.riskStats = types.RiskStats{}
	e.risk.Reset()
}

// startIndex is the first bar where the long moving average is defined;
// earlier indicators are considered invalid and skipped. When the series
// never defines it the configured default applies.
func (e *Engine) startIndex(series *types.ScoredSeries) int {
	for i, row := range series.Rows {
		if !math.IsNaN(row.MALong) {
			return i
		}
	}
	return e.config.DefaultStartIndex
}

func (e *Engine) processBar(series *types.ScoredSeries, strat strategy.Strategy, i int) {
	bar := series.Bars[i]
	price := bar.Close

	e.rolloverDay(bar.Timestamp)

	if e.position != nil {
		e.position.CurrentPrice = price
		e.breaker.UpdateUnrealizedPnL(e.position.UnrealizedPnL())

		if e.config.UseTrailingStop {
			e.updateTrailingStop(series.Bars[:i+1], price)
		}

		// Stop-loss check takes priority over the strategy: a breached stop
		// force-sells at the stop price and skips the strategy this bar.
		if price.LessThanOrEqual(e.stopLoss) {
			e.riskStats.StopLossHits++
			e.closePosition(e.stopLoss, bar.Timestamp, types.EventStopLoss, "stop loss breached")
			e.recordEquity(bar)
			return
		}
	}

	strat.SetPosition(e.position)
	signal := strat.CalculateSignal(series, i)

	switch {
	case signal.IsBuy() && e.position == nil:
		e.tryOpenPosition(series, bar, i)
	case signal.IsSell() && e.position != nil:
		sellPrice := price.Mul(decimal.NewFromFloat(1 - e.config.SlippagePct))
		e.closePosition(sellPrice, bar.Timestamp, types.EventSell, string(signal))
	}
	// SELL with no position is a no-op.

	e.recordEquity(bar)
}

// rolloverDay resets the circuit breaker's daily context on date change.
func (e *Engine) rolloverDay(ts time.Time) {
	year, day := ts.Year(), ts.YearDay()
	if year == e.curYear && day == e.curDay {
		return
	}
	e.curYear, e.curDay = year, day
	e.breaker.StartDay(e.equity(), ts)
}

func (e *Engine) updateTrailingStop(window []types.PriceBar, price decimal.Decimal) {
	if price.GreaterThan(e.highestPrice) {
		e.highestPrice = price
	}
	atr := indicator.ATRAt(window, e.config.Risk.ATRPeriod)
	trailing := e.risk.TrailingStop(e.position.AvgPrice, e.highestPrice, atr)
	// Trailing stops only ratchet upward.
	if trailing.GreaterThan(e.stopLoss) {
		e.stopLoss = trailing
	}
}

// tryOpenPosition consults the circuit breaker, sizes the entry, applies
// slippage and commission, and opens the position. A blocked or unaffordable
// entry leaves state untouched.
func (e *Engine) tryOpenPosition(series *types.ScoredSeries, bar types.PriceBar, i int) {
	if err := e.breaker.CheckCanTrade(); err != nil {
		var halted *breaker.HaltedError
		if errors.As(err, &halted) {
			e.riskStats.CircuitBreakerHits++
			e.signals = append(e.signals, types.SignalEvent{
				Timestamp: bar.Timestamp,
				Action:    types.EventCircuitBreaker,
				Price:     bar.Close,
				Reason:    halted.Reason,
			})
		}
		return
	}

	quantity, stop := e.risk.PositionSize(e.capital, bar.Close, nil, series.Bars[:i+1])
	if quantity < 1 {
		return
	}

	buyPrice := bar.Close.Mul(decimal.NewFromFloat(1 + e.config.SlippagePct))
	cost := e.orderCost(buyPrice, quantity)

	// If the requested cost exceeds capital, recompute the maximum
	// affordable quantity instead of failing the order.
	if cost.GreaterThan(e.capital) {
		perShare := buyPrice.Mul(decimal.NewFromFloat(1 + e.config.CommissionPct))
		quantity = e.capital.Div(perShare).IntPart()
		if quantity < 1 {
			return // unaffordable: silently dropped
		}
		cost = e.orderCost(buyPrice, quantity)
	}

	order := types.Order{
		ID:        uuid.New().String(),
		Side:      types.OrderSideBuy,
		Price:     buyPrice,
		Quantity:  quantity,
		Timestamp: bar.Timestamp,
		Reason:    "strategy buy",
	}

	e.capital = e.capital.Sub(cost)
	e.position = &types.Position{
		Symbol:       series.Symbol,
		Quantity:     quantity,
		AvgPrice:     buyPrice,
		CurrentPrice: bar.Close,
		OpenedAt:     bar.Timestamp,
	}
	e.stopLoss = stop
	e.highestPrice = bar.Close
	e.entryTime = bar.Timestamp

	e.signals = append(e.signals, types.SignalEvent{
		Timestamp: bar.Timestamp,
		Action:    types.EventBuy,
		Price:     buyPrice,
		Quantity:  quantity,
	})

	e.logger.Debug("opened position",
		zap.String("order_id", order.ID),
		zap.Int64("quantity", quantity),
		zap.String("price", buyPrice.String()),
		zap.String("stop_loss", stop.String()),
	)
}

// orderCost is notional plus commission.
func (e *Engine) orderCost(price decimal.Decimal, quantity int64) decimal.Decimal {
	notional := price.Mul(decimal.NewFromInt(quantity))
	return notional.Add(notional.Mul(decimal.NewFromFloat(e.config.CommissionPct)))
}

// closePosition sells the full position at the given price, records the
// trade, and feeds the circuit breaker and risk statistics.
func (e *Engine) closePosition(price decimal.Decimal, ts time.Time, action, reason string) {
	pos := e.position

	notional := price.Mul(decimal.NewFromInt(pos.Quantity))
	commission := notional.Mul(decimal.NewFromFloat(e.config.CommissionPct))
	e.capital = e.capital.Add(notional).Sub(commission)

	pnl := price.Sub(pos.AvgPrice).Mul(decimal.NewFromInt(pos.Quantity)).Sub(commission)
	entryNotional := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Quantity))
	pnlPct := 0.0
	if !entryNotional.IsZero() {
		pnlPct, _ = pnl.Div(entryNotional).Float64()
	}
	isWin := pnl.GreaterThan(decimal.Zero)

	e.trades = append(e.trades, types.TradeRecord{
		ID:            uuid.New().String(),
		EntryTime:     e.entryTime,
		ExitTime:      ts,
		EntryPrice:    pos.AvgPrice,
		ExitPrice:     price,
		Quantity:      pos.Quantity,
		PnL:           pnl,
		PnLPct:        pnlPct * 100,
		HoldingPeriod: ts.Sub(e.entryTime),
	})
	e.signals = append(e.signals, types.SignalEvent{
		Timestamp: ts,
		Action:    action,
		Price:     price,
		Quantity:  pos.Quantity,
		Reason:    reason,
	})

	e.breaker.RecordTrade(pnl, isWin)
	e.breaker.UpdateUnrealizedPnL(decimal.Zero)
	e.risk.RecordTrade(pnlPct, isWin)

	e.position = nil
	e.stopLoss = decimal.Zero
	e.highestPrice = decimal.Zero
}

// equity is cash plus mark-to-market position value.
func (e *Engine) equity() decimal.Decimal {
	if e.position == nil {
		return e.capital
	}
	return e.capital.Add(e.position.MarketValue())
}

func (e *Engine) recordEquity(bar types.PriceBar) {
	e.equityCurve = append(e.equityCurve, types.EquityPoint{
		Timestamp: bar.Timestamp,
		Equity:    e.equity(),
		Cash:      e.capital,
	})
}

func (e *Engine) buildResult(series *types.ScoredSeries, strat strategy.Strategy, startedAt time.Time) *types.BacktestResult {
	final := e.capital
	returnPct := 0.0
	if !e.config.InitialCapital.IsZero() {
		r, _ := final.Sub(e.config.InitialCapital).Div(e.config.InitialCapital).Float64()
		returnPct = r * 100
	}

	return &types.BacktestResult{
		Symbol:         series.Symbol,
		Strategy:       strat.Name(),
		InitialCapital: e.config.InitialCapital,
		FinalCapital:   final,
		TotalReturnPct: returnPct,
		Signals:        e.signals,
		EquityCurve:    e.equityCurve,
		Trades:         e.trades,
		Performance:    e.monitor.Report(e.trades, e.equityCurve, e.config.InitialCapital),
		RiskStats:      e.riskStats,
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
	}
}
