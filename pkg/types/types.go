// Package types provides shared type definitions for the AEGIS quant core.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a discrete trading signal derived from the composite score.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// IsBuy reports whether the signal expresses buy intent.
func (s Signal) IsBuy() bool {
	return s == SignalBuy || s == SignalStrongBuy
}

// IsSell reports whether the signal expresses sell intent.
func (s Signal) IsSell() bool {
	return s == SignalSell || s == SignalStrongSell
}

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Regime is a coarse market trend classification. The integer values index
// per-regime weight arrays, so every regime is covered statically.
type Regime int

const (
	RegimeBull Regime = iota
	RegimeBear
	RegimeSideway

	NumRegimes = 3
)

func (r Regime) String() string {
	switch r {
	case RegimeBull:
		return "BULL"
	case RegimeBear:
		return "BEAR"
	default:
		return "SIDEWAY"
	}
}

// PriceBar is a single OHLCV record. Bars in a series must be strictly
// time-ascending with no duplicate timestamps, and are immutable once ingested.
type PriceBar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// IndicatorRow holds the derived indicator values and scores for one bar.
// Indicator values with insufficient lookback are NaN; RSI is filled with a
// neutral 50 instead.
type IndicatorRow struct {
	VWAP    float64 `json:"vwap"`
	RSI     float64 `json:"rsi"`
	MAShort float64 `json:"ma_short"`
	MAMid   float64 `json:"ma_mid"`
	MALong  float64 `json:"ma_long"`

	MAScore    int    `json:"ma_score"`
	VWAPScore  int    `json:"vwap_score"`
	RSIScore   int    `json:"rsi_score"`
	TotalScore int    `json:"total_score"`
	Signal     Signal `json:"signal"`
}

// ScoredSeries pairs a bar sequence with its per-bar indicator rows. The
// backtest engine requires Rows to be populated (total score present) and
// fails fast otherwise.
type ScoredSeries struct {
	Symbol string         `json:"symbol"`
	Bars   []PriceBar     `json:"bars"`
	Rows   []IndicatorRow `json:"rows"`
}

// Len returns the number of bars in the series.
func (s *ScoredSeries) Len() int { return len(s.Bars) }

// Position is the single open position owned by the backtest engine during a run.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	OpenedAt     time.Time       `json:"opened_at"`
}

// UnrealizedPnL returns (current - avg) * quantity.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.AvgPrice).Mul(decimal.NewFromInt(p.Quantity))
}

// MarketValue returns quantity * current price.
func (p *Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Order is created transiently when a signal is executed and never mutated.
type Order struct {
	ID        string          `json:"id"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    string          `json:"reason"`
}

// TradeRecord is appended to the engine's trade log when a position closes.
type TradeRecord struct {
	ID            string          `json:"id"`
	EntryTime     time.Time       `json:"entry_time"`
	ExitTime      time.Time       `json:"exit_time"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Quantity      int64           `json:"quantity"`
	PnL           decimal.Decimal `json:"pnl"`
	PnLPct        float64         `json:"pnl_pct"`
	HoldingPeriod time.Duration   `json:"holding_period"`
}

// SignalEvent records an executed or blocked action during a backtest run.
type SignalEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"` // BUY, SELL, STOP_LOSS, FORCE_SELL, CIRCUIT_BREAKER
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Reason    string          `json:"reason,omitempty"`
}

// Signal event actions.
const (
	EventBuy            = "BUY"
	EventSell           = "SELL"
	EventStopLoss       = "STOP_LOSS"
	EventForceSell      = "FORCE_SELL"
	EventCircuitBreaker = "CIRCUIT_BREAKER"
)

// EquityPoint is a point on the equity curve (cash + mark-to-market value).
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
	Cash      decimal.Decimal `json:"cash"`
}

// DailyStats is the circuit breaker's per-day accounting.
type DailyStats struct {
	Date            time.Time       `json:"date"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	CurrentCapital  decimal.Decimal `json:"current_capital"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL   decimal.Decimal `json:"unrealized_pnl"`
	TradeCount      int             `json:"trade_count"`
	WinCount        int             `json:"win_count"`
	LossCount       int             `json:"loss_count"`
}

// RegimeResult is a stateless classification of the market at one bar.
type RegimeResult struct {
	Regime        Regime  `json:"regime"`
	Confidence    float64 `json:"confidence"`
	MAShort       float64 `json:"ma_short"`
	MALong        float64 `json:"ma_long"`
	Volatility    float64 `json:"volatility"`
	TrendStrength float64 `json:"trend_strength"`
}

// EnsembleSignal is the orchestrator's aggregated decision with diagnostics.
type EnsembleSignal struct {
	Signal           Signal             `json:"signal"`
	Score            float64            `json:"score"` // weighted vote average in [-1, 1]
	Regime           Regime             `json:"regime"`
	RegimeConfidence float64            `json:"regime_confidence"`
	Votes            map[string]Signal  `json:"votes"`
	Scores           map[string]float64 `json:"scores"`
}

// PerformanceReport summarizes a backtest's trade log and equity curve.
type PerformanceReport struct {
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        float64         `json:"win_rate"` // percent
	ProfitFactor   float64         `json:"profit_factor"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	AvgWin         decimal.Decimal `json:"avg_win"`
	AvgLoss        decimal.Decimal `json:"avg_loss"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
}

// RiskStats counts risk interventions during a run.
type RiskStats struct {
	StopLossHits       int `json:"stop_loss_hits"`
	CircuitBreakerHits int `json:"circuit_breaker_hits"`
}

// BacktestResult is the engine's output contract, consumed by external
// reporting and comparison tooling.
type BacktestResult struct {
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	InitialCapital decimal.Decimal    `json:"initial_capital"`
	FinalCapital   decimal.Decimal    `json:"final_capital"`
	TotalReturnPct float64            `json:"total_return_pct"`
	Signals        []SignalEvent      `json:"signals"`
	EquityCurve    []EquityPoint      `json:"equity_curve"`
	Trades         []TradeRecord      `json:"trades"`
	Performance    *PerformanceReport `json:"performance_report"` // nil when no trades
	RiskStats      RiskStats          `json:"risk_stats"`
	StartedAt      time.Time          `json:"started_at"`
	CompletedAt    time.Time          `json:"completed_at"`
}

// BacktestProgress is a snapshot of a running backtest, streamed to clients.
type BacktestProgress struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"` // running, completed, failed
	BarsProcessed int             `json:"bars_processed"`
	TotalBars     int             `json:"total_bars"`
	CurrentDate   time.Time       `json:"current_date"`
	Trades        int             `json:"trades"`
	Equity        decimal.Decimal `json:"equity"`
}
