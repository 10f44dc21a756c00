package strategy

import (
	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// TrendConfig configures the trend-following strategy.
type TrendConfig struct {
	BuyThreshold    int     // total score at or above which to buy
	SellThreshold   int     // total score at or below which to sell
	CapitalFraction float64 // fraction of capital deployed per entry
}

// DefaultTrendConfig returns the standard score thresholds.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		BuyThreshold:    2,
		SellThreshold:   -2,
		CapitalFraction: 0.9,
	}
}

// TrendFollowing trades the composite score: it buys strong golden alignments
// and sells strong death alignments.
type TrendFollowing struct {
	logger   *zap.Logger
	config   TrendConfig
	position *types.Position
}

// NewTrendFollowing creates a trend-following strategy.
func NewTrendFollowing(logger *zap.Logger, config TrendConfig) *TrendFollowing {
	return &TrendFollowing{logger: logger, config: config}
}

func (s *TrendFollowing) Name() string { return "trend_following" }

// CalculateSignal buys when the total score reaches the buy threshold with no
// open position and sells when it reaches the sell threshold with one.
func (s *TrendFollowing) CalculateSignal(series *types.ScoredSeries, index int) types.Signal {
	if index < 0 || index >= len(series.Rows) {
		return types.SignalHold
	}

	score := series.Rows[index].TotalScore
	switch {
	case score >= s.config.BuyThreshold && s.position == nil:
		return types.SignalBuy
	case score <= s.config.SellThreshold && s.position != nil:
		return types.SignalSell
	default:
		return types.SignalHold
	}
}

// CalculateQuantity deploys the configured capital fraction on BUY and the
// full held quantity on SELL.
func (s *TrendFollowing) CalculateQuantity(capital, price decimal.Decimal, signal types.Signal) int64 {
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

func (s *TrendFollowing) SetPosition(pos *types.Position) { s.position = pos }

func (s *TrendFollowing) Reset() { s.position = nil }
