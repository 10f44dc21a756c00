// Package orchestrator aggregates multiple strategies' votes into one
// ensemble decision, weighted by the current market regime. The orchestrator
// itself implements strategy.Strategy, so it drops into the backtest engine
// unchanged and ensembles can nest.
package orchestrator

import (
	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/regime"
	"github.com/aegisdesk/aegis/internal/registry"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// Config configures ensemble decision thresholds.
type Config struct {
	BuyThreshold    float64 // weighted score at or above which to buy
	SellThreshold   float64 // weighted score at or below which to sell
	MinAgreement    float64 // minimum voter support for a BUY/SELL decision
	CapitalFraction float64 // fraction of capital deployed per entry
}

// DefaultConfig returns the standard ensemble thresholds.
func DefaultConfig() Config {
	return Config{
		BuyThreshold:    0.3,
		SellThreshold:   -0.3,
		MinAgreement:    0.5,
		CapitalFraction: 0.9,
	}
}

// Orchestrator composes a strategy registry and a regime classifier.
type Orchestrator struct {
	logger     *zap.Logger
	config     Config
	registry   *registry.Registry
	classifier *regime.Classifier

	position   *types.Position
	lastSignal *types.EnsembleSignal
}

// New creates an ensemble orchestrator.
func New(logger *zap.Logger, config Config, reg *registry.Registry, classifier *regime.Classifier) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		config:     config,
		registry:   reg,
		classifier: classifier,
	}
}

func (o *Orchestrator) Name() string { return "ensemble" }

// CalculateSignal classifies the regime at the requested bar, collects every
// enabled strategy's vote with its regime weight, and thresholds the
// weight-normalized average. A decision without enough voter agreement is
// downgraded to HOLD, and decisions the engine could not execute (BUY while
// holding, SELL while flat) are suppressed.
func (o *Orchestrator) CalculateSignal(series *types.ScoredSeries, index int) types.Signal {
	regimeResult := o.classifier.ClassifyAt(series.Bars, index)

	ensemble := &types.EnsembleSignal{
		Signal:           types.SignalHold,
		Regime:           regimeResult.Regime,
		RegimeConfidence: regimeResult.Confidence,
		Votes:            make(map[string]types.Signal),
		Scores:           make(map[string]float64),
	}

	strategies := o.registry.StrategiesForRegime(regimeResult.Regime, true)

	var weightedSum, totalWeight float64
	var buyVotes, sellVotes, voters int

	for _, ws := range strategies {
		ws.Strategy.SetPosition(o.position)
		vote := ws.Strategy.CalculateSignal(series, index)

		score := 0.0
		switch {
		case vote.IsBuy():
			score = 1
			buyVotes++
		case vote.IsSell():
			score = -1
			sellVotes++
		}
		voters++

		weightedSum += score * ws.Weight
		totalWeight += ws.Weight

		ensemble.Votes[ws.Name] = vote
		ensemble.Scores[ws.Name] = score * ws.Weight
	}

	if totalWeight > 0 {
		ensemble.Score = weightedSum / totalWeight
	}

	signal := types.SignalHold
	switch {
	case ensemble.Score >= o.config.BuyThreshold:
		signal = types.SignalBuy
	case ensemble.Score <= o.config.SellThreshold:
		signal = types.SignalSell
	}

	// Agreement filter: a directional call needs enough voter support even
	// when the weighted score crossed its threshold.
	if voters > 0 {
		buyAgreement := float64(buyVotes) / float64(voters)
		sellAgreement := float64(sellVotes) / float64(voters)
		if signal == types.SignalBuy && buyAgreement < o.config.MinAgreement {
			signal = types.SignalHold
		}
		if signal == types.SignalSell && sellAgreement < o.config.MinAgreement {
			signal = types.SignalHold
		}
	}

	// Position filter: never emit an order the engine cannot execute.
	if signal == types.SignalBuy && o.position != nil {
		signal = types.SignalHold
	}
	if signal == types.SignalSell && o.position == nil {
		signal = types.SignalHold
	}

	ensemble.Signal = signal
	o.lastSignal = ensemble

	return signal
}

// DetailedSignal exposes the full ensemble diagnostics of the most recent
// CalculateSignal call without re-running the classifier.
func (o *Orchestrator) DetailedSignal() *types.EnsembleSignal {
	return o.lastSignal
}

// CalculateQuantity deploys the configured capital fraction on BUY and the
// full held quantity on SELL.
func (o *Orchestrator) CalculateQuantity(capital, price decimal.Decimal, signal types.Signal) int64 {
	switch {
	case signal.IsBuy():
		if price.IsZero() {
			return 0
		}
		budget := capital.Mul(decimal.NewFromFloat(o.config.CapitalFraction))
		return budget.Div(price).IntPart()
	case signal.IsSell() && o.position != nil:
		return o.position.Quantity
	default:
		return 0
	}
}

// SetPosition synchronizes the caller-owned position; it is propagated to
// member strategies on each CalculateSignal call.
func (o *Orchestrator) SetPosition(pos *types.Position) { o.position = pos }

// Reset clears the orchestrator and every registered strategy.
func (o *Orchestrator) Reset() {
	o.position = nil
	o.lastSignal = nil
	o.registry.Reset()
}
