// Package registry holds named strategies with per-regime weights and
// enable/disable flags for ensemble composition.
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/strategy"
	"github.com/aegisdesk/aegis/pkg/types"
)

// StrategyConfig is one registered strategy with its regime weights. Weights
// are a fixed-size array indexed by types.Regime, so coverage of all regimes
// is statically guaranteed.
type StrategyConfig struct {
	Name             string
	Strategy         strategy.Strategy
	DefaultWeight    float64
	PreferredRegimes []types.Regime
	Enabled          bool
	Weights          [types.NumRegimes]float64
}

// WeightedStrategy is a strategy selected for a regime with its effective
// weight.
type WeightedStrategy struct {
	Name     string
	Strategy strategy.Strategy
	Weight   float64
}

// Registry maps strategy names to their configs.
type Registry struct {
	logger  *zap.Logger
	configs map[string]*StrategyConfig
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		configs: make(map[string]*StrategyConfig),
	}
}

// Register installs a strategy with default regime weights: the full default
// weight in every preferred regime and half weight elsewhere. Registering an
// existing name replaces it.
func (r *Registry) Register(name string, strat strategy.Strategy, defaultWeight float64, preferred []types.Regime) {
	cfg := &StrategyConfig{
		Name:             name,
		Strategy:         strat,
		DefaultWeight:    defaultWeight,
		PreferredRegimes: preferred,
		Enabled:          true,
	}

	for i := range cfg.Weights {
		cfg.Weights[i] = defaultWeight / 2
	}
	for _, regime := range preferred {
		cfg.Weights[regime] = defaultWeight
	}

	r.configs[name] = cfg
	r.logger.Info("registered strategy",
		zap.String("name", name),
		zap.Float64("default_weight", defaultWeight),
	)
}

// Unregister removes the config and all its regime weights.
func (r *Registry) Unregister(name string) {
	delete(r.configs, name)
}

// SetWeight overrides one regime's weight for a strategy, clamped at zero.
func (r *Registry) SetWeight(name string, regime types.Regime, weight float64) error {
	cfg, ok := r.configs[name]
	if !ok {
		return fmt.Errorf("strategy %q not registered", name)
	}
	if weight < 0 {
		weight = 0
	}
	cfg.Weights[regime] = weight
	return nil
}

// SetEnabled flips a strategy's enable flag.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	cfg, ok := r.configs[name]
	if !ok {
		return fmt.Errorf("strategy %q not registered", name)
	}
	cfg.Enabled = enabled
	return nil
}

// Get returns a strategy config by name.
func (r *Registry) Get(name string) (*StrategyConfig, bool) {
	cfg, ok := r.configs[name]
	return cfg, ok
}

// List returns all registered names, sorted for deterministic iteration.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StrategiesForRegime returns the strategies applicable under a regime with
// their effective weights, in name order. With enabledOnly set, disabled
// strategies are filtered out.
func (r *Registry) StrategiesForRegime(regime types.Regime, enabledOnly bool) []WeightedStrategy {
	out := make([]WeightedStrategy, 0, len(r.configs))
	for _, name := range r.List() {
		cfg := r.configs[name]
		if enabledOnly && !cfg.Enabled {
			continue
		}
		out = append(out, WeightedStrategy{
			Name:     name,
			Strategy: cfg.Strategy,
			Weight:   cfg.Weights[regime],
		})
	}
	return out
}

// Reset resets every registered strategy's internal state.
func (r *Registry) Reset() {
	for _, cfg := range r.configs {
		cfg.Strategy.Reset()
	}
}
