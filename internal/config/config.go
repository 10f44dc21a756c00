// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/aegisdesk/aegis/internal/backtest"
	"github.com/aegisdesk/aegis/internal/breaker"
	"github.com/aegisdesk/aegis/internal/orchestrator"
	"github.com/aegisdesk/aegis/internal/regime"
	"github.com/aegisdesk/aegis/internal/risk"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Regime   RegimeConfig   `mapstructure:"regime"`
	Ensemble EnsembleConfig `mapstructure:"ensemble"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DataConfig points at the CSV bar files loaded on startup. Each entry in
// Symbols maps a symbol name to its file path.
type DataConfig struct {
	Symbols map[string]string `mapstructure:"symbols"`
}

type BacktestConfig struct {
	InitialCapital  float64 `mapstructure:"initial_capital"`
	SlippagePct     float64 `mapstructure:"slippage_pct"`
	CommissionPct   float64 `mapstructure:"commission_pct"`
	UseTrailingStop bool    `mapstructure:"use_trailing_stop"`
	BarsPerYear     float64 `mapstructure:"bars_per_year"`
}

type RiskConfig struct {
	ATRMultiplier         float64 `mapstructure:"atr_multiplier"`
	FixedStopLossPct      float64 `mapstructure:"fixed_stop_loss_pct"`
	RiskPerTradePct       float64 `mapstructure:"risk_per_trade_pct"`
	MaxCapitalPerTradePct float64 `mapstructure:"max_capital_per_trade_pct"`
	KellyEnabled          bool    `mapstructure:"kelly_enabled"`
	KellyFraction         float64 `mapstructure:"kelly_fraction"`
}

type BreakerConfig struct {
	MaxDailyLossPct float64 `mapstructure:"max_daily_loss_pct"`
	MaxTradesPerDay int     `mapstructure:"max_trades_per_day"`
}

type RegimeConfig struct {
	TrendThreshold  float64 `mapstructure:"trend_threshold"`
	LowVolThreshold float64 `mapstructure:"low_vol_threshold"`
}

type EnsembleConfig struct {
	BuyThreshold  float64 `mapstructure:"buy_threshold"`
	SellThreshold float64 `mapstructure:"sell_threshold"`
	MinAgreement  float64 `mapstructure:"min_agreement"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file. Environment variables override file
// values (SERVER_PORT overrides server.port), and ${VAR} string values are
// expanded from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config mirroring the component package defaults.
func Defaults() *Config {
	bt := backtest.DefaultConfig()
	rk := risk.DefaultConfig()
	br := breaker.DefaultConfig()
	rg := regime.DefaultConfig()
	en := orchestrator.DefaultConfig()
	pf := backtest.DefaultPerformanceConfig()

	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info"},
		Backtest: BacktestConfig{
			InitialCapital:  bt.InitialCapital.InexactFloat64(),
			SlippagePct:     bt.SlippagePct,
			CommissionPct:   bt.CommissionPct,
			UseTrailingStop: bt.UseTrailingStop,
			BarsPerYear:     pf.BarsPerYear,
		},
		Risk: RiskConfig{
			ATRMultiplier:         rk.ATRMultiplier,
			FixedStopLossPct:      rk.FixedStopLossPct,
			RiskPerTradePct:       rk.RiskPerTradePct,
			MaxCapitalPerTradePct: rk.MaxCapitalPerTradePct,
			KellyEnabled:          rk.KellyEnabled,
			KellyFraction:         rk.KellyFraction,
		},
		Breaker: BreakerConfig{
			MaxDailyLossPct: br.MaxDailyLossPct,
			MaxTradesPerDay: br.MaxTradesPerDay,
		},
		Regime: RegimeConfig{
			TrendThreshold:  rg.TrendThreshold,
			LowVolThreshold: rg.LowVolThreshold,
		},
		Ensemble: EnsembleConfig{
			BuyThreshold:  en.BuyThreshold,
			SellThreshold: en.SellThreshold,
			MinAgreement:  en.MinAgreement,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive, got %f", c.Backtest.InitialCapital)
	}
	if c.Breaker.MaxDailyLossPct <= 0 || c.Breaker.MaxDailyLossPct >= 1 {
		return fmt.Errorf("breaker.max_daily_loss_pct must be in (0, 1), got %f", c.Breaker.MaxDailyLossPct)
	}
	if c.Ensemble.MinAgreement < 0 || c.Ensemble.MinAgreement > 1 {
		return fmt.Errorf("ensemble.min_agreement must be between 0 and 1, got %f", c.Ensemble.MinAgreement)
	}
	return nil
}

// EngineConfig builds the backtest engine configuration from the loaded
// settings, leaving unset component knobs at their defaults.
func (c *Config) EngineConfig() backtest.Config {
	bt := backtest.DefaultConfig()
	bt.InitialCapital = decimal.NewFromFloat(c.Backtest.InitialCapital)
	bt.SlippagePct = c.Backtest.SlippagePct
	bt.CommissionPct = c.Backtest.CommissionPct
	bt.UseTrailingStop = c.Backtest.UseTrailingStop
	bt.Performance.BarsPerYear = c.Backtest.BarsPerYear

	bt.Risk.ATRMultiplier = c.Risk.ATRMultiplier
	bt.Risk.FixedStopLossPct = c.Risk.FixedStopLossPct
	bt.Risk.RiskPerTradePct = c.Risk.RiskPerTradePct
	bt.Risk.MaxCapitalPerTradePct = c.Risk.MaxCapitalPerTradePct
	bt.Risk.KellyEnabled = c.Risk.KellyEnabled
	bt.Risk.KellyFraction = c.Risk.KellyFraction

	bt.Breaker.MaxDailyLossPct = c.Breaker.MaxDailyLossPct
	bt.Breaker.MaxTradesPerDay = c.Breaker.MaxTradesPerDay
	return bt
}

// ClassifierConfig builds the regime classifier configuration.
func (c *Config) ClassifierConfig() regime.Config {
	rg := regime.DefaultConfig()
	rg.TrendThreshold = c.Regime.TrendThreshold
	rg.LowVolThreshold = c.Regime.LowVolThreshold
	return rg
}

// EnsembleEngineConfig builds the orchestrator configuration.
func (c *Config) EnsembleEngineConfig() orchestrator.Config {
	en := orchestrator.DefaultConfig()
	en.BuyThreshold = c.Ensemble.BuyThreshold
	en.SellThreshold = c.Ensemble.SellThreshold
	en.MinAgreement = c.Ensemble.MinAgreement
	return en
}
