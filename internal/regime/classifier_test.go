package regime_test

import (
	"testing"
	"time"

	"github.com/aegisdesk/aegis/internal/regime"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func barsFromCloses(closes []float64) []types.PriceBar {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = types.PriceBar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      decimal.NewFromFloat(c),
			High:      decimal.NewFromFloat(c + 0.5),
			Low:       decimal.NewFromFloat(c - 0.5),
			Close:     decimal.NewFromFloat(c),
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return bars
}

func TestInsufficientHistoryIsSideway(t *testing.T) {
	c := regime.NewClassifier(zap.NewNop(), regime.DefaultConfig())
	bars := barsFromCloses(make([]float64, 30))

	result := c.ClassifyAt(bars, 29)
	if result.Regime != types.RegimeSideway {
		t.Errorf("30 bars: %s, want SIDEWAY", result.Regime)
	}
	if result.Confidence != 0.5 {
		t.Errorf("confidence = %f, want base 0.5", result.Confidence)
	}
}

func TestBullClassification(t *testing.T) {
	c := regime.NewClassifier(zap.NewNop(), regime.DefaultConfig())

	// Steady rally from 9000 to 11000 over 100 bars: the 20-bar average sits
	// well above the 60-bar average.
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 9000 + 20*float64(i)
	}
	bars := barsFromCloses(closes)

	result := c.Classify(bars)
	if result.Regime != types.RegimeBull {
		t.Fatalf("rally: %s, want BULL", result.Regime)
	}
	if result.Confidence <= 0.5 {
		t.Errorf("confidence = %f, want > 0.5 on a strong trend", result.Confidence)
	}
	if result.Confidence > 1 {
		t.Errorf("confidence = %f, exceeds 1", result.Confidence)
	}
	if result.TrendStrength <= 1 {
		t.Errorf("trend strength = %f, want > 1 past the threshold", result.TrendStrength)
	}
}

func TestBearClassification(t *testing.T) {
	c := regime.NewClassifier(zap.NewNop(), regime.DefaultConfig())

	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 11000 - 20*float64(i)
	}
	bars := barsFromCloses(closes)

	result := c.Classify(bars)
	if result.Regime != types.RegimeBear {
		t.Fatalf("decline: %s, want BEAR", result.Regime)
	}
	if result.Confidence <= 0.5 {
		t.Errorf("confidence = %f, want > 0.5", result.Confidence)
	}
}

func TestSidewayQuietConfidence(t *testing.T) {
	c := regime.NewClassifier(zap.NewNop(), regime.DefaultConfig())

	// Flat at 10000 with a tiny bar range: low volatility range-bound market.
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 10000
	}
	bars := barsFromCloses(closes)

	result := c.Classify(bars)
	if result.Regime != types.RegimeSideway {
		t.Fatalf("flat: %s, want SIDEWAY", result.Regime)
	}
	if result.Confidence != 0.7 {
		t.Errorf("quiet range confidence = %f, want 0.7", result.Confidence)
	}
}

func TestSeriesClassifiesEveryBar(t *testing.T) {
	c := regime.NewClassifier(zap.NewNop(), regime.DefaultConfig())

	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := barsFromCloses(closes)

	results := c.Series(bars)
	if len(results) != len(bars) {
		t.Fatalf("got %d results for %d bars", len(results), len(bars))
	}

	// Early bars lack the long average and default to SIDEWAY.
	if results[10].Regime != types.RegimeSideway {
		t.Errorf("bar 10: %s, want SIDEWAY during warmup", results[10].Regime)
	}
}
