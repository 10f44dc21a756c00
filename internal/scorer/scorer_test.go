package scorer_test

import (
	"math"
	"testing"
	"time"

	"github.com/aegisdesk/aegis/internal/scorer"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

func TestScoreToSignal(t *testing.T) {
	cases := []struct {
		score int
		want  types.Signal
	}{
		{3, types.SignalStrongBuy},
		{2, types.SignalStrongBuy},
		{1, types.SignalBuy},
		{0, types.SignalHold},
		{-1, types.SignalSell},
		{-2, types.SignalStrongSell},
		{-3, types.SignalStrongSell},
	}

	for _, c := range cases {
		if got := scorer.ScoreToSignal(c.score); got != c.want {
			t.Errorf("ScoreToSignal(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestMAScore(t *testing.T) {
	cases := []struct {
		name                  string
		short, mid, long      float64
		want                  int
	}{
		{"golden alignment", 110, 105, 100, 1},
		{"death alignment", 90, 95, 100, -1},
		{"mixed", 105, 100, 103, 0},
		{"equal", 100, 100, 100, 0},
		{"undefined short", math.NaN(), 100, 100, 0},
		{"undefined long", 110, 105, math.NaN(), 0},
	}

	for _, c := range cases {
		if got := scorer.MAScore(c.short, c.mid, c.long); got != c.want {
			t.Errorf("%s: MAScore = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestVWAPScore(t *testing.T) {
	if got := scorer.VWAPScore(101, 100); got != 1 {
		t.Errorf("close above VWAP = %d, want 1", got)
	}
	if got := scorer.VWAPScore(99, 100); got != -1 {
		t.Errorf("close below VWAP = %d, want -1", got)
	}
	if got := scorer.VWAPScore(100, 100); got != -1 {
		t.Errorf("close equal to VWAP = %d, want -1", got)
	}
}

func TestRSIScore(t *testing.T) {
	cases := []struct {
		rsi  float64
		want int
	}{
		{25, 1},
		{30, 0},
		{50, 0},
		{70, 0},
		{75, -1},
	}

	for _, c := range cases {
		if got := scorer.RSIScore(c.rsi); got != c.want {
			t.Errorf("RSIScore(%f) = %d, want %d", c.rsi, got, c.want)
		}
	}
}

func TestBuildRowsBounds(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.PriceBar, 120)
	price := 100.0
	for i := range bars {
		price += math.Sin(float64(i) / 7)
		bars[i] = types.PriceBar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      decimal.NewFromFloat(price),
			High:      decimal.NewFromFloat(price + 0.5),
			Low:       decimal.NewFromFloat(price - 0.5),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromInt(1000),
		}
	}

	rows := scorer.BuildRows(bars)
	if len(rows) != len(bars) {
		t.Fatalf("got %d rows for %d bars", len(rows), len(bars))
	}

	for i, row := range rows {
		if row.TotalScore < -3 || row.TotalScore > 3 {
			t.Errorf("row %d: total score %d outside [-3, 3]", i, row.TotalScore)
		}
		if sum := row.MAScore + row.VWAPScore + row.RSIScore; sum != row.TotalScore {
			t.Errorf("row %d: sub-scores sum to %d but total is %d", i, sum, row.TotalScore)
		}
		if row.Signal != scorer.ScoreToSignal(row.TotalScore) {
			t.Errorf("row %d: signal %s does not match score %d", i, row.Signal, row.TotalScore)
		}
	}
}

func TestBuildRowsFlatSeries(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.PriceBar, 70)
	for i := range bars {
		bars[i] = types.PriceBar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      decimal.NewFromInt(10000),
			High:      decimal.NewFromInt(10000),
			Low:       decimal.NewFromInt(10000),
			Close:     decimal.NewFromInt(10000),
			Volume:    decimal.NewFromInt(1000),
		}
	}

	rows := scorer.BuildRows(bars)
	for i, row := range rows {
		if row.RSI != 50 {
			t.Errorf("row %d: RSI = %f on unchanged prices, want 50", i, row.RSI)
		}
		if row.RSIScore != 0 {
			t.Errorf("row %d: RSI score %d on unchanged prices, want 0", i, row.RSIScore)
		}
		if row.TotalScore <= -2 || row.TotalScore >= 2 {
			t.Errorf("row %d: total score %d reached a strong signal on unchanged prices", i, row.TotalScore)
		}
	}
}

func TestNewSeries(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.PriceBar, 10)
	for i := range bars {
		bars[i] = types.PriceBar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      decimal.NewFromInt(100),
			High:      decimal.NewFromInt(101),
			Low:       decimal.NewFromInt(99),
			Close:     decimal.NewFromInt(100),
			Volume:    decimal.NewFromInt(500),
		}
	}

	series := scorer.NewSeries("TEST", bars)
	if series.Symbol != "TEST" {
		t.Errorf("symbol = %s, want TEST", series.Symbol)
	}
	if len(series.Rows) != len(series.Bars) {
		t.Errorf("rows/bars mismatch: %d vs %d", len(series.Rows), len(series.Bars))
	}
}
