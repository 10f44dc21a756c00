package indicator_test

import (
	"math"
	"testing"
	"time"

	"github.com/aegisdesk/aegis/internal/indicator"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
)

// minuteBars builds one bar per minute with the given closes. High/low are
// offset around the close and volume is constant.
func minuteBars(closes []float64) []types.PriceBar {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = types.PriceBar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      decimal.NewFromFloat(c),
			High:      decimal.NewFromFloat(c + 1),
			Low:       decimal.NewFromFloat(c - 1),
			Close:     decimal.NewFromFloat(c),
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return bars
}

func TestRSIBounds(t *testing.T) {
	closes := make([]float64, 100)
	price := 100.0
	for i := range closes {
		// Alternate gains and losses of varying size.
		if i%3 == 0 {
			price += float64(i%7) + 0.5
		} else {
			price -= float64(i%5) + 0.25
		}
		closes[i] = price
	}

	rsi := indicator.RSI(minuteBars(closes), 14)
	for i, v := range rsi {
		if v < 0 || v > 100 {
			t.Errorf("RSI[%d] = %f, outside [0, 100]", i, v)
		}
	}
}

func TestRSINeutralFill(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi := indicator.RSI(minuteBars(closes), 14)
	for i := 0; i < 14; i++ {
		if rsi[i] != 50 {
			t.Errorf("RSI[%d] = %f, want neutral 50 during warmup", i, rsi[i])
		}
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi := indicator.RSI(minuteBars(closes), 14)
	if rsi[len(rsi)-1] != 100 {
		t.Errorf("RSI with no losses = %f, want 100", rsi[len(rsi)-1])
	}
}

func TestRSIFlatSeriesStaysNeutral(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}

	rsi := indicator.RSI(minuteBars(closes), 14)
	for i, v := range rsi {
		if v != 50 {
			t.Errorf("RSI[%d] = %f on unchanged prices, want 50", i, v)
		}
	}
}

func TestVWAPResetsPerDay(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)

	bar := func(ts time.Time, price, vol float64) types.PriceBar {
		return types.PriceBar{
			Timestamp: ts,
			Open:      decimal.NewFromFloat(price),
			High:      decimal.NewFromFloat(price),
			Low:       decimal.NewFromFloat(price),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromFloat(vol),
		}
	}

	bars := []types.PriceBar{
		bar(day1, 100, 1000),
		bar(day1.Add(time.Minute), 200, 1000),
		bar(day2, 50, 1000),
	}

	vwap := indicator.VWAP(bars)

	if vwap[0] != 100 {
		t.Errorf("VWAP[0] = %f, want 100", vwap[0])
	}
	if vwap[1] != 150 {
		t.Errorf("VWAP[1] = %f, want 150 (cumulative within day)", vwap[1])
	}
	// Day change: cumulative sums reset, so the new session starts fresh.
	if vwap[2] != 50 {
		t.Errorf("VWAP[2] = %f, want 50 after session reset", vwap[2])
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	bars := minuteBars([]float64{100, 101})
	for i := range bars {
		bars[i].Volume = decimal.Zero
	}

	vwap := indicator.VWAP(bars)
	for i, v := range vwap {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("VWAP[%d] = %f with zero volume, want typical price fallback", i, v)
		}
	}
}

func TestSMAWarmupAndValue(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	sma := indicator.SMA(minuteBars(closes), 3)

	if !math.IsNaN(sma[0]) || !math.IsNaN(sma[1]) {
		t.Error("SMA should be NaN before the period is satisfied")
	}
	if sma[2] != 2 {
		t.Errorf("SMA[2] = %f, want 2", sma[2])
	}
	if sma[5] != 5 {
		t.Errorf("SMA[5] = %f, want 5", sma[5])
	}
}

func TestTrueRangeUsesPrevClose(t *testing.T) {
	bars := minuteBars([]float64{100, 100})
	// Gap down: low of bar 1 well below the previous close.
	bars[1].High = decimal.NewFromFloat(95)
	bars[1].Low = decimal.NewFromFloat(90)
	bars[1].Close = decimal.NewFromFloat(92)

	tr := indicator.TrueRange(bars)
	if tr[1] != 10 {
		t.Errorf("TrueRange[1] = %f, want 10 (|low - prevClose|)", tr[1])
	}
}

func TestATRAtShortWindow(t *testing.T) {
	bars := minuteBars([]float64{100, 101, 102})
	if v := indicator.ATRAt(bars, 14); !math.IsNaN(v) {
		t.Errorf("ATRAt on short window = %f, want NaN", v)
	}
	if v := indicator.ATRAt(nil, 14); !math.IsNaN(v) {
		t.Errorf("ATRAt on empty window = %f, want NaN", v)
	}
}

func TestBollingerBands(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 // flat series: zero deviation
	}

	upper, middle, lower := indicator.Bollinger(minuteBars(closes), 20, 2)

	if !math.IsNaN(upper[10]) || !math.IsNaN(lower[10]) {
		t.Error("bands should be NaN before the period is satisfied")
	}
	if upper[25] != 100 || middle[25] != 100 || lower[25] != 100 {
		t.Errorf("flat series bands = %f/%f/%f, want all 100",
			upper[25], middle[25], lower[25])
	}
}

func TestBollingerSymmetry(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}

	upper, middle, lower := indicator.Bollinger(minuteBars(closes), 20, 2)
	for i := 19; i < len(closes); i++ {
		up := upper[i] - middle[i]
		down := middle[i] - lower[i]
		if math.Abs(up-down) > 1e-9 {
			t.Errorf("bands asymmetric at %d: +%f vs -%f", i, up, down)
		}
	}
}

func TestSlope(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5}

	if got := indicator.Slope(values, 5, 5); got != 1 {
		t.Errorf("Slope = %f, want 1", got)
	}
	if got := indicator.Slope(values, 3, 5); !math.IsNaN(got) {
		t.Errorf("Slope with short lookback = %f, want NaN", got)
	}
	if got := indicator.Slope([]float64{math.NaN(), 1, 2}, 2, 2); !math.IsNaN(got) {
		t.Errorf("Slope over NaN endpoint = %f, want NaN", got)
	}
}
