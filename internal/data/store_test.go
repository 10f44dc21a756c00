package data_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aegisdesk/aegis/internal/data"
	"github.com/aegisdesk/aegis/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func validBars(n int) []types.PriceBar {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.PriceBar, n)
	for i := range bars {
		bars[i] = types.PriceBar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      decimal.NewFromInt(100),
			High:      decimal.NewFromInt(101),
			Low:       decimal.NewFromInt(99),
			Close:     decimal.NewFromInt(100),
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return bars
}

func TestValidateBars(t *testing.T) {
	if err := data.ValidateBars(validBars(5)); err != nil {
		t.Errorf("valid bars rejected: %v", err)
	}

	if err := data.ValidateBars(nil); err == nil {
		t.Error("empty sequence accepted")
	}

	dup := validBars(3)
	dup[2].Timestamp = dup[1].Timestamp
	if err := data.ValidateBars(dup); err == nil {
		t.Error("duplicate timestamp accepted")
	}

	backwards := validBars(3)
	backwards[2].Timestamp = backwards[0].Timestamp.Add(-time.Minute)
	if err := data.ValidateBars(backwards); err == nil {
		t.Error("descending timestamp accepted")
	}
}

func TestStorePutGet(t *testing.T) {
	store := data.NewStore(zap.NewNop())

	bars := validBars(10)
	if err := store.Put("TEST", bars); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := store.Get("TEST")
	if !ok {
		t.Fatal("stored symbol not found")
	}
	if len(got) != 10 {
		t.Errorf("got %d bars, want 10", len(got))
	}

	// Mutating the returned slice must not affect the store.
	got[0].Close = decimal.NewFromInt(999)
	again, _ := store.Get("TEST")
	if !again[0].Close.Equal(decimal.NewFromInt(100)) {
		t.Error("store returned a shared slice; mutation leaked")
	}

	if _, ok := store.Get("MISSING"); ok {
		t.Error("unknown symbol reported as present")
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	store := data.NewStore(zap.NewNop())

	bad := validBars(3)
	bad[1].Timestamp = bad[0].Timestamp
	if err := store.Put("BAD", bad); err == nil {
		t.Error("invalid series accepted")
	}
	if _, ok := store.Get("BAD"); ok {
		t.Error("rejected series still stored")
	}
}

func TestReadBarsCSV(t *testing.T) {
	input := `timestamp,open,high,low,close,volume
2024-03-01T09:30:00Z,100,101,99,100.5,1200
2024-03-01T09:31:00Z,100.5,102,100,101.5,900
`

	bars, err := data.ReadBarsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadBarsCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Close.Equal(decimal.NewFromFloat(100.5)) {
		t.Errorf("close = %s, want 100.5", bars[0].Close)
	}
	if bars[1].Timestamp.Minute() != 31 {
		t.Errorf("timestamp = %s, want 09:31", bars[1].Timestamp)
	}
}

func TestReadBarsCSVErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"header only", "timestamp,open,high,low,close,volume\n"},
		{"bad timestamp", "timestamp,open,high,low,close,volume\nnot-a-time,1,1,1,1,1\n"},
		{"bad number", "timestamp,open,high,low,close,volume\n2024-03-01T09:30:00Z,1,1,1,abc,1\n"},
		{"missing column", "timestamp,open,high,low,close,volume\n2024-03-01T09:30:00Z,1,1,1,1\n"},
		{"unsorted", "timestamp,open,high,low,close,volume\n" +
			"2024-03-01T09:31:00Z,1,1,1,1,1\n" +
			"2024-03-01T09:30:00Z,1,1,1,1,1\n"},
	}

	for _, c := range cases {
		if _, err := data.ReadBarsCSV(strings.NewReader(c.input)); err == nil {
			t.Errorf("%s: accepted, want error", c.name)
		}
	}
}
