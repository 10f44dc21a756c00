package registry_test

import (
	"testing"

	"github.com/aegisdesk/aegis/internal/registry"
	"github.com/aegisdesk/aegis/internal/strategy"
	"github.com/aegisdesk/aegis/pkg/types"
	"go.uber.org/zap"
)

func newRegistry() *registry.Registry {
	logger := zap.NewNop()
	r := registry.New(logger)
	r.Register("trend",
		strategy.NewTrendFollowing(logger, strategy.DefaultTrendConfig()),
		1.0, []types.Regime{types.RegimeBull, types.RegimeBear})
	r.Register("meanrev",
		strategy.NewMeanReversion(logger, strategy.DefaultMeanReversionConfig()),
		1.0, []types.Regime{types.RegimeSideway})
	return r
}

func TestRegisterDefaultWeights(t *testing.T) {
	r := newRegistry()

	cfg, ok := r.Get("trend")
	if !ok {
		t.Fatal("trend not registered")
	}

	if cfg.Weights[types.RegimeBull] != 1.0 {
		t.Errorf("trend BULL weight = %f, want full 1.0", cfg.Weights[types.RegimeBull])
	}
	if cfg.Weights[types.RegimeSideway] != 0.5 {
		t.Errorf("trend SIDEWAY weight = %f, want half 0.5", cfg.Weights[types.RegimeSideway])
	}
	if !cfg.Enabled {
		t.Error("newly registered strategy not enabled")
	}
}

func TestSetWeight(t *testing.T) {
	r := newRegistry()

	if err := r.SetWeight("trend", types.RegimeSideway, 0.8); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	cfg, _ := r.Get("trend")
	if cfg.Weights[types.RegimeSideway] != 0.8 {
		t.Errorf("weight = %f, want 0.8", cfg.Weights[types.RegimeSideway])
	}

	// Negative weights clamp to zero.
	if err := r.SetWeight("trend", types.RegimeBull, -1); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	cfg, _ = r.Get("trend")
	if cfg.Weights[types.RegimeBull] != 0 {
		t.Errorf("negative weight = %f, want clamp to 0", cfg.Weights[types.RegimeBull])
	}

	if err := r.SetWeight("missing", types.RegimeBull, 1); err == nil {
		t.Error("SetWeight on unknown name: want error")
	}
}

func TestStrategiesForRegime(t *testing.T) {
	r := newRegistry()

	selected := r.StrategiesForRegime(types.RegimeSideway, true)
	if len(selected) != 2 {
		t.Fatalf("got %d strategies, want 2", len(selected))
	}

	// Name-sorted order: meanrev before trend.
	if selected[0].Name != "meanrev" || selected[1].Name != "trend" {
		t.Errorf("order = %s, %s; want meanrev, trend", selected[0].Name, selected[1].Name)
	}
	if selected[0].Weight != 1.0 {
		t.Errorf("meanrev SIDEWAY weight = %f, want 1.0", selected[0].Weight)
	}
	if selected[1].Weight != 0.5 {
		t.Errorf("trend SIDEWAY weight = %f, want 0.5", selected[1].Weight)
	}
}

func TestEnabledFilter(t *testing.T) {
	r := newRegistry()

	if err := r.SetEnabled("trend", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	selected := r.StrategiesForRegime(types.RegimeBull, true)
	if len(selected) != 1 || selected[0].Name != "meanrev" {
		t.Fatalf("enabled-only selection = %v, want just meanrev", selected)
	}

	// Without the filter the disabled strategy still appears.
	all := r.StrategiesForRegime(types.RegimeBull, false)
	if len(all) != 2 {
		t.Errorf("unfiltered selection has %d strategies, want 2", len(all))
	}
}

func TestUnregister(t *testing.T) {
	r := newRegistry()
	r.Unregister("trend")

	if _, ok := r.Get("trend"); ok {
		t.Error("trend still present after Unregister")
	}
	if names := r.List(); len(names) != 1 {
		t.Errorf("List = %v, want single entry", names)
	}
}
