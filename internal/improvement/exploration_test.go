package improvement

import (
	"fmt"
	"testing"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
)

// plantConfig is a 10 x 100 kW plant with thresholds at 500 and 900 kW
func plantConfig(t *testing.T, series string, extra string) *config.SimulationConfig {
	t.Helper()
	cfg, err := config.ParseConfigYAMLString(fmt.Sprintf(`
timestep: 1h
ed_unit:
  power_single_ed_w: 100000
  number_ed_min: 1
  number_ed_max: 10
%s
seawater: {ph: 8.1, alkalinity_mol_per_kg: 0.0023, dic_mol_per_kg: 0.0021, salinity_psu: 35, temperature_c: 15}
policy:
  partial_threshold_kw: 500
  full_threshold_kw: 900
simulator:
  capture_kg_per_kwh: 0.1
power:
  series_kw: %s
`, extra, series))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

type move struct {
	partial, full float64
	units         int
	storeHours    float64
}

func moves(cfgs []*config.SimulationConfig) map[move]bool {
	out := make(map[move]bool, len(cfgs))
	for _, c := range cfgs {
		partial, full, _ := c.Policy.Thresholds(c.EDUnit)
		out[move{partial, full, c.EDUnit.NumberEDMax, c.EDUnit.StoreHours}] = true
	}
	return out
}

func TestDefaultExplorerNeighbors(t *testing.T) {
	base := plantConfig(t, "[600]", "")
	neighbors := NewDefaultExplorer().GenerateNeighbors(base, 1)

	got := moves(neighbors)
	want := []move{
		{400, 900, 10, 0},
		{600, 900, 10, 0},
		{500, 800, 10, 0},
		{500, 1000, 10, 0},
		{500, 900, 9, 0},
		{500, 900, 11, 0},
	}
	if len(neighbors) != len(want) {
		t.Fatalf("expected %d neighbors, got %d: %v", len(want), len(neighbors), got)
	}
	for _, m := range want {
		if !got[m] {
			t.Errorf("missing neighbor %+v in %v", m, got)
		}
	}

	// base is untouched
	if p, f, _ := base.Policy.Thresholds(base.EDUnit); p != 500 || f != 900 || base.EDUnit.NumberEDMax != 10 {
		t.Errorf("base config was modified")
	}
	for _, n := range neighbors {
		if n.Steps() != 1 {
			t.Errorf("neighbor lost the power series")
		}
	}
}

func TestDefaultExplorerDropsInvalid(t *testing.T) {
	// full 900 on 9 stacks sits at capacity; 8 stacks would not be offered
	base := plantConfig(t, "[600]", "")
	base.EDUnit.NumberEDMax = 9

	got := moves(NewDefaultExplorer().WithMaxUnits(9).GenerateNeighbors(base, 1))
	if got[move{500, 1000, 9, 0}] {
		t.Errorf("full threshold above capacity must be dropped")
	}
	if got[move{500, 900, 10, 0}] {
		t.Errorf("stack count above max units must be dropped")
	}
	if got[move{500, 900, 8, 0}] {
		t.Errorf("full threshold above 8 stack capacity must be dropped")
	}
	if !got[move{500, 800, 9, 0}] {
		t.Errorf("expected lowered full threshold, got %v", got)
	}
}

func TestDefaultExplorerStepSizeAndStorage(t *testing.T) {
	base := plantConfig(t, "[600]", "  use_storage_tanks: true\n  store_hours: 2")
	explorer := NewDefaultExplorer().WithThresholdStep(50).WithStoreHoursStep(2)

	got := moves(explorer.GenerateNeighbors(base, 0.5))
	for _, m := range []move{
		{475, 900, 10, 2},
		{500, 925, 10, 2},
		{500, 900, 10, 1},
		{500, 900, 10, 3},
	} {
		if !got[m] {
			t.Errorf("missing neighbor %+v in %v", m, got)
		}
	}

	thresholdsOnly := moves(explorer.WithDesign(false).GenerateNeighbors(base, 1))
	if len(thresholdsOnly) != 4 {
		t.Errorf("expected only threshold moves, got %v", thresholdsOnly)
	}
	if NewDefaultExplorer().Name() != "default" {
		t.Errorf("unexpected explorer name")
	}
}
