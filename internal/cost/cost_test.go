package cost

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

const costYAML = `
timestep: 1h
ed_unit:
  power_single_ed_w: 100000
  number_ed_min: 1
  number_ed_max: 10
  use_storage_tanks: true
  store_hours: 5
seawater: {ph: 8.1, alkalinity_mol_per_kg: 0.0023, dic_mol_per_kg: 0.0021, salinity_psu: 35, temperature_c: 15}
power: {series_kw: [0]}
cost:
  capex_per_ed_unit_usd: "100000"
  tank_capex_per_store_hour_usd: "20000"
  fixed_om_fraction: "0.05"
  electricity_usd_per_kwh: "0.05"
  stack_replacement_hours: 1000
  stack_replacement_usd: "500"
  plant_life_years: 10
`

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestEvaluate(t *testing.T) {
	cfg, err := config.ParseConfigYAMLString(costYAML)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	// 876 h horizon scales by exactly 10 to a year
	summary := models.NewHorizonSummary(1)
	summary.Steps = 876
	summary.TotalEnergyConsumedKWh = 100000
	summary.TotalCO2CapturedKg = 10000
	summary.FinalState = &models.OperatingState{StackHours: 200}

	r, err := NewModel().Evaluate(cfg, summary)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		// 10 x 100k + 5 x 20k
		{"capex", r.CapexUSD, "1100000"},
		{"annualized capex", r.AnnualizedCapexUSD, "110000"},
		{"fixed O&M", r.AnnualFixedOMUSD, "55000"},
		// 100 MWh x 10 x 0.05
		{"electricity", r.AnnualElectricityUSD, "50000"},
		// 2000 stack hours / 1000 x 500
		{"stack replacement", r.AnnualStackReplacementUSD, "1000"},
		{"opex", r.AnnualOpexUSD, "106000"},
		{"tonnes", r.AnnualCO2Tonnes, "100"},
		{"energy", r.AnnualEnergyMWh, "1000"},
		// (110000 + 106000) / 100
		{"cost per tonne", r.CostPerTonneUSD, "2160"},
	}
	for _, tt := range tests {
		if !tt.got.Equal(mustDecimal(t, tt.want)) {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, tt.got)
		}
	}
	if !r.CaptureRecorded || r.PlantLifeYears != 10 {
		t.Errorf("unexpected flags %+v", r)
	}
}

func TestEvaluateNoCapture(t *testing.T) {
	cfg, _ := config.ParseConfigYAMLString(costYAML)
	summary := models.NewHorizonSummary(1)
	summary.Steps = 24

	r, err := NewModel().Evaluate(cfg, summary)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if r.CaptureRecorded || !r.CostPerTonneUSD.IsZero() {
		t.Errorf("expected no cost per tonne without capture, got %+v", r)
	}
	if !r.AnnualOpexUSD.Equal(r.AnnualFixedOMUSD) {
		t.Errorf("expected only fixed O&M, got %s vs %s", r.AnnualOpexUSD, r.AnnualFixedOMUSD)
	}
}

func TestEvaluateErrors(t *testing.T) {
	cfg, _ := config.ParseConfigYAMLString(costYAML)

	if _, err := NewModel().Evaluate(cfg, models.NewHorizonSummary(1)); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty horizon, got %v", err)
	}

	noCost := *cfg
	noCost.Cost = nil
	summary := models.NewHorizonSummary(1)
	summary.Steps = 1
	if _, err := NewModel().Evaluate(&noCost, summary); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without cost section, got %v", err)
	}
}
