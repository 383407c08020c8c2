package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

func TestLoadConfig(t *testing.T) {
	// Test loading the reference plant config
	cfg, err := LoadConfig("../../config/doc-plant.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.GetTimestep() != time.Hour {
		t.Errorf("Expected 1h timestep, got %v", cfg.GetTimestep())
	}
	if cfg.TimestepHours() != 1 {
		t.Errorf("Expected 1 timestep hour, got %f", cfg.TimestepHours())
	}
	if cfg.EDUnit.NumberEDMax != 10 {
		t.Errorf("Expected 10 ED units, got %d", cfg.EDUnit.NumberEDMax)
	}
	if cfg.EDUnit.CapacityKW() != 1000 {
		t.Errorf("Expected 1000 kW capacity, got %f", cfg.EDUnit.CapacityKW())
	}
	if cfg.Seawater.PH != 8.1 {
		t.Errorf("Expected pH 8.1, got %f", cfg.Seawater.PH)
	}

	// Power series comes from the CSV next to the config file
	if cfg.Steps() != 12 {
		t.Fatalf("Expected 12 steps, got %d", cfg.Steps())
	}
	series := cfg.Series()
	if series[3] != 880 {
		t.Errorf("Expected 880 kW at step 3, got %f", series[3])
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.StartAt().Equal(want) {
		t.Errorf("Expected start %v, got %v", want, cfg.StartAt())
	}
	if cfg.Cost == nil || cfg.Cost.PlantLifeYears != 20 {
		t.Error("Expected cost section with 20 year plant life")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("does-not-exist.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfigRelativePowerFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p.csv"), []byte("500\n600\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgText := baseYAML + `
power:
  file: p.csv
  units: MW
`
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(cfgText), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	series := cfg.Series()
	if len(series) != 2 || series[0] != 500000 || series[1] != 600000 {
		t.Errorf("Expected MW values scaled to kW, got %v", series)
	}
}

func TestSeriesReturnsCopy(t *testing.T) {
	cfg, err := ParseConfigYAMLString(baseYAML + "\npower:\n  series_kw: [1, 2, 3]\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	s := cfg.Series()
	s[0] = 999
	if cfg.Series()[0] != 1 {
		t.Error("Expected config series to be immutable through Series()")
	}
}

func TestReadPowerCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		column  string
		want    []float64
		wantErr bool
	}{
		{"no header", "1\n2\n3\n", "", []float64{1, 2, 3}, false},
		{"header last column", "t,kw\n0,10\n1,20\n", "", []float64{10, 20}, false},
		{"named column", "kw,t\n10,0\n20,1\n", "kw", []float64{10, 20}, false},
		{"unknown column", "kw,t\n10,0\n", "mw", nil, true},
		{"bad value", "kw\nabc\n", "", nil, true},
		{"empty", "kw\n", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPowerCSV(strings.NewReader(tt.input), tt.column)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value %d: expected %f, got %f", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestPolicyThresholdDefaults(t *testing.T) {
	ed := EDUnit{PowerSingleEDW: 100000, NumberEDMin: 2, NumberEDMax: 10}
	partial, full, capacity := PolicyConfig{}.Thresholds(ed)
	if partial != 200 || full != 900 || capacity != 1000 {
		t.Errorf("Expected 200/900/1000, got %f/%f/%f", partial, full, capacity)
	}

	single := EDUnit{PowerSingleEDW: 50000, NumberEDMin: 1, NumberEDMax: 1}
	partial, full, capacity = PolicyConfig{}.Thresholds(single)
	if partial != 50 || full != 50 || capacity != 50 {
		t.Errorf("Expected 50/50/50 for a single stack, got %f/%f/%f", partial, full, capacity)
	}

	p := 500.0
	partial, _, _ = PolicyConfig{PartialThresholdKW: &p}.Thresholds(ed)
	if partial != 500 {
		t.Errorf("Expected explicit partial threshold 500, got %f", partial)
	}
}

func TestValidationErrorsAreInvalidInput(t *testing.T) {
	_, err := ParseConfigYAMLString(baseYAML + "\npower:\n  series_kw: [1, -2]\n")
	if err == nil {
		t.Fatal("Expected negative power to be rejected")
	}
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	var inv *models.InvalidInputError
	if !errors.As(err, &inv) || inv.Field != "power[1]" {
		t.Errorf("Expected field power[1], got %+v", inv)
	}
}

func TestReadPowerCSVErrorOmitsCell(t *testing.T) {
	_, err := ReadPowerCSV(strings.NewReader("hour,kw\n0,12\n1,TOKEN-77\n"), "")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if strings.Contains(err.Error(), "TOKEN-77") {
		t.Errorf("error echoes the cell: %v", err)
	}
	var inv *models.InvalidInputError
	if !errors.As(err, &inv) || inv.Field != "row" || inv.Value != 3 {
		t.Errorf("expected row 3 to be reported, got %+v", inv)
	}

	_, err = ReadPowerCSV(strings.NewReader("kw\n1e999\n"), "")
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("expected out of range error, got %v", err)
	}
}

func TestReadPowerCSVTooLong(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= MaxSteps; i++ {
		b.WriteString("1\n")
	}
	if _, err := ReadPowerCSV(strings.NewReader(b.String()), ""); err == nil {
		t.Fatalf("expected more than %d rows to be rejected", MaxSteps)
	}
}

func TestHorizonLengthBounds(t *testing.T) {
	series := strings.Repeat("0,", MaxSteps) + "0"
	tests := []struct {
		name    string
		power   string
		wantErr bool
	}{
		{"constant at limit", "power:\n  constant_kw: 1\n  steps: 87600\n", false},
		{"constant over limit", "power:\n  constant_kw: 1\n  steps: 87601\n", true},
		{"huge constant", "power:\n  constant_kw: 1\n  steps: 2000000000\n", true},
		{"series over limit", "power:\n  series_kw: [" + series + "]\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseUntrustedConfigYAMLString(baseYAML + tt.power)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d steps", cfg.Steps())
				}
				if !errors.Is(err, models.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Steps() != MaxSteps {
				t.Errorf("expected %d steps, got %d", MaxSteps, cfg.Steps())
			}
		})
	}
}

func TestParseUntrustedRejectsPowerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "power.csv")
	if err := os.WriteFile(path, []byte("kw\n100\n200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := baseYAML + "power:\n  file: " + path + "\n"

	if cfg, err := ParseConfigYAMLString(text); err != nil || cfg.Steps() != 2 {
		t.Fatalf("trusted parse should read the file: %v", err)
	}

	_, err := ParseUntrustedConfigYAMLString(text)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if strings.Contains(err.Error(), path) {
		t.Errorf("error names the path: %v", err)
	}

	if _, err := ParseUntrustedConfigYAMLString(baseYAML + "power:\n  series_kw: [1, 2]\n"); err != nil {
		t.Errorf("inline series must be accepted: %v", err)
	}
}

func TestLinearCaptureDefault(t *testing.T) {
	tests := []struct {
		name string
		sim  string
		want float64
	}{
		{"unset", "", DefaultCaptureKgPerKWh},
		{"explicit", "simulator:\n  capture_kg_per_kwh: 0.4\n", 0.4},
		{"remote keeps zero", "simulator:\n  type: remote\n  remote_addr: localhost:9000\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfigYAMLString(baseYAML + tt.sim + "power:\n  series_kw: [1]\n")
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if cfg.Simulator.CaptureKgPerKWh != tt.want {
				t.Errorf("expected %g kg/kWh, got %g", tt.want, cfg.Simulator.CaptureKgPerKWh)
			}
		})
	}
}
