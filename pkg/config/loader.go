package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// LoadConfig loads and parses a configuration file.
// A CSV power file named by the config is resolved relative to the config file.
func LoadConfig(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := parseConfig(data, parseOptions{baseDir: filepath.Dir(path), allowFiles: true})
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func invalid(field string, value any, format string, args ...any) error {
	return &models.InvalidInputError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// validateConfig performs validation on the configuration and resolves derived fields
func validateConfig(cfg *SimulationConfig) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return invalid("log_level", cfg.LogLevel, "must be debug, info, warn, or error")
	}

	ts, err := time.ParseDuration(cfg.Timestep)
	if err != nil {
		return invalid("timestep", cfg.Timestep, "%v", err)
	}
	if ts <= 0 {
		return invalid("timestep", cfg.Timestep, "must be positive")
	}
	cfg.timestep = ts

	if cfg.StartTime != "" {
		start, err := time.Parse(time.RFC3339, cfg.StartTime)
		if err != nil {
			return invalid("start_time", cfg.StartTime, "must be RFC3339: %v", err)
		}
		cfg.start = start
	} else {
		cfg.start = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	if err := validateEDUnit(cfg.EDUnit); err != nil {
		return fmt.Errorf("ed_unit validation failed: %w", err)
	}

	if b, v, bad := cfg.Seawater.FirstViolation(); bad {
		return invalid("seawater."+b.Field, v, "outside [%g, %g]", b.Min, b.Max)
	}

	if _, ok := models.ParseMode(cfg.InitialMode); !ok {
		return invalid("initial_mode", cfg.InitialMode, "must be idle, partial_capture, full_capture, or curtailed")
	}

	if err := validatePolicy(cfg.Policy, cfg.EDUnit); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}

	if err := validatePower(cfg.Power); err != nil {
		return fmt.Errorf("power validation failed: %w", err)
	}

	if err := validateSimulator(cfg.Simulator); err != nil {
		return fmt.Errorf("simulator validation failed: %w", err)
	}

	if cfg.Cost != nil {
		if err := validateCost(cfg.Cost); err != nil {
			return fmt.Errorf("cost validation failed: %w", err)
		}
	}

	return nil
}

// validateEDUnit validates the electrodialysis unit parameters
func validateEDUnit(ed EDUnit) error {
	if ed.PowerSingleEDW <= 0 {
		return invalid("power_single_ed_w", ed.PowerSingleEDW, "must be positive")
	}
	if ed.FlowRateSingleEDM3s < 0 {
		return invalid("flow_rate_single_ed_m3s", ed.FlowRateSingleEDM3s, "cannot be negative")
	}
	if ed.NumberEDMin < 1 {
		return invalid("number_ed_min", ed.NumberEDMin, "must be at least 1")
	}
	if ed.NumberEDMax < ed.NumberEDMin {
		return invalid("number_ed_max", ed.NumberEDMax, "must be >= number_ed_min (%d)", ed.NumberEDMin)
	}
	if ed.StoreHours < 0 {
		return invalid("store_hours", ed.StoreHours, "cannot be negative")
	}
	if ed.UseStorageTanks && ed.StoreHours == 0 {
		return invalid("store_hours", ed.StoreHours, "must be positive when use_storage_tanks is set")
	}
	return nil
}

// validatePolicy validates the control policy and its resolved thresholds
func validatePolicy(p PolicyConfig, ed EDUnit) error {
	validNames := map[string]bool{
		"threshold":   true,
		"passthrough": true,
	}
	if !validNames[p.Name] {
		return invalid("name", p.Name, "must be threshold or passthrough")
	}

	partial, full, capacity := p.Thresholds(ed)
	if partial < 0 || math.IsNaN(partial) {
		return invalid("partial_threshold_kw", partial, "cannot be negative")
	}
	if full < partial {
		return invalid("full_threshold_kw", full, "must be >= partial threshold (%g kW)", partial)
	}
	if full > capacity {
		return invalid("full_threshold_kw", full, "must be <= plant capacity (%g kW)", capacity)
	}
	if p.MinDICMolPerKg < 0 {
		return invalid("min_dic_mol_per_kg", p.MinDICMolPerKg, "cannot be negative")
	}
	return nil
}

// validatePower checks the power source selection; values are checked when resolved
func validatePower(p PowerInput) error {
	sources := 0
	if len(p.SeriesKW) > 0 {
		sources++
	}
	if p.File != "" {
		sources++
	}
	if p.ConstantKW != nil {
		sources++
	}
	if sources != 1 {
		return invalid("power", sources, "exactly one of series_kw, file, or constant_kw must be set")
	}
	if p.ConstantKW != nil && (p.Steps <= 0 || p.Steps > MaxSteps) {
		return invalid("steps", p.Steps, "must be in [1, %d] for a constant series", MaxSteps)
	}
	if len(p.SeriesKW) > MaxSteps {
		return invalid("series_kw", len(p.SeriesKW), "at most %d values", MaxSteps)
	}
	if _, ok := unitScale(p.Units); !ok {
		return invalid("units", p.Units, "must be W, kW, or MW")
	}
	return nil
}

// validateSimulator validates the simulator selection
func validateSimulator(s SimulatorConfig) error {
	switch s.Type {
	case "linear":
	case "remote":
		if s.RemoteAddr == "" {
			return invalid("remote_addr", s.RemoteAddr, "required for remote simulator")
		}
	default:
		return invalid("type", s.Type, "must be linear or remote")
	}
	if s.CaptureKgPerKWh < 0 {
		return invalid("capture_kg_per_kwh", s.CaptureKgPerKWh, "cannot be negative")
	}
	if s.DICDrawdownPerKWh < 0 {
		return invalid("dic_drawdown_per_kwh", s.DICDrawdownPerKWh, "cannot be negative")
	}
	if s.Relaxation < 0 || s.Relaxation > 1 {
		return invalid("relaxation", s.Relaxation, "must be between 0 and 1")
	}
	return nil
}

// validateCost validates the cost coefficients, which are decimal strings
func validateCost(c *CostConfig) error {
	fields := map[string]string{
		"capex_per_ed_unit_usd":         c.CapexPerEDUnitUSD,
		"tank_capex_per_store_hour_usd": c.TankCapexPerStoreHourUSD,
		"fixed_om_fraction":             c.FixedOMFraction,
		"electricity_usd_per_kwh":       c.ElectricityUSDPerKWh,
		"stack_replacement_usd":         c.StackReplacementUSD,
	}
	for name, raw := range fields {
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return invalid(name, raw, "not a decimal: %v", err)
		}
		if d.IsNegative() {
			return invalid(name, raw, "cannot be negative")
		}
	}
	if c.StackReplacementHours < 0 {
		return invalid("stack_replacement_hours", c.StackReplacementHours, "cannot be negative")
	}
	if c.PlantLifeYears < 0 {
		return invalid("plant_life_years", c.PlantLifeYears, "cannot be negative")
	}
	return nil
}

func unitScale(units string) (float64, bool) {
	switch strings.ToLower(units) {
	case "w":
		return 0.001, true
	case "kw", "":
		return 1, true
	case "mw":
		return 1000, true
	}
	return 0, false
}

// resolvePower materializes the available-power series in kW
func resolvePower(p PowerInput, baseDir string) ([]float64, error) {
	scale, _ := unitScale(p.Units)

	var raw []float64
	switch {
	case len(p.SeriesKW) > 0:
		raw = p.SeriesKW
	case p.ConstantKW != nil:
		raw = make([]float64, p.Steps)
		for i := range raw {
			raw[i] = *p.ConstantKW
		}
	default:
		path := p.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open power file %s: %w", path, err)
		}
		defer f.Close()
		raw, err = ReadPowerCSV(f, p.Column)
		if err != nil {
			return nil, fmt.Errorf("failed to read power file %s: %w", path, err)
		}
	}

	series := make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, invalid(fmt.Sprintf("power[%d]", i), v, "available power must be a finite non-negative value")
		}
		series[i] = v * scale
	}
	return series, nil
}

// parseFailure names why a cell failed to parse without echoing the cell
func parseFailure(err error) string {
	switch {
	case errors.Is(err, strconv.ErrRange):
		return "number out of range"
	default:
		return "not a number"
	}
}

// ReadPowerCSV reads one power value per row. The first row is treated as a header
// when it does not parse as a number; column selects a header, otherwise the last column is used.
func ReadPowerCSV(r io.Reader, column string) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	col := -1
	out := make([]float64, 0)
	row := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row++
		if len(out) >= MaxSteps {
			return nil, invalid("power", row, "CSV holds more than %d values", MaxSteps)
		}
		if len(rec) == 0 {
			continue
		}

		if row == 1 {
			if _, perr := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-1]), 64); perr != nil {
				col = len(rec) - 1
				if column != "" {
					col = -1
					for i, h := range rec {
						if strings.EqualFold(strings.TrimSpace(h), column) {
							col = i
							break
						}
					}
					if col < 0 {
						return nil, invalid("column", column, "not found in CSV header")
					}
				}
				continue
			}
		}

		idx := col
		if idx < 0 {
			idx = len(rec) - 1
		}
		if idx >= len(rec) {
			return nil, invalid(fmt.Sprintf("row %d", row), len(rec), "missing column %d", idx)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil {
			return nil, invalid("row", row, "column %d: %s", idx+1, parseFailure(err))
		}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil, invalid("power", 0, "CSV contains no values")
	}
	return out, nil
}
