package models

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestModeValidAndRank(t *testing.T) {
	for i, m := range Modes {
		if !m.Valid() {
			t.Errorf("Expected mode %s to be valid", m)
		}
		if m.Rank() != i {
			t.Errorf("Expected rank %d for %s, got %d", i, m, m.Rank())
		}
	}
	if Mode("turbo").Valid() {
		t.Error("Expected unknown mode to be invalid")
	}
	if Mode("turbo").Rank() != -1 {
		t.Error("Expected unknown mode rank -1")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", ModeIdle, true},
		{"idle", ModeIdle, true},
		{"partial_capture", ModePartialCapture, true},
		{"full_capture", ModeFullCapture, true},
		{"curtailed", ModeCurtailed, true},
		{"standby", Mode("standby"), false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestChemistryAdd(t *testing.T) {
	c := Chemistry{PH: 8.1, AlkalinityMolPerKg: 0.0023, DICMolPerKg: 0.0021, SalinityPSU: 35, TemperatureC: 15}
	got := c.Add(Chemistry{PH: -0.1, DICMolPerKg: -0.0001})
	if math.Abs(got.PH-8.0) > 1e-12 {
		t.Errorf("Expected pH 8.0, got %f", got.PH)
	}
	if math.Abs(got.DICMolPerKg-0.002) > 1e-12 {
		t.Errorf("Expected DIC 0.002, got %f", got.DICMolPerKg)
	}
	if got.SalinityPSU != 35 || got.TemperatureC != 15 {
		t.Errorf("Expected salinity and temperature unchanged, got %+v", got)
	}
}

func TestHorizonSummaryDerivedValues(t *testing.T) {
	s := NewHorizonSummary(1)
	s.Steps = 10
	s.TotalCO2CapturedKg = 2000
	s.TotalEnergyConsumedKWh = 5000
	s.ModeOccupancy[ModeIdle] = 4
	s.ModeOccupancy[ModeFullCapture] = 6

	if s.DurationHours() != 10 {
		t.Errorf("Expected 10 hours, got %f", s.DurationHours())
	}
	if s.TotalCO2CapturedTonnes() != 2 {
		t.Errorf("Expected 2 t, got %f", s.TotalCO2CapturedTonnes())
	}
	if s.AnnualCO2CaptureTonnes() != 2*876 {
		t.Errorf("Expected %f t/yr, got %f", 2.0*876, s.AnnualCO2CaptureTonnes())
	}
	if s.SpecificEnergyKWhPerTonne() != 2500 {
		t.Errorf("Expected 2500 kWh/t, got %f", s.SpecificEnergyKWhPerTonne())
	}
	if cf := s.CapacityFactor(1000); cf != 0.5 {
		t.Errorf("Expected capacity factor 0.5, got %f", cf)
	}
	hours := s.ModeHours()
	if hours[ModeFullCapture] != 6 || hours[ModeIdle] != 4 {
		t.Errorf("Unexpected mode hours: %v", hours)
	}

	empty := NewHorizonSummary(1)
	if !math.IsNaN(empty.SpecificEnergyKWhPerTonne()) {
		t.Error("Expected NaN specific energy without capture")
	}
	if empty.AnnualCO2CaptureTonnes() != 0 {
		t.Error("Expected zero annual capture for empty summary")
	}
}

func TestHorizonSummaryClone(t *testing.T) {
	s := NewHorizonSummary(1)
	s.ModeOccupancy[ModeFullCapture] = 3
	s.ModeSequence = append(s.ModeSequence, ModeIdle, ModeFullCapture)
	s.Warnings = []string{"gap"}
	s.FinalState = &OperatingState{Step: 2}

	c := s.Clone()
	c.ModeOccupancy[ModeFullCapture] = 0
	c.ModeSequence[0] = ModeCurtailed
	c.Warnings[0] = "changed"
	c.FinalState.Step = 9

	if s.ModeOccupancy[ModeFullCapture] != 3 || s.ModeSequence[0] != ModeIdle {
		t.Errorf("clone shares mode data: %+v", s)
	}
	if s.Warnings[0] != "gap" || s.FinalState.Step != 2 {
		t.Errorf("clone shares warnings or final state: %+v", s)
	}
}

func TestStatusTerminal(t *testing.T) {
	if HorizonRunning.Terminal() || HorizonNotStarted.Terminal() {
		t.Error("Expected non-terminal horizon states")
	}
	for _, s := range []HorizonStatus{HorizonCompleted, HorizonFailed, HorizonCancelled} {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	if RunStatusPending.Terminal() || !RunStatusCancelled.Terminal() {
		t.Error("Unexpected run status terminality")
	}
}

func TestErrorKinds(t *testing.T) {
	inv := &InvalidInputError{Field: "available_power_kw", Value: -1.0, Reason: "must be non-negative"}
	if !errors.Is(inv, ErrInvalidInput) {
		t.Error("Expected InvalidInputError to match ErrInvalidInput")
	}

	sv := &StateViolationError{Step: 3, Field: "ph", Value: 15, Min: 0, Max: 14}
	wrapped := fmt.Errorf("advance: %w", sv)
	if !errors.Is(wrapped, ErrStateViolation) {
		t.Error("Expected wrapped StateViolationError to match ErrStateViolation")
	}
	if step, ok := FailedStep(wrapped); !ok || step != 3 {
		t.Errorf("Expected failed step 3, got %d (%v)", step, ok)
	}

	cause := errors.New("solver diverged")
	em := &ExternalModelError{Step: 2, Err: cause}
	if !errors.Is(em, ErrExternalModel) {
		t.Error("Expected ExternalModelError to match ErrExternalModel")
	}
	if !errors.Is(em, cause) {
		t.Error("Expected ExternalModelError to unwrap to its cause")
	}
	if step, ok := FailedStep(em); !ok || step != 2 {
		t.Errorf("Expected failed step 2, got %d (%v)", step, ok)
	}
	if _, ok := FailedStep(inv); ok {
		t.Error("Expected no step for InvalidInputError")
	}
}
