package utils

import (
	"testing"
	"time"
)

func TestStepTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := StepTime(start, 30*time.Minute, 5)
	want := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !StepTime(start, time.Hour, 0).Equal(start) {
		t.Error("expected step 0 at start")
	}
}

func TestHoursToDuration(t *testing.T) {
	if got := HoursToDuration(1.5); got != 90*time.Minute {
		t.Errorf("expected 90m, got %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{2 * time.Second, "2.00s"},
		{90 * time.Second, "1.50m"},
		{2 * time.Hour, "2.00h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.input); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}
