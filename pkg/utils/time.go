package utils

import (
	"fmt"
	"time"
)

// StepTime returns the wall-clock stamp of a timestep index
func StepTime(start time.Time, timestep time.Duration, step int) time.Time {
	return start.Add(time.Duration(step) * timestep)
}

// HoursToDuration converts fractional hours to a duration
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// FormatDuration formats a duration for human-readable output
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2fm", d.Minutes())
	default:
		return fmt.Sprintf("%.2fh", d.Hours())
	}
}
