package utils

import (
	"strings"

	"github.com/google/uuid"
)

// RunIDPrefix marks identifiers created for simulation runs
const RunIDPrefix = "run-"

// GenerateID generates a random unique ID
func GenerateID() string {
	return uuid.NewString()
}

// GenerateRunID generates a run ID
func GenerateRunID() string {
	return RunIDPrefix + uuid.NewString()
}

// ValidRunID reports whether id looks like a generated run ID or a caller-chosen one.
// Caller IDs may only contain letters, digits, '-', '_' and '.'.
func ValidRunID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	if strings.HasPrefix(id, RunIDPrefix) {
		if _, err := uuid.Parse(strings.TrimPrefix(id, RunIDPrefix)); err == nil {
			return true
		}
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
