package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// ErrHorizonTerminal is returned when Run is called on a horizon that already ran
var ErrHorizonTerminal = errors.New("horizon already started")

// RunManager tracks the lifecycle of one horizon.
// It is the only state shared between the running horizon and concurrent readers.
type RunManager struct {
	mu        sync.RWMutex
	runID     string
	status    models.HorizonStatus
	stepsDone int
	startedAt time.Time
	endedAt   time.Time
	err       error
}

// RunSnapshot is a copy of the lifecycle state
type RunSnapshot struct {
	RunID     string
	Status    models.HorizonStatus
	StepsDone int
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
}

// Duration is the wall-clock time spent running
func (s RunSnapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.EndedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// NewRunManager creates a run manager in the NotStarted state
func NewRunManager(runID string) *RunManager {
	return &RunManager{
		runID:  runID,
		status: models.HorizonNotStarted,
	}
}

// Start moves NotStarted to Running
func (rm *RunManager) Start() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.status != models.HorizonNotStarted {
		return ErrHorizonTerminal
	}
	rm.status = models.HorizonRunning
	rm.startedAt = time.Now()
	return nil
}

// StepDone records a committed timestep
func (rm *RunManager) StepDone() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.stepsDone++
}

// Complete marks the horizon as completed
func (rm *RunManager) Complete() {
	rm.finish(models.HorizonCompleted, nil)
}

// Fail marks the horizon as failed
func (rm *RunManager) Fail(err error) {
	rm.finish(models.HorizonFailed, err)
}

// Cancel marks the horizon as cancelled
func (rm *RunManager) Cancel(err error) {
	rm.finish(models.HorizonCancelled, err)
}

func (rm *RunManager) finish(status models.HorizonStatus, err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.status.Terminal() {
		return
	}
	rm.status = status
	rm.endedAt = time.Now()
	rm.err = err
}

// Status returns the current lifecycle status
func (rm *RunManager) Status() models.HorizonStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.status
}

// Snapshot returns a copy of the lifecycle state (thread-safe)
func (rm *RunManager) Snapshot() RunSnapshot {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return RunSnapshot{
		RunID:     rm.runID,
		Status:    rm.status,
		StepsDone: rm.stepsDone,
		StartedAt: rm.startedAt,
		EndedAt:   rm.endedAt,
		Err:       rm.err,
	}
}
