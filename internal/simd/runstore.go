package simd

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cost"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/metrics"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/utils"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
	ErrRunExists    = errors.New("run already exists")
	ErrInvalidRunID = errors.New("run_id may only contain letters, digits, '-', '_' and '.'")
)

// RunInput is what a client submits to create a run
type RunInput struct {
	ConfigYAML     string            `json:"config_yaml"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	CallbackSecret string            `json:"callback_secret,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// RunRecord is a point-in-time copy of a stored run
type RunRecord struct {
	Run       models.Run
	Input     RunInput
	Config    *config.SimulationConfig
	StepsDone int
	Summary   *models.HorizonSummary
	Cost      *cost.Report
	Collector *metrics.Collector
}

type runEntry struct {
	rec RunRecord
}

// RunStore keeps runs in memory in creation order
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*runEntry
	order []string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*runEntry),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// Create registers a pending run for a validated config; an empty runID is generated
func (s *RunStore) Create(runID string, input RunInput, cfg *config.SimulationConfig) (RunRecord, error) {
	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if !utils.ValidRunID(runID) {
		return RunRecord{}, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; exists {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	input.Metadata = maps.Clone(input.Metadata)
	e := &runEntry{rec: RunRecord{
		Run: models.Run{
			ID:          runID,
			Status:      models.RunStatusPending,
			CreatedAt:   now(),
			CallbackURL: input.CallbackURL,
			Metadata:    input.Metadata,
		},
		Input:  input,
		Config: cfg,
	}}
	s.runs[runID] = e
	s.order = append(s.order, runID)
	return e.rec, nil
}

// Get returns a copy of the run
func (s *RunStore) Get(runID string) (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return e.rec, true
}

// List returns runs in creation order, skipping offset and filtering by status when set
func (s *RunStore) List(limit, offset int, status models.RunStatus) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]RunRecord, 0, min(limit, len(s.order)))
	skipped := 0
	for _, id := range s.order {
		rec := s.runs[id].rec
		if status != "" && rec.Run.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus moves a run to status; terminal runs never change status again
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[runID]
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if e.rec.Run.Status.Terminal() {
		return e.rec, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, e.rec.Run.Status)
	}

	e.rec.Run.Status = status
	if errMsg != "" {
		e.rec.Run.Error = errMsg
	}
	switch {
	case status == models.RunStatusRunning:
		if e.rec.Run.StartedAt.IsZero() {
			e.rec.Run.StartedAt = now()
		}
	case status.Terminal():
		e.rec.Run.EndedAt = now()
	}
	return e.rec, nil
}

// SetProgress records the number of committed steps
func (s *RunStore) SetProgress(runID string, steps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.runs[runID]; ok {
		e.rec.StepsDone = steps
	}
}

// SetCollector attaches the time-series collector of a started run
func (s *RunStore) SetCollector(runID string, c *metrics.Collector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	e.rec.Collector = c
	return nil
}

// SetResult stores the (possibly partial) summary and cost report of a finished horizon
func (s *RunStore) SetResult(runID string, summary *models.HorizonSummary, report *cost.Report, failedStep *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	e.rec.Summary = summary
	e.rec.Cost = report
	e.rec.Run.FailedStep = failedStep
	if summary != nil {
		e.rec.StepsDone = summary.Steps
	}
	return nil
}
