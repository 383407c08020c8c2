// Package engine drives a DOC horizon: select a mode, call the simulator, advance the
// state and fold the result, one timestep at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/aggregator"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/policy"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/simulator"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/tracker"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/utils"
)

// StepEvent describes one committed timestep
type StepEvent struct {
	RunID         string
	Time          time.Time
	TimestepHours float64
	Decision      models.DispatchDecision
	Result        models.TimestepResult
	State         models.OperatingState // state after the step
}

// StepObserver receives every committed timestep, in order, on the horizon goroutine
type StepObserver interface {
	OnStep(ev StepEvent)
}

// HorizonObserver is optionally implemented by observers that need the final outcome
type HorizonObserver interface {
	OnHorizonEnd(runID string, summary models.HorizonSummary, err error)
}

// ObserverFunc adapts a function to StepObserver
type ObserverFunc func(ev StepEvent)

func (f ObserverFunc) OnStep(ev StepEvent) {
	f(ev)
}

// Option configures a Horizon
type Option func(*Horizon)

// WithSelector overrides the selector built from the config policy section
func WithSelector(s policy.Selector) Option {
	return func(h *Horizon) {
		h.selector = s
	}
}

// WithLogger sets the horizon's logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Horizon) {
		h.logger = l
	}
}

// WithObserver adds a step observer
func WithObserver(o StepObserver) Option {
	return func(h *Horizon) {
		h.observers = append(h.observers, o)
	}
}

// WithRunID sets the identifier used in logs and observer events
func WithRunID(id string) Option {
	return func(h *Horizon) {
		h.runID = id
	}
}

// Horizon runs one configuration over its power series exactly once
type Horizon struct {
	cfg        *config.SimulationConfig
	sim        simulator.Simulator
	selector   policy.Selector
	tracker    *tracker.Tracker
	logger     *slog.Logger
	observers  []StepObserver
	runID      string
	runManager *RunManager
}

// NewHorizon creates a horizon for a validated config
func NewHorizon(cfg *config.SimulationConfig, sim simulator.Simulator, opts ...Option) (*Horizon, error) {
	if cfg == nil {
		return nil, &models.InvalidInputError{Field: "config", Value: nil, Reason: "is required"}
	}
	if sim == nil {
		return nil, &models.InvalidInputError{Field: "simulator", Value: nil, Reason: "is required"}
	}

	h := &Horizon{
		cfg:     cfg,
		sim:     sim,
		tracker: tracker.New(cfg),
		logger:  logger.Default,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.selector == nil {
		s, err := policy.NewSelector(cfg)
		if err != nil {
			return nil, err
		}
		h.selector = s
	}
	if h.runID == "" {
		h.runID = utils.GenerateRunID()
	}
	if err := h.tracker.Check(h.tracker.Initial()); err != nil {
		return nil, &models.InvalidInputError{Field: "initial_state", Value: err.Error(), Reason: "outside valid bounds"}
	}
	h.runManager = NewRunManager(h.runID)
	return h, nil
}

// RunID returns the horizon identifier
func (h *Horizon) RunID() string {
	return h.runID
}

// Status returns the lifecycle status; safe for concurrent use
func (h *Horizon) Status() models.HorizonStatus {
	return h.runManager.Status()
}

// Snapshot returns progress and timing; safe for concurrent use
func (h *Horizon) Snapshot() RunSnapshot {
	return h.runManager.Snapshot()
}

// Run consumes the power series. On failure the returned summary covers the steps
// completed before the failing index and the error is the typed domain error.
// ctx is checked between timesteps only; the simulator never sees its cancellation.
func (h *Horizon) Run(ctx context.Context) (*models.HorizonSummary, error) {
	if err := h.runManager.Start(); err != nil {
		return nil, err
	}

	series := h.cfg.Series()
	dt := h.cfg.TimestepHours()
	log := h.logger.With("run_id", h.runID)

	summary := models.NewHorizonSummary(dt)
	summary.Status = models.HorizonRunning
	state := h.tracker.Initial()
	simCtx := context.WithoutCancel(ctx)

	log.Info("Starting horizon",
		"steps", len(series),
		"timestep_hours", dt,
		"policy", h.selector.Name(),
		"initial_mode", state.Mode)

	for i, availableKW := range series {
		if err := ctx.Err(); err != nil {
			cerr := fmt.Errorf("horizon cancelled before step %d: %w", i, err)
			log.Info("Horizon cancelled", "step", i)
			return h.end(summary, state, models.HorizonCancelled, cerr)
		}

		decision, err := h.selector.Select(state, availableKW)
		if err != nil {
			return h.end(summary, state, models.HorizonFailed, err)
		}

		result, err := aggregator.Step(simCtx, h.sim, decision, state, availableKW, dt)
		if err != nil {
			return h.end(summary, state, models.HorizonFailed, err)
		}

		next, err := h.tracker.Advance(state, result)
		if err != nil {
			return h.end(summary, state, models.HorizonFailed, err)
		}

		summary = aggregator.Fold(summary, result)
		state = next
		h.runManager.StepDone()

		log.Debug("Step committed",
			"step", i,
			"mode", decision.Mode,
			"available_kw", availableKW,
			"consumed_kw", result.PowerConsumedKW,
			"co2_kg", result.CO2CapturedKg,
			"reason", decision.Reason)

		ev := StepEvent{
			RunID:         h.runID,
			Time:          utils.StepTime(h.cfg.StartAt(), h.cfg.GetTimestep(), i),
			TimestepHours: dt,
			Decision:      decision,
			Result:        result,
			State:         state,
		}
		for _, o := range h.observers {
			o.OnStep(ev)
		}
	}

	return h.end(summary, state, models.HorizonCompleted, nil)
}

func (h *Horizon) end(summary models.HorizonSummary, state models.OperatingState, status models.HorizonStatus, err error) (*models.HorizonSummary, error) {
	summary.Status = status
	final := state
	summary.FinalState = &final

	var em *models.ExternalModelError
	if errors.As(err, &em) {
		partial := summary.Clone()
		em.Partial = &partial
	}

	log := h.logger.With("run_id", h.runID)
	switch status {
	case models.HorizonCompleted:
		h.runManager.Complete()
		log.Info("Horizon completed",
			"steps", summary.Steps,
			"co2_kg", summary.TotalCO2CapturedKg,
			"energy_kwh", summary.TotalEnergyConsumedKWh,
			"mode_switches", summary.ModeSwitches,
			"warnings", len(summary.Warnings))
	case models.HorizonCancelled:
		h.runManager.Cancel(err)
	default:
		h.runManager.Fail(err)
		step, _ := models.FailedStep(err)
		log.Error("Horizon failed",
			"failed_step", step,
			"completed_steps", summary.Steps,
			"error", err)
	}

	for _, o := range h.observers {
		if ho, ok := o.(HorizonObserver); ok {
			ho.OnHorizonEnd(h.runID, summary, err)
		}
	}
	return &summary, err
}
