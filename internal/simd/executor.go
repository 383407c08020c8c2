package simd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cache"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/cost"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/metrics"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/simulator"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// ExecutorOption configures a RunExecutor
type ExecutorOption func(*RunExecutor)

// WithExporter feeds every run into a Prometheus exporter
func WithExporter(x *metrics.Exporter) ExecutorOption {
	return func(e *RunExecutor) {
		e.exporter = x
	}
}

// WithNotifier enables callback notifications on completion
func WithNotifier(n *Notifier) ExecutorOption {
	return func(e *RunExecutor) {
		e.notifier = n
	}
}

// WithStepCache shares one step cache between the simulators of all runs
func WithStepCache(c cache.Cache) ExecutorOption {
	return func(e *RunExecutor) {
		e.stepCache = c
	}
}

// WithRunObserver attaches an extra observer (e.g. MQTT telemetry) to every run
func WithRunObserver(o engine.StepObserver) ExecutorOption {
	return func(e *RunExecutor) {
		e.observers = append(e.observers, o)
	}
}

// SimulatorFactory builds the simulator for a run's config
type SimulatorFactory func(cfg *config.SimulationConfig, store cache.Cache) (simulator.Simulator, func() error, error)

// WithSimulatorFactory replaces simulator.FromConfig
func WithSimulatorFactory(f SimulatorFactory) ExecutorOption {
	return func(e *RunExecutor) {
		e.newSimulator = f
	}
}

// WithExecutorLogger sets the logger handed to horizons
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *RunExecutor) {
		e.logger = l
	}
}

// RunExecutor manages asynchronous horizon execution and per-run cancellation.
type RunExecutor struct {
	store     *RunStore
	exporter  *metrics.Exporter
	notifier  *Notifier
	stepCache cache.Cache
	observers []engine.StepObserver
	costModel *cost.Model
	logger    *slog.Logger

	newSimulator SimulatorFactory

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
}

func NewRunExecutor(store *RunStore, opts ...ExecutorOption) *RunExecutor {
	e := &RunExecutor{
		store:        store,
		costModel:    cost.NewModel(),
		logger:       logger.Default,
		newSimulator: simulator.FromConfig,
		cancels:      make(map[string]context.CancelFunc),
		done:         make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (RunRecord, error) {
	if runID == "" {
		return RunRecord{}, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	switch {
	case rec.Run.Status == models.RunStatusRunning:
		return rec, nil
	case rec.Run.Status.Terminal():
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		return RunRecord{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.mu.Lock()
	e.cancels[runID] = cancel
	e.done[runID] = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		e.runHorizon(ctx, runID)
	}()
	return updated, nil
}

// Stop requests cancellation and marks the run cancelled.
// The horizon stops before its next timestep.
func (e *RunExecutor) Stop(runID string) (RunRecord, error) {
	if runID == "" {
		return RunRecord{}, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	return e.store.SetStatus(runID, models.RunStatusCancelled, "stopped by request")
}

// Wait blocks until the run's horizon goroutine has finished, or ctx is done
func (e *RunExecutor) Wait(ctx context.Context, runID string) error {
	e.mu.Lock()
	done, ok := e.done[runID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every active run and waits for them to finish
func (e *RunExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id, cancel := range e.cancels {
		cancel()
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.Wait(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) fail(runID string, err error) {
	if _, setErr := e.store.SetStatus(runID, models.RunStatusFailed, err.Error()); setErr != nil && !errors.Is(setErr, ErrRunTerminal) {
		e.logger.Error("failed to set failed status", "run_id", runID, "error", setErr)
	}
}

func (e *RunExecutor) runHorizon(ctx context.Context, runID string) {
	defer e.cleanup(runID)

	rec, ok := e.store.Get(runID)
	if !ok {
		e.logger.Error("run not found", "run_id", runID)
		return
	}

	sim, closeSim, err := e.newSimulator(rec.Config, e.stepCache)
	if err != nil {
		e.logger.Error("failed to build simulator", "run_id", runID, "error", err)
		e.fail(runID, fmt.Errorf("simulator initialization failed: %w", err))
		e.notify(runID)
		return
	}
	defer func() {
		if err := closeSim(); err != nil {
			e.logger.Warn("failed to close simulator", "run_id", runID, "error", err)
		}
	}()

	collector := metrics.NewCollector()
	collector.Start()
	if err := e.store.SetCollector(runID, collector); err != nil {
		e.logger.Error("failed to store collector", "run_id", runID, "error", err)
	}

	opts := []engine.Option{
		engine.WithRunID(runID),
		engine.WithLogger(e.logger),
		engine.WithObserver(collector),
		engine.WithObserver(engine.ObserverFunc(func(ev engine.StepEvent) {
			e.store.SetProgress(runID, ev.Result.Step+1)
		})),
	}
	if e.exporter != nil {
		opts = append(opts, engine.WithObserver(e.exporter))
	}
	for _, o := range e.observers {
		opts = append(opts, engine.WithObserver(o))
	}

	h, err := engine.NewHorizon(rec.Config, sim, opts...)
	if err != nil {
		e.logger.Error("failed to create horizon", "run_id", runID, "error", err)
		e.fail(runID, err)
		e.notify(runID)
		return
	}

	summary, runErr := h.Run(ctx)
	collector.Stop()

	var report *cost.Report
	if summary != nil && rec.Config.Cost != nil && summary.Steps > 0 {
		r, err := e.costModel.Evaluate(rec.Config, *summary)
		if err != nil {
			e.logger.Warn("failed to evaluate cost", "run_id", runID, "error", err)
		} else {
			report = &r
		}
	}

	var failedStep *int
	if step, ok := models.FailedStep(runErr); ok {
		failedStep = &step
	}
	if err := e.store.SetResult(runID, summary, report, failedStep); err != nil {
		e.logger.Error("failed to store result", "run_id", runID, "error", err)
	}

	switch {
	case runErr == nil:
		if _, err := e.store.SetStatus(runID, models.RunStatusCompleted, ""); err != nil && !errors.Is(err, ErrRunTerminal) {
			e.logger.Error("failed to set completed status", "run_id", runID, "error", err)
		}
	case errors.Is(runErr, context.Canceled):
		// Stop already marked the run cancelled
		if _, err := e.store.SetStatus(runID, models.RunStatusCancelled, runErr.Error()); err != nil && !errors.Is(err, ErrRunTerminal) {
			e.logger.Error("failed to set cancelled status", "run_id", runID, "error", err)
		}
	default:
		e.fail(runID, runErr)
	}
	e.notify(runID)
}

func (e *RunExecutor) notify(runID string) {
	if e.notifier == nil {
		return
	}
	if rec, ok := e.store.Get(runID); ok {
		e.notifier.Notify(rec)
	}
}
