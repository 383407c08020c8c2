package simd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cache"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/metrics"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/simulator"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/utils"
)

func newTestExecutor(store *RunStore, opts ...ExecutorOption) *RunExecutor {
	return NewRunExecutor(store, append([]ExecutorOption{WithExecutorLogger(logger.Discard())}, opts...)...)
}

func waitRun(t *testing.T, e *RunExecutor, runID string) RunRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx, runID); err != nil {
		t.Fatalf("run %s did not finish: %v", runID, err)
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		t.Fatalf("run %s not found", runID)
	}
	return rec
}

// blockingFactory pauses every run inside step 1 until release is closed
func blockingFactory(entered chan<- struct{}, release <-chan struct{}) SimulatorFactory {
	return func(cfg *config.SimulationConfig, _ cache.Cache) (simulator.Simulator, func() error, error) {
		inner := simulator.NewLinearModel(cfg)
		sim := simulator.Func(func(ctx context.Context, req simulator.StepRequest) (simulator.StepResponse, error) {
			if req.Step == 1 {
				entered <- struct{}{}
				<-release
			}
			return inner.SimulateStep(ctx, req)
		})
		return sim, func() error { return nil }, nil
	}
}

func TestExecutorCompletesRun(t *testing.T) {
	store := NewRunStore()
	exporter := metrics.NewExporter()
	e := newTestExecutor(store, WithExporter(exporter))
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[0, 600, 950]")+costSection))

	rec, err := e.Start("r1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if rec.Run.Status != models.RunStatusRunning {
		t.Errorf("expected running, got %s", rec.Run.Status)
	}

	rec = waitRun(t, e, "r1")
	if rec.Run.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", rec.Run.Status, rec.Run.Error)
	}
	if rec.StepsDone != 3 || rec.Summary == nil || rec.Summary.Steps != 3 {
		t.Fatalf("expected 3 steps, got done=%d summary=%+v", rec.StepsDone, rec.Summary)
	}
	if rec.Summary.TotalCO2CapturedKg != 155 {
		t.Errorf("expected 155 kg captured, got %f", rec.Summary.TotalCO2CapturedKg)
	}
	if rec.Cost == nil || !rec.Cost.CaptureRecorded {
		t.Errorf("expected cost report, got %+v", rec.Cost)
	}
	if rec.Collector == nil || len(rec.Collector.GetTimeSeries(metrics.MetricCO2CapturedKg, nil)) != 3 {
		t.Errorf("expected collector with 3 capture points")
	}
	if rec.Run.EndedAt.IsZero() {
		t.Errorf("expected ended_at to be set")
	}
}

func TestExecutorStartIdempotentAndErrors(t *testing.T) {
	store := NewRunStore()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	e := newTestExecutor(store, WithSimulatorFactory(blockingFactory(entered, release)))
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[0, 600]")))

	if _, err := e.Start(""); !errors.Is(err, ErrRunIDMissing) {
		t.Errorf("expected ErrRunIDMissing, got %v", err)
	}
	if _, err := e.Start("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	if _, err := e.Start("r1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-entered
	rec, err := e.Start("r1")
	if err != nil || rec.Run.Status != models.RunStatusRunning {
		t.Errorf("second Start must be a no-op, got %v %v", rec.Run.Status, err)
	}
	close(release)

	waitRun(t, e, "r1")
	if _, err := e.Start("r1"); !errors.Is(err, ErrRunTerminal) {
		t.Errorf("expected ErrRunTerminal for a completed run, got %v", err)
	}
}

func TestExecutorFailingSimulator(t *testing.T) {
	store := NewRunStore()
	e := newTestExecutor(store, WithSimulatorFactory(func(cfg *config.SimulationConfig, _ cache.Cache) (simulator.Simulator, func() error, error) {
		return simulator.NewFailing(simulator.NewLinearModel(cfg), 2), func() error { return nil }, nil
	}))
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[600, 600, 600, 600]")))

	if _, err := e.Start("r1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec := waitRun(t, e, "r1")

	if rec.Run.Status != models.RunStatusFailed {
		t.Fatalf("expected failed, got %s", rec.Run.Status)
	}
	if rec.Run.FailedStep == nil || *rec.Run.FailedStep != 2 {
		t.Errorf("expected failed step 2, got %v", rec.Run.FailedStep)
	}
	if !strings.Contains(rec.Run.Error, "injected") {
		t.Errorf("expected injected failure in error, got %q", rec.Run.Error)
	}
	if rec.Summary == nil || rec.Summary.Steps != 2 {
		t.Errorf("expected partial summary of 2 steps, got %+v", rec.Summary)
	}
}

func TestExecutorSimulatorFactoryError(t *testing.T) {
	store := NewRunStore()
	e := newTestExecutor(store, WithSimulatorFactory(func(*config.SimulationConfig, cache.Cache) (simulator.Simulator, func() error, error) {
		return nil, nil, errors.New("dial failed")
	}))
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[0]")))

	e.Start("r1")
	rec := waitRun(t, e, "r1")
	if rec.Run.Status != models.RunStatusFailed || !strings.Contains(rec.Run.Error, "dial failed") {
		t.Errorf("expected failed run with dial error, got %s %q", rec.Run.Status, rec.Run.Error)
	}
}

func TestExecutorStopRunning(t *testing.T) {
	store := NewRunStore()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	e := newTestExecutor(store, WithSimulatorFactory(blockingFactory(entered, release)))
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[600, 600, 600, 600]")))

	if _, err := e.Start("r1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-entered

	rec, err := e.Stop("r1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if rec.Run.Status != models.RunStatusCancelled {
		t.Errorf("expected cancelled, got %s", rec.Run.Status)
	}
	close(release)

	// the step in flight commits, then the horizon ends before step 2
	rec = waitRun(t, e, "r1")
	if rec.Run.Status != models.RunStatusCancelled {
		t.Fatalf("expected run to stay cancelled, got %s", rec.Run.Status)
	}
	if rec.Summary == nil || rec.Summary.Steps != 2 {
		t.Errorf("expected 2 committed steps, got %+v", rec.Summary)
	}
}

func TestExecutorStopPending(t *testing.T) {
	store := NewRunStore()
	e := newTestExecutor(store)
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[0]")))

	rec, err := e.Stop("r1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if rec.Run.Status != models.RunStatusCancelled {
		t.Errorf("expected cancelled, got %s", rec.Run.Status)
	}
	if _, err := e.Start("r1"); !errors.Is(err, ErrRunTerminal) {
		t.Errorf("expected ErrRunTerminal, got %v", err)
	}
	if _, err := e.Stop("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExecutorShutdown(t *testing.T) {
	store := NewRunStore()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	e := newTestExecutor(store, WithSimulatorFactory(blockingFactory(entered, release)))
	store.Create("r1", RunInput{}, testConfig(t, plantConfigYAML("[600, 600, 600]")))

	e.Start("r1")
	<-entered

	// the run is still blocked in step 1, so the first wait times out after cancelling it
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if err := e.Shutdown(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	rec, _ := store.Get("r1")
	if rec.Run.Status != models.RunStatusCancelled {
		t.Errorf("expected cancelled after shutdown, got %s", rec.Run.Status)
	}
}

func TestExecutorNotifiesCallback(t *testing.T) {
	payloads := make(chan NotificationPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if r.URL.Path != "/hooks/r1" {
			t.Errorf("expected run ID in callback path, got %s", r.URL.Path)
		}
		payloads <- p
	}))
	defer srv.Close()

	store := NewRunStore()
	notifier := NewNotifierWithRetry(0, utils.NewBackoff(time.Millisecond, time.Millisecond, 1, false), time.Second)
	e := newTestExecutor(store, WithNotifier(notifier))
	callback := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/hooks/{run_id}"
	store.Create("r1", RunInput{CallbackURL: callback}, testConfig(t, plantConfigYAML("[600]")))

	e.Start("r1")
	waitRun(t, e, "r1")

	select {
	case p := <-payloads:
		if p.RunID != "r1" || p.Status != models.RunStatusCompleted || p.Summary == nil {
			t.Errorf("unexpected payload %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not delivered")
	}
}
