package simd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/metrics"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

const maxSweepJobs = 256

// maxRequestBytes caps POST bodies; a full-length hourly series fits well within it
const maxRequestBytes = 16 << 20

type HTTPServer struct {
	mux       *http.ServeMux
	store     *RunStore
	Executor  *RunExecutor
	exporter  *metrics.Exporter
	optimizer OptimizationRunner
}

// NewHTTPServer wires the run API; exporter may be nil, in which case /metrics is not served
func NewHTTPServer(store *RunStore, executor *RunExecutor, exporter *metrics.Exporter) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
		exporter: exporter,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)
	s.mux.HandleFunc("/v1/sweeps", s.handleSweeps)
	if exporter != nil {
		s.mux.Handle("/metrics", exporter.Handler())
	}

	return s
}

// WithOptimizer serves POST /v1/optimizations through runner
func (s *HTTPServer) WithOptimizer(runner OptimizationRunner) *HTTPServer {
	s.optimizer = runner
	s.mux.HandleFunc("/v1/optimizations", s.handleOptimizations)
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id} and its actions and sub-resources
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	for _, action := range []struct {
		suffix string
		method string
		handle func(http.ResponseWriter, *http.Request, string)
	}{
		{":start", http.MethodPost, s.handleStartRun},
		{":stop", http.MethodPost, s.handleStopRun},
		{"/summary", http.MethodGet, s.handleGetSummary},
		{"/timeseries", http.MethodGet, s.handleTimeSeries},
		{"/cost", http.MethodGet, s.handleGetCost},
	} {
		if runID, ok := strings.CutSuffix(path, action.suffix); ok {
			if r.Method != action.method {
				s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			action.handle(w, r, runID)
			return
		}
	}

	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createRunRequest struct {
	RunID string    `json:"run_id,omitempty"`
	Input *RunInput `json:"input"`
	Start bool      `json:"start,omitempty"`
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil || req.Input.ConfigYAML == "" {
		s.writeError(w, http.StatusBadRequest, "input.config_yaml is required")
		return
	}

	cfg, err := config.ParseUntrustedConfigYAMLString(req.Input.ConfigYAML)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec, err := s.store.Create(req.RunID, *req.Input, cfg)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	logger.Info("run created (HTTP)", "run_id", rec.Run.ID, "steps", cfg.Steps())

	if req.Start {
		rec, err = s.Executor.Start(rec.Run.ID)
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": convertRunToJSON(rec),
	})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	status := models.RunStatus(strings.ToLower(r.URL.Query().Get("status")))

	runs := s.store.List(limit, offset, status)
	runsJSON := make([]map[string]any, 0, len(runs))
	for _, rec := range runs {
		runsJSON = append(runsJSON, convertRunToJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runsJSON,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": convertRunToJSON(rec),
	})
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	logger.Info("run started (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": convertRunToJSON(updated),
	})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": convertRunToJSON(updated),
	})
}

// handleGetSummary handles GET /v1/runs/{id}/summary
func (s *HTTPServer) handleGetSummary(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Summary == nil {
		s.writeError(w, http.StatusPreconditionFailed, "summary not available")
		return
	}

	sum := rec.Summary
	derived := map[string]any{
		"co2_captured_tonnes":  sum.TotalCO2CapturedTonnes(),
		"co2_capture_tpy":      sum.AnnualCO2CaptureTonnes(),
		"mode_hours":           sum.ModeHours(),
		"duration_hours":       sum.DurationHours(),
		"capacity_factor":      sum.CapacityFactor(rec.Config.EDUnit.CapacityKW()),
		"energy_kwh_per_tonne": nil,
	}
	if sum.TotalCO2CapturedKg > 0 {
		derived["energy_kwh_per_tonne"] = sum.SpecificEnergyKWhPerTonne()
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"summary": sum,
		"derived": derived,
	})
}

// handleGetCost handles GET /v1/runs/{id}/cost
func (s *HTTPServer) handleGetCost(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Cost == nil {
		s.writeError(w, http.StatusPreconditionFailed, "cost report not available")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"cost":   rec.Cost,
	})
}

// handleTimeSeries handles GET /v1/runs/{id}/timeseries
func (s *HTTPServer) handleTimeSeries(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	collector := rec.Collector
	if collector == nil {
		s.writeError(w, http.StatusPreconditionFailed, "time-series metrics not available")
		return
	}

	q := r.URL.Query()
	var startTime, endTime time.Time
	var err error
	if v := q.Get("start_time"); v != "" {
		if startTime, err = parseTime(v); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start_time format: "+err.Error())
			return
		}
	}
	if v := q.Get("end_time"); v != "" {
		if endTime, err = parseTime(v); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end_time format: "+err.Error())
			return
		}
	}

	metricNames := collector.GetMetricNames()
	if name := q.Get("metric"); name != "" {
		metricNames = []string{name}
	}
	mode := q.Get("mode")

	var points []models.MetricPoint
	for _, name := range metricNames {
		combos := collector.GetLabelsForMetric(name)
		if len(combos) == 0 {
			continue
		}
		for _, labels := range combos {
			if mode != "" && labels["mode"] != mode {
				continue
			}
			points = append(points, collector.GetTimeSeries(name, labels)...)
		}
	}

	pointsJSON := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if !startTime.IsZero() && p.Timestamp.Before(startTime) {
			continue
		}
		if !endTime.IsZero() && p.Timestamp.After(endTime) {
			continue
		}
		pointsJSON = append(pointsJSON, map[string]any{
			"timestamp": p.Timestamp.Format(time.RFC3339),
			"step":      p.Step,
			"metric":    p.Name,
			"value":     p.Value,
			"labels":    p.Labels,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"points": pointsJSON,
	})
}

type sweepRequest struct {
	ConfigsYAML []string `json:"configs_yaml"`
	Limit       int      `json:"limit,omitempty"`
}

// handleSweeps handles POST /v1/sweeps: runs independent horizons concurrently and waits for all
func (s *HTTPServer) handleSweeps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req sweepRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.ConfigsYAML) == 0 || len(req.ConfigsYAML) > maxSweepJobs {
		s.writeError(w, http.StatusBadRequest, "configs_yaml must hold between 1 and 256 configs")
		return
	}

	jobs := make([]engine.Job, len(req.ConfigsYAML))
	for i, text := range req.ConfigsYAML {
		cfg, err := config.ParseUntrustedConfigYAMLString(text)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "config "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		jobs[i] = engine.Job{Config: cfg, Options: []engine.Option{engine.WithLogger(s.Executor.logger)}}
		if s.exporter != nil {
			jobs[i].Options = append(jobs[i].Options, engine.WithObserver(s.exporter))
		}
	}

	results := engine.RunBatch(r.Context(), jobs, req.Limit)
	out := make([]map[string]any, len(results))
	for i, res := range results {
		item := map[string]any{
			"index":   i,
			"run_id":  res.RunID,
			"summary": res.Summary,
		}
		if res.Err != nil {
			item["error"] = res.Err.Error()
			if step, ok := models.FailedStep(res.Err); ok {
				item["failed_step"] = step
			}
		}
		out[i] = item
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

type optimizationRequest struct {
	ConfigYAML string `json:"config_yaml"`
	OptimizationParams
}

// handleOptimizations handles POST /v1/optimizations: tunes a config and waits for the result
func (s *HTTPServer) handleOptimizations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req optimizationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConfigYAML == "" {
		s.writeError(w, http.StatusBadRequest, "config_yaml is required")
		return
	}
	cfg, err := config.ParseUntrustedConfigYAMLString(req.ConfigYAML)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	outcome, err := s.optimizer.RunOptimization(r.Context(), cfg, req.OptimizationParams)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// statusForError maps service and domain errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, ErrInvalidRunID):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunExists), errors.Is(err, ErrRunTerminal):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseTime parses time from RFC3339 or Unix milliseconds
func parseTime(timeStr string) (time.Time, error) {
	if unixMs, err := strconv.ParseInt(timeStr, 10, 64); err == nil {
		return time.UnixMilli(unixMs).UTC(), nil
	}
	for _, format := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unable to parse time format")
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func convertRunToJSON(rec RunRecord) map[string]any {
	out := map[string]any{
		"id":         rec.Run.ID,
		"status":     string(rec.Run.Status),
		"created_at": rec.Run.CreatedAt.Format(time.RFC3339Nano),
		"steps_done": rec.StepsDone,
		"error":      rec.Run.Error,
	}
	if rec.Config != nil {
		out["steps_total"] = rec.Config.Steps()
	}
	if !rec.Run.StartedAt.IsZero() {
		out["started_at"] = rec.Run.StartedAt.Format(time.RFC3339Nano)
	}
	if !rec.Run.EndedAt.IsZero() {
		out["ended_at"] = rec.Run.EndedAt.Format(time.RFC3339Nano)
	}
	if rec.Run.FailedStep != nil {
		out["failed_step"] = *rec.Run.FailedStep
	}
	if len(rec.Run.Metadata) > 0 {
		out["metadata"] = rec.Run.Metadata
	}
	return out
}
