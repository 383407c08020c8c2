package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/simulator"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// Job is one independent horizon of a batch
type Job struct {
	Config    *config.SimulationConfig
	Simulator simulator.Simulator // built from Config when nil
	Options   []Option
}

// BatchResult is the outcome of one job, at the same index as the job
type BatchResult struct {
	RunID   string
	Summary *models.HorizonSummary
	Err     error
}

// RunBatch runs independent horizons concurrently with at most limit in flight (limit <= 0: unbounded).
// A failing horizon does not stop the others; ctx cancellation stops each between steps.
func RunBatch(ctx context.Context, jobs []Job, limit int) []BatchResult {
	results := make([]BatchResult, len(jobs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runJob(ctx context.Context, job Job) BatchResult {
	sim := job.Simulator
	if sim == nil {
		if job.Config == nil {
			return BatchResult{Err: &models.InvalidInputError{Field: "config", Value: nil, Reason: "is required"}}
		}
		built, closeFn, err := simulator.FromConfig(job.Config, nil)
		if err != nil {
			return BatchResult{Err: fmt.Errorf("failed to build simulator: %w", err)}
		}
		defer closeFn()
		sim = built
	}

	h, err := NewHorizon(job.Config, sim, job.Options...)
	if err != nil {
		return BatchResult{Err: err}
	}
	summary, err := h.Run(ctx)
	return BatchResult{RunID: h.RunID(), Summary: summary, Err: err}
}
