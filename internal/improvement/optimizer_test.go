package improvement

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

func TestNewOptimizer(t *testing.T) {
	opt := NewOptimizer(&CaptureObjective{}, 10, 1.0)
	if opt.maxIterations != 10 || opt.stepSize != 1.0 {
		t.Fatalf("unexpected optimizer %+v", opt)
	}
	if opt.bestScore != math.MaxFloat64 {
		t.Fatalf("expected initial bestScore to be MaxFloat64")
	}
	if NewOptimizer(&CaptureObjective{}, 10, 0).stepSize != 1.0 {
		t.Fatalf("expected default stepSize 1.0")
	}
}

func TestHorizonEvaluator(t *testing.T) {
	base := plantConfig(t, "[0, 600, 950]", "")
	withCost := base.Clone()
	withCost.Cost = &config.CostConfig{CapexPerEDUnitUSD: "100000", ElectricityUSDPerKWh: "0.05"}

	out := NewHorizonEvaluator(2).Evaluate(context.Background(), []*config.SimulationConfig{base, withCost})
	if out[0].Err != nil || out[0].Evaluation.Summary.TotalCO2CapturedKg != 155 {
		t.Fatalf("unexpected outcome %+v", out[0])
	}
	if out[0].Evaluation.Cost != nil || out[0].Evaluation.CapacityKW != 1000 {
		t.Errorf("unexpected evaluation %+v", out[0].Evaluation)
	}
	if out[1].Err != nil || out[1].Evaluation.Cost == nil || !out[1].Evaluation.Cost.CaptureRecorded {
		t.Errorf("expected cost report, got %+v", out[1])
	}
}

func TestOptimizeGrowsPlantForCapture(t *testing.T) {
	// 1500 kW is curtailed at 1000 kW; each extra stack captures 10 kg more
	base := plantConfig(t, "[300, 1500]", "")
	opt := NewOptimizer(&CaptureObjective{}, 20, 1).
		WithExplorer(NewDefaultExplorer().WithMaxUnits(12))

	result, err := opt.Optimize(context.Background(), base, NewHorizonEvaluator(4))
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.InitialScore != -100 {
		t.Errorf("expected initial score -100, got %f", result.InitialScore)
	}
	if math.Abs(result.BestScore+120) > 1e-9 {
		t.Errorf("expected best score -120, got %f", result.BestScore)
	}
	if result.BestConfig.EDUnit.NumberEDMax != 12 {
		t.Errorf("expected 12 stacks, got %d", result.BestConfig.EDUnit.NumberEDMax)
	}
	if !result.Converged || !strings.Contains(result.ConvergenceReason, "no improvement") {
		t.Errorf("expected convergence, got %v %q", result.Converged, result.ConvergenceReason)
	}
	if result.Iterations != 5 || len(result.History) != 6 {
		t.Errorf("expected 5 iterations, got %d (history %d)", result.Iterations, len(result.History))
	}
	if result.History[3].StepSize != 0.5 {
		t.Errorf("expected step halved after a failed climb, got %f", result.History[3].StepSize)
	}
	if result.Objective != "co2_captured" {
		t.Errorf("unexpected objective %q", result.Objective)
	}
	if base.EDUnit.NumberEDMax != 10 {
		t.Errorf("initial config was modified")
	}
}

func TestOptimizeSkipsFailedCandidates(t *testing.T) {
	base := plantConfig(t, "[600]", "")
	calls := 0
	eval := EvaluatorFunc(func(ctx context.Context, cfgs []*config.SimulationConfig) []Outcome {
		calls++
		out := make([]Outcome, len(cfgs))
		for i, c := range cfgs {
			partial, _, _ := c.Policy.Thresholds(c.EDUnit)
			if partial < 500 {
				out[i].Err = &models.ExternalModelError{Step: 1, Err: errors.New("boom")}
				continue
			}
			// lower partial thresholds score better, but they fail
			out[i].Evaluation = Evaluation{Summary: models.HorizonSummary{TotalEnergyCurtailedKWh: partial}}
		}
		return out
	})

	result, err := NewOptimizer(&CurtailmentObjective{}, 2, 1).
		WithExplorer(NewDefaultExplorer().WithDesign(false)).
		Optimize(context.Background(), base, eval)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.BestScore != 500 || result.Converged {
		t.Errorf("expected best 500 after max iterations, got %+v", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 evaluator calls, got %d", calls)
	}
}

func TestOptimizeErrors(t *testing.T) {
	base := plantConfig(t, "[600]", "")
	opt := NewOptimizer(&CaptureObjective{}, 3, 1)

	if _, err := opt.Optimize(context.Background(), nil, NewHorizonEvaluator(1)); err == nil {
		t.Errorf("expected error for nil config")
	}
	if _, err := opt.Optimize(context.Background(), base, nil); err == nil {
		t.Errorf("expected error for nil evaluator")
	}

	failing := EvaluatorFunc(func(ctx context.Context, cfgs []*config.SimulationConfig) []Outcome {
		return []Outcome{{Err: errors.New("unreachable simulator")}}
	})
	if _, err := opt.Optimize(context.Background(), base, failing); err == nil || !strings.Contains(err.Error(), "initial configuration") {
		t.Errorf("expected initial evaluation error, got %v", err)
	}
}

func TestOptimizeCancelled(t *testing.T) {
	base := plantConfig(t, "[600]", "")
	ctx, cancel := context.WithCancel(context.Background())
	eval := EvaluatorFunc(func(_ context.Context, cfgs []*config.SimulationConfig) []Outcome {
		cancel()
		return make([]Outcome, len(cfgs))
	})

	result, err := NewOptimizer(&CurtailmentObjective{}, 10, 1).Optimize(ctx, base, eval)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Converged || result.ConvergenceReason != "cancelled" || result.BestConfig == nil {
		t.Errorf("expected partial result, got %+v", result)
	}
}
