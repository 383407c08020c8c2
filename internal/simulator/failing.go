package simulator

import (
	"context"
	"errors"
	"fmt"
)

// ErrInjected is returned by FailingSimulator at its configured step
var ErrInjected = errors.New("injected simulator failure")

// FailingSimulator wraps another simulator and fails at one step index
type FailingSimulator struct {
	Inner  Simulator
	FailAt int
}

// NewFailing creates a fault-injecting wrapper
func NewFailing(inner Simulator, failAt int) *FailingSimulator {
	return &FailingSimulator{Inner: inner, FailAt: failAt}
}

func (f *FailingSimulator) SimulateStep(ctx context.Context, req StepRequest) (StepResponse, error) {
	if req.Step == f.FailAt {
		return StepResponse{}, fmt.Errorf("step %d: %w", req.Step, ErrInjected)
	}
	return f.Inner.SimulateStep(ctx, req)
}
