package scratch

import (
	"context"
	"fmt"

	"flowtap/internal/config"
	"flowtap/internal/engine"
	"flowtap/internal/execctx"
	"flowtap/internal/script"
)

// RuntimeError reports an unavailable dependency target to the caller. It
// replaces the engine's unknown/removed target failures on the inline path;
// every other failure passes through unchanged.
type RuntimeError struct {
	Target string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("unavailable target %s", e.Target)
}

// Executor runs one step inline, reusing and resetting the shared execution
// context between invocations.
type Executor struct {
	runner engine.StepRunner
}

// New wires a scratch executor to a step runner.
func New(runner engine.StepRunner) (*Executor, error) {
	if runner == nil {
		return nil, fmt.Errorf("scratch: step runner is required")
	}
	return &Executor{runner: runner}, nil
}

// Run executes the section inline and returns its last computed value.
//
// The context's per-invocation keys are cleared first so no run observes
// state from a prior unrelated invocation, then the resolved configuration is
// merged in and the analysis classifications are recorded before the step
// executes.
func (x *Executor) Run(ctx context.Context, section script.Section, ectx *execctx.Context, cfg config.Execution) (any, error) {
	ectx.ResetInvocation()
	ectx.MergeConfig(cfg.AsMap())
	ectx.Config["workflow_id"] = "0"
	ectx.Set("workflow_id", "0")

	analysis := AnalyzeSection(section)
	ectx.Invocation.SignatureVars = analysis.SignatureVars
	ectx.Invocation.EnvironVars = analysis.EnvironVars
	ectx.Invocation.ChangedVars = analysis.ChangedVars

	res, err := x.runner.RunStep(ctx, section, ectx)
	if err != nil {
		if target, ok := engine.TargetOf(err); ok {
			return nil, &RuntimeError{Target: target}
		}
		return nil, err
	}
	return res.LastValue, nil
}
