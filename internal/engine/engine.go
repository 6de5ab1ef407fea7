package engine

import (
	"context"
	"fmt"

	"flowtap/internal/execctx"
	"flowtap/internal/script"
)

// Result is what a step or workflow run produces. LastValue carries the last
// computed value of the final step; Report holds engine-specific summary data.
type Result struct {
	LastValue any
	Report    map[string]any
}

// StepRunner executes a single section against the shared execution context.
type StepRunner interface {
	RunStep(ctx context.Context, section script.Section, ectx *execctx.Context) (Result, error)
}

// WorkflowEngine executes a whole workflow, optionally restricted to targets.
type WorkflowEngine interface {
	Run(ctx context.Context, wf *script.Workflow, targets []string) (Result, error)
}

// Sequential is the default workflow engine: it drives a StepRunner over the
// workflow's sections in document order and returns the last result. Target
// restriction narrows execution to the named sections.
type Sequential struct {
	Runner StepRunner
	Ctx    *execctx.Context
}

// NewSequential wires a sequential engine to a step runner and context.
func NewSequential(runner StepRunner, ectx *execctx.Context) (*Sequential, error) {
	if runner == nil {
		return nil, fmt.Errorf("engine: step runner is required")
	}
	if ectx == nil {
		return nil, fmt.Errorf("engine: execution context is required")
	}
	return &Sequential{Runner: runner, Ctx: ectx}, nil
}

// Run executes the workflow's sections in order.
func (e *Sequential) Run(ctx context.Context, wf *script.Workflow, targets []string) (Result, error) {
	if wf == nil || len(wf.Sections) == 0 {
		return Result{}, fmt.Errorf("engine: workflow has no sections")
	}
	wanted := map[string]bool{}
	for _, t := range targets {
		wanted[t] = true
	}
	var last Result
	ran := 0
	for _, section := range wf.Sections {
		if len(wanted) > 0 && !wanted[section.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return last, err
		}
		res, err := e.Runner.RunStep(ctx, section, e.Ctx)
		if err != nil {
			return last, err
		}
		last = res
		ran++
	}
	if len(wanted) > 0 && ran == 0 {
		for _, t := range targets {
			return last, &UnknownTargetError{Target: t}
		}
	}
	return last, nil
}
