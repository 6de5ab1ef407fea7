package scratch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"flowtap/internal/config"
	"flowtap/internal/engine"
	"flowtap/internal/execctx"
	"flowtap/internal/script"
)

func TestAnalyzeSectionClassifiesVariables(t *testing.T) {
	section := script.Section{Name: "scratch_0", Body: "" +
		"home := os.Getenv(\"HOME\")\n" +
		"total := base + offset // uses ${THREADS}\n" +
		"total = total * 2\n"}
	got := AnalyzeSection(section)
	if !reflect.DeepEqual(got.ChangedVars, []string{"home", "total"}) {
		t.Fatalf("changed = %+v", got.ChangedVars)
	}
	if !reflect.DeepEqual(got.EnvironVars, []string{"HOME"}) {
		t.Fatalf("environ = %+v", got.EnvironVars)
	}
	// base and offset are read without being assigned; os is the package
	// qualifier of the env lookup.
	if !reflect.DeepEqual(got.SignatureVars, []string{"Getenv", "base", "offset", "os"}) {
		t.Fatalf("signature = %+v", got.SignatureVars)
	}
}

func TestAnalyzeSectionEnvExpr(t *testing.T) {
	got := AnalyzeSection(script.Section{Body: "cmd := \"sort --parallel ${THREADS}\"\n"})
	if !reflect.DeepEqual(got.EnvironVars, []string{"THREADS"}) {
		t.Fatalf("environ = %+v", got.EnvironVars)
	}
}

type stubRunner struct {
	err      error
	last     any
	observed execctx.Invocation
}

func (s *stubRunner) RunStep(_ context.Context, _ script.Section, ectx *execctx.Context) (engine.Result, error) {
	s.observed = ectx.Invocation
	if s.err != nil {
		return engine.Result{}, s.err
	}
	return engine.Result{LastValue: s.last}, nil
}

func interactiveConfig() config.Execution {
	return config.Execution{RunMode: config.RunModeInteractive, SigMode: config.SigModeDefault}
}

func TestRunClearsStaleInvocationState(t *testing.T) {
	runner := &stubRunner{last: 7}
	x, err := New(runner)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	ectx := execctx.New()
	ectx.Invocation.StepInput = []string{"stale.txt"}
	ectx.Invocation.StepOutput = []string{"stale.out"}

	got, err := x.Run(context.Background(), script.Section{Name: "scratch_0", Body: "x := 7\n"}, ectx, interactiveConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != 7 {
		t.Fatalf("unexpected result: %v", got)
	}
	if runner.observed.StepInput != nil || runner.observed.StepOutput != nil {
		t.Fatalf("stale step keys leaked into run: %+v", runner.observed)
	}
	if len(runner.observed.ChangedVars) != 1 || runner.observed.ChangedVars[0] != "x" {
		t.Fatalf("analysis not recorded before run: %+v", runner.observed)
	}
}

func TestRunMergesConfigIntoContext(t *testing.T) {
	runner := &stubRunner{}
	x, _ := New(runner)
	ectx := execctx.New()
	cfg := interactiveConfig()
	cfg.Workflow = "align"
	if _, err := x.Run(context.Background(), script.Section{Body: "x := 1\n"}, ectx, cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ectx.Config["workflow"] != "align" {
		t.Fatalf("config not merged: %+v", ectx.Config["workflow"])
	}
	if ectx.Config["workflow_id"] != "0" {
		t.Fatalf("workflow id not pinned: %+v", ectx.Config["workflow_id"])
	}
}

func TestRunConvertsTargetFailures(t *testing.T) {
	runner := &stubRunner{err: &engine.UnknownTargetError{Target: "ref.fa"}}
	x, _ := New(runner)
	_, err := x.Run(context.Background(), script.Section{Body: "x := 1\n"}, execctx.New(), interactiveConfig())
	var rt *RuntimeError
	if !errors.As(err, &rt) || rt.Target != "ref.fa" {
		t.Fatalf("expected runtime error naming ref.fa, got %v", err)
	}
}

func TestRunDoesNotMaskOtherErrors(t *testing.T) {
	pending := &engine.PendingWorkError{Tasks: []string{"t1"}}
	runner := &stubRunner{err: pending}
	x, _ := New(runner)
	_, err := x.Run(context.Background(), script.Section{Body: "x := 1\n"}, execctx.New(), interactiveConfig())
	var pw *engine.PendingWorkError
	if !errors.As(err, &pw) {
		t.Fatalf("pending work error was masked: %v", err)
	}
}
