package execctx

import "testing"

func TestResetInvocationClearsPerInvocationKeys(t *testing.T) {
	ctx := New()
	ctx.Invocation.StepInput = []string{"a.txt"}
	ctx.Invocation.StepOutput = []string{"b.txt"}
	ctx.Invocation.SignatureVars = []string{"x"}
	ctx.ResetInvocation()
	inv := ctx.Invocation
	if inv.StepInput != nil || inv.StepOutput != nil || inv.StepDepends != nil {
		t.Fatalf("step keys survived reset: %+v", inv)
	}
	if inv.SignatureVars != nil || inv.EnvironVars != nil || inv.ChangedVars != nil {
		t.Fatalf("classification keys survived reset: %+v", inv)
	}
}

func TestResetInvocationKeepsVarsAndConfig(t *testing.T) {
	ctx := New()
	ctx.Set("sample", 42)
	ctx.MergeConfig(map[string]any{"run_mode": "interactive"})
	ctx.ResetInvocation()
	if v, ok := ctx.Get("sample"); !ok || v != 42 {
		t.Fatalf("variable binding lost across reset")
	}
	if ctx.Config["run_mode"] != "interactive" {
		t.Fatalf("config lost across reset")
	}
}

func TestMergeConfigOverlays(t *testing.T) {
	ctx := New()
	ctx.MergeConfig(map[string]any{"verbosity": 1, "run_mode": "dryrun"})
	ctx.MergeConfig(map[string]any{"verbosity": 3})
	if ctx.Config["verbosity"] != 3 || ctx.Config["run_mode"] != "dryrun" {
		t.Fatalf("unexpected merged config: %+v", ctx.Config)
	}
}
