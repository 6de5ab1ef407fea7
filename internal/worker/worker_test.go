package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flowtap/internal/config"
	"flowtap/internal/controller"
	"flowtap/internal/engine"
	"flowtap/internal/execctx"
	"flowtap/internal/script"
)

func interactiveConfig() config.Execution {
	return config.Execution{RunMode: config.RunModeInteractive, SigMode: config.SigModeDefault}
}

func startController(t *testing.T) *controller.Handle {
	t.Helper()
	h, err := controller.Start(controller.StartOptions{ReadyTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("start controller: %v", err)
	}
	t.Cleanup(func() { _ = controller.Stop(h) })
	return h
}

func envelope(t *testing.T, h *controller.Handle, code, workflow string) *strings.Reader {
	t.Helper()
	req := NewRequest(code, workflow, interactiveConfig())
	req.ControllerAddr = h.Addr()
	var b strings.Builder
	if err := req.Encode(&b); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	return strings.NewReader(b.String())
}

func waitForLog(t *testing.T, h *controller.Handle, contains string) controller.TailSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := h.Tail()
		if err != nil {
			t.Fatalf("tail: %v", err)
		}
		for _, entry := range snap.Logs {
			if strings.Contains(entry.Text, contains) {
				return snap
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("log entry %q never arrived: %+v", contains, snap.Logs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRuntimeSuccessHandshake(t *testing.T) {
	h := startController(t)
	rt := NewRuntime(nil)
	in := envelope(t, h, "[align_1]\n6 * 7\n", "align")
	if err := rt.Run(context.Background(), in); err != nil {
		t.Fatalf("runtime run: %v", err)
	}
	snap := waitForLog(t, h, "DONE")
	if len(snap.Outcomes) != 1 {
		t.Fatalf("expected one outcome, got %+v", snap.Outcomes)
	}
	o := snap.Outcomes[0]
	if o.Status != controller.OutcomeSuccess || o.Workflow != "align" {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if !strings.Contains(o.Payload, "42") {
		t.Fatalf("payload missing last value: %q", o.Payload)
	}
}

func TestRuntimeFailureDeliversTextOnLogChannel(t *testing.T) {
	h := startController(t)
	boom := errors.New("step align_1 exploded")
	rt := NewRuntime(nil)
	rt.Engines = func(Request, *execctx.Context) (engine.WorkflowEngine, error) {
		return failingEngine{err: boom}, nil
	}
	in := envelope(t, h, "[align_1]\nx := 1\n", "align")
	if err := rt.Run(context.Background(), in); err != nil {
		t.Fatalf("runtime run must not propagate execution failure: %v", err)
	}
	snap := waitForLog(t, h, "exploded")
	if len(snap.Outcomes) != 1 || snap.Outcomes[0].Status != controller.OutcomeFailure {
		t.Fatalf("expected failure outcome, got %+v", snap.Outcomes)
	}
	if !strings.Contains(snap.Outcomes[0].Message, "exploded") {
		t.Fatalf("failure message lost: %+v", snap.Outcomes[0])
	}
	// The spawning process is untouched: the handle still answers requests.
	if _, err := h.Request(controller.Envelope{Kind: controller.KindRequest, Op: controller.OpPing}); err != nil {
		t.Fatalf("spawner blocked or crashed: %v", err)
	}
}

type failingEngine struct {
	err error
}

func (f failingEngine) Run(context.Context, *script.Workflow, []string) (engine.Result, error) {
	return engine.Result{}, f.err
}

func TestRuntimeWritesConfiguredArtifacts(t *testing.T) {
	h := startController(t)
	dir := t.TempDir()
	cfg := interactiveConfig()
	cfg.Workdir = dir
	cfg.OutputDAG = "run.dot"
	cfg.OutputReport = "run.html"
	req := NewRequest("[align_1]\n6 * 7\n", "align", cfg)
	req.ControllerAddr = h.Addr()
	var b strings.Builder
	if err := req.Encode(&b); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	rt := NewRuntime(nil)
	if err := rt.Run(context.Background(), strings.NewReader(b.String())); err != nil {
		t.Fatalf("runtime run: %v", err)
	}
	for _, name := range []string{"run.dot", "run.html"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("artifact %s not written: %v", name, err)
		}
	}
}

func TestRuntimeRejectsBadEnvelope(t *testing.T) {
	rt := NewRuntime(nil)
	if err := rt.Run(context.Background(), strings.NewReader("{}\n")); err == nil {
		t.Fatalf("expected error for incomplete envelope")
	}
}

func TestDecodeRequestRoundTrip(t *testing.T) {
	req := NewRequest("[a_1]\nx := 1\n", "a", interactiveConfig())
	req.ControllerAddr = "127.0.0.1:9"
	var b strings.Builder
	if err := req.Encode(&b); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRequest(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WorkerID != req.WorkerID || got.Workflow != "a" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCoordinatorLaunchReturnsImmediately(t *testing.T) {
	c := &Coordinator{Binary: "sleep", Entry: []string{"1"}}
	req := NewRequest("[a_1]\nx := 1\n", "a", interactiveConfig())
	req.ControllerAddr = "127.0.0.1:9"
	start := time.Now()
	if err := c.Launch(req); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("launch blocked on worker completion: %v", elapsed)
	}
}

func TestCoordinatorValidatesEnvelope(t *testing.T) {
	c := &Coordinator{Binary: "true"}
	if err := c.Launch(Request{}); err == nil {
		t.Fatalf("expected error for empty envelope")
	}
}
