package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"flowtap/internal/artifact"
	"flowtap/internal/controller"
	"flowtap/internal/engine"
	"flowtap/internal/execctx"
	"flowtap/internal/script"
)

// EngineFactory builds the worker's private engine instance from the request
// envelope. The default wires a sequential engine over the Go-eval runner.
type EngineFactory func(req Request, ectx *execctx.Context) (engine.WorkflowEngine, error)

func defaultEngineFactory(_ Request, ectx *execctx.Context) (engine.WorkflowEngine, error) {
	return engine.NewSequential(engine.GoEvalRunner{}, ectx)
}

// Dialer opens the rendezvous channel back to the spawning session.
type Dialer func(addr string) (*controller.Client, error)

// Runtime is the in-process half of a spawned worker: it decodes the request
// envelope, runs the workflow with a private engine, and reports the outcome
// through the controller.
type Runtime struct {
	Engines EngineFactory
	Dial    Dialer
	Parser  script.Parser
	Log     Logger
}

// NewRuntime builds a runtime with the default engine, dialer, and parser.
func NewRuntime(log Logger) *Runtime {
	if log == nil {
		log = nopLogger{}
	}
	return &Runtime{
		Engines: defaultEngineFactory,
		Dial:    controller.Dial,
		Parser:  script.LineParser{},
		Log:     log,
	}
}

// Run executes one worker request read from in. Execution failures never
// propagate to the spawning process: they are pushed on the log channel and
// reported as a Failure outcome, and the handshake is symmetric: the worker
// always sends an outcome and always blocks for the acknowledgement before
// returning. The returned error covers only rendezvous faults (bad envelope,
// unreachable controller).
func (rt *Runtime) Run(ctx context.Context, in io.Reader) error {
	req, err := DecodeRequest(in)
	if err != nil {
		return err
	}
	client, err := rt.Dial(req.ControllerAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	res, runErr := rt.execute(ctx, req)

	var outcome controller.Outcome
	if runErr != nil {
		rt.Log.Printf("worker %s: %v", req.WorkerID, runErr)
		if err := client.PushLog("info", runErr.Error()); err != nil {
			rt.Log.Printf("worker %s: push log: %v", req.WorkerID, err)
		}
		outcome = controller.Failure(req.WorkerID, req.Workflow, runErr.Error())
	} else {
		if err := client.PushLog("info", "DONE"); err != nil {
			rt.Log.Printf("worker %s: push log: %v", req.WorkerID, err)
		}
		outcome = controller.Success(req.WorkerID, req.Workflow, encodeResult(res))
	}
	if err := client.SendOutcome(outcome); err != nil {
		return fmt.Errorf("worker: outcome rendezvous: %w", err)
	}
	rt.Log.Printf("worker %s: done", req.WorkerID)
	return nil
}

func (rt *Runtime) execute(ctx context.Context, req Request) (engine.Result, error) {
	if err := req.Config.Validate(); err != nil {
		return engine.Result{}, err
	}
	sc, err := rt.Parser.Parse(req.Code)
	if err != nil {
		return engine.Result{}, err
	}
	wf, err := sc.Workflow(req.Workflow)
	if err != nil {
		return engine.Result{}, err
	}
	store := artifact.NewStore(req.Config.Workdir)
	if _, err := store.WriteDAG(req.Config.OutputDAG, wf); err != nil {
		rt.Log.Printf("worker %s: %v", req.WorkerID, err)
	}
	ectx := execctx.New()
	ectx.MergeConfig(req.Config.AsMap())
	ectx.Config["workflow_args"] = req.Args
	eng, err := rt.Engines(req, ectx)
	if err != nil {
		return engine.Result{}, err
	}
	started := time.Now()
	res, err := eng.Run(ctx, wf, req.Targets)
	if err != nil {
		return res, err
	}
	if _, err := store.WriteReport(req.Config.OutputReport, wf, res, time.Since(started)); err != nil {
		rt.Log.Printf("worker %s: %v", req.WorkerID, err)
	}
	return res, nil
}

func encodeResult(res engine.Result) string {
	payload := map[string]any{}
	if res.LastValue != nil {
		payload["last_value"] = fmt.Sprintf("%v", res.LastValue)
	}
	if len(res.Report) > 0 {
		payload["report"] = res.Report
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}
