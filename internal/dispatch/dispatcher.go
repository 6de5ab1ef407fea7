package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"flowtap/internal/config"
	"flowtap/internal/controller"
	"flowtap/internal/engine"
	"flowtap/internal/execctx"
	"flowtap/internal/remote"
	"flowtap/internal/scratch"
	"flowtap/internal/worker"
)

// Sink receives stream messages and usage text for the caller's frontend.
type Sink interface {
	Stream(name, text string)
}

type discardSink struct{}

func (discardSink) Stream(string, string) {}

// Dispatcher owns the execution paths and the shared execution context. One
// dispatch is in flight at a time per context; concurrent dispatches against
// the same dispatcher are the caller's error.
type Dispatcher struct {
	Ctx         *execctx.Context
	Scratch     *scratch.Executor
	Remote      *remote.Delegator
	Coordinator *worker.Coordinator
	Handle      *controller.Handle

	Sink   Sink
	Stderr io.Writer
	Clock  func() time.Time

	ProjectDir string
}

// New assembles a dispatcher around an execution context and controller
// handle, with the default scratch, remote, and worker paths.
func New(ectx *execctx.Context, handle *controller.Handle, sink Sink, projectDir string) (*Dispatcher, error) {
	if ectx == nil {
		return nil, fmt.Errorf("dispatch: execution context is required")
	}
	if sink == nil {
		sink = discardSink{}
	}
	scratchExec, err := scratch.New(engine.GoEvalRunner{})
	if err != nil {
		return nil, err
	}
	delegator, err := remote.New(sinkAdapter{sink})
	if err != nil {
		return nil, err
	}
	coordinator, err := worker.NewCoordinator(nil)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		Ctx:         ectx,
		Scratch:     scratchExec,
		Remote:      delegator,
		Coordinator: coordinator,
		Handle:      handle,
		Sink:        sink,
		Stderr:      io.Discard,
		Clock:       time.Now,
		ProjectDir:  projectDir,
	}, nil
}

type sinkAdapter struct {
	sink Sink
}

func (a sinkAdapter) Stream(name, text string) { a.sink.Stream(name, text) }

// Dispatch inspects the request, selects exactly one execution path, and
// runs it. Inline runs return the step's last computed value; worker
// dispatches return as soon as the process is launched; remote dispatches
// return after the remote command finishes.
func (d *Dispatcher) Dispatch(ctx context.Context, req ExecutionRequest) (result any, err error) {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	inv, err := Decide(req, clock())
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, nil
	}
	switch v := inv.(type) {
	case HelpInvocation:
		d.stream("stdout", Usage())
		return nil, nil
	case RemoteInvocation:
		return nil, d.Remote.Delegate(ctx, remote.Delegation{
			Host:       v.Host,
			Code:       v.Code,
			ConfigFile: v.ConfigFile,
			ProjectDir: d.ProjectDir,
			Args:       v.Args,
		})
	case WorkflowInvocation:
		return nil, d.launchWorker(v)
	case ScratchInvocation:
		return d.runScratch(ctx, v)
	default:
		return nil, fmt.Errorf("dispatch: unhandled invocation %T", inv)
	}
}

func (d *Dispatcher) launchWorker(inv WorkflowInvocation) error {
	if d.Handle == nil {
		return fmt.Errorf("dispatch: workflow mode requires a running controller")
	}
	if err := config.SetupBinDirs(inv.Config.BinDirs); err != nil {
		return err
	}
	req := worker.NewRequest(inv.Code, inv.Workflow, inv.Config)
	req.ControllerAddr = d.Handle.Addr()
	req.Args = inv.Args
	req.Targets = inv.Targets
	req.ProjectDir = d.ProjectDir
	return d.Coordinator.Launch(req)
}

func (d *Dispatcher) runScratch(ctx context.Context, inv ScratchInvocation) (result any, err error) {
	if err := config.SetupBinDirs(inv.Config.BinDirs); err != nil {
		return nil, err
	}
	defer func() {
		// The shared context leaves every dispatch in a known state.
		d.Ctx.Config["sig_mode"] = config.SigModeIgnore
		d.Ctx.Config["verbosity"] = 2
	}()
	result, err = d.Scratch.Run(ctx, inv.Section, d.Ctx, inv.Config)
	if err == nil {
		return result, nil
	}
	// Benign termination: the engine exited because nothing needed
	// resuming.
	if errors.Is(err, engine.ErrNothingToResume) {
		return nil, nil
	}
	// Pending work is re-raised unmodified so the caller can retry.
	var pending *engine.PendingWorkError
	if errors.As(err, &pending) {
		return nil, err
	}
	if inv.Config.Verbosity > 2 {
		fmt.Fprintf(d.Stderr, "%v\n%s", err, debug.Stack())
	}
	return nil, err
}

func (d *Dispatcher) stream(name, text string) {
	if d.Sink == nil {
		return
	}
	d.Sink.Stream(name, text)
}
