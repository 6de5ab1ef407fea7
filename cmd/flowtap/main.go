// cmd/flowtap/main.go
//
// Entry point for the flowtap CLI.
//
// Flow:
// 1. `flowtap run SCRIPT [workflow] [options]` starts the controller, spawns
//    an isolated worker for the workflow, and waits for its outcome.
// 2. `flowtap exec [options]` (or no subcommand) reads code from stdin and
//    runs it inline, delegates it to a remote host under -r, or prints usage.
// 3. `flowtap monitor ADDR` attaches the TUI to a running controller.
// 4. The hidden `__worker` subcommand is how spawned workers re-enter this
//    binary; it is never typed by a user.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"flowtap/internal/config"
	"flowtap/internal/controller"
	"flowtap/internal/dispatch"
	"flowtap/internal/execctx"
	"flowtap/internal/logging"
	"flowtap/internal/tui"
	"flowtap/internal/worker"
)

const outcomePollInterval = 200 * time.Millisecond

func main() {
	args := os.Args[1:]
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case worker.EntryCommand:
		runWorker()
	case "monitor":
		runMonitor(args[1:])
	case "run":
		runWorkflow(args[1:])
	case "exec":
		runInline(args[1:])
	default:
		runInline(args)
	}
}

// stdoutSink routes dispatcher stream messages to the terminal.
type stdoutSink struct{}

func (stdoutSink) Stream(name, text string) {
	out := os.Stdout
	if name == "stderr" {
		out = os.Stderr
	}
	fmt.Fprintln(out, text)
}

// runWorker is the spawned-process half: the request envelope arrives on
// stdin and every result travels back over the controller channels.
func runWorker() {
	cwd, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}
	log, err := logging.New(cwd)
	if err != nil {
		die("open session log: %v", err)
	}
	defer log.Close()
	if err := worker.NewRuntime(log).Run(context.Background(), os.Stdin); err != nil {
		log.Printf("worker: %v", err)
		os.Exit(1)
	}
}

func runMonitor(args []string) {
	if len(args) != 1 {
		die("usage: flowtap monitor ADDR")
	}
	client, err := controller.Dial(args[0])
	if err != nil {
		die("attach to controller: %v", err)
	}
	defer client.Close()
	if err := tui.Run(client, args[0]); err != nil {
		die("%v", err)
	}
}

// runWorkflow executes a script file as a background workflow and blocks for
// the worker's outcome.
func runWorkflow(args []string) {
	if len(args) == 0 {
		die("usage: flowtap run SCRIPT [workflow] [options]")
	}
	code, err := os.ReadFile(args[0])
	if err != nil {
		die("read script: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}
	if err := config.InitStateDir(cwd); err != nil {
		die("init %s: %v", config.StateDir, err)
	}
	log, err := logging.New(cwd)
	if err != nil {
		die("open session log: %v", err)
	}
	defer log.Close()

	handle, err := controller.Start(controller.StartOptions{Logger: log})
	if err != nil {
		die("start controller: %v", err)
	}
	defer func() {
		if err := controller.Stop(handle); err != nil {
			log.Printf("stop controller: %v", err)
		}
	}()
	fmt.Fprintf(os.Stderr, "controller listening on %s\n", handle.Addr())

	d, err := dispatch.New(execctx.New(), handle, stdoutSink{}, cwd)
	if err != nil {
		die("%v", err)
	}
	if _, err := d.Dispatch(context.Background(), dispatch.ExecutionRequest{
		Code:         string(code),
		RawArgs:      args[1:],
		WorkflowMode: true,
	}); err != nil {
		die("%v", err)
	}
	if outcome := awaitOutcome(handle); outcome != nil {
		if outcome.Status == controller.OutcomeFailure {
			fmt.Fprintln(os.Stderr, outcome.Message)
			os.Exit(1)
		}
		if outcome.Payload != "" {
			fmt.Println(outcome.Payload)
		}
	}
}

// awaitOutcome polls the controller until the spawned worker reports. The
// launch itself is fire-and-start; the CLI waits here so the rendezvous
// channel outlives the worker.
func awaitOutcome(handle *controller.Handle) *controller.Outcome {
	for {
		snap, err := handle.Tail()
		if err != nil {
			fmt.Fprintf(os.Stderr, "poll controller: %v\n", err)
			return nil
		}
		if len(snap.Outcomes) > 0 {
			return &snap.Outcomes[len(snap.Outcomes)-1]
		}
		time.Sleep(outcomePollInterval)
	}
}

// runInline reads code from stdin and dispatches it on the inline, remote, or
// help path. Workflow mode is reserved for the run subcommand.
func runInline(args []string) {
	code, err := io.ReadAll(os.Stdin)
	if err != nil {
		die("read stdin: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}
	if err := config.InitStateDir(cwd); err != nil {
		die("init %s: %v", config.StateDir, err)
	}
	d, err := dispatch.New(execctx.New(), nil, stdoutSink{}, cwd)
	if err != nil {
		die("%v", err)
	}
	d.Stderr = os.Stderr
	result, err := d.Dispatch(context.Background(), dispatch.ExecutionRequest{
		Code:    string(code),
		RawArgs: args,
	})
	if err != nil {
		die("%v", err)
	}
	if result != nil {
		fmt.Println(result)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
