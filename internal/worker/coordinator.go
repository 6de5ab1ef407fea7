package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// EntryCommand is the hidden subcommand the spawned process is started with;
// main routes it to Runtime.Run.
const EntryCommand = "__worker"

// Logger is the minimal logging surface the coordinator needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Coordinator spawns isolated worker processes. It is fire-and-start: Launch
// returns as soon as the process is running, and completion is observed only
// through the controller's log and request channels.
type Coordinator struct {
	// Binary is the executable to spawn; defaults to the current binary.
	Binary string
	// Entry is the argument vector prefix; defaults to [EntryCommand].
	Entry []string
	// Log receives launch diagnostics.
	Log Logger
}

// NewCoordinator builds a coordinator that re-executes the current binary.
func NewCoordinator(log Logger) (*Coordinator, error) {
	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("worker: resolve executable: %w", err)
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Coordinator{Binary: binary, Entry: []string{EntryCommand}, Log: log}, nil
}

// Launch serializes the request envelope, starts the worker process with the
// envelope on its standard input, and returns without waiting for the run.
// The process is reaped in the background to avoid zombies.
func (c *Coordinator) Launch(req Request) error {
	if req.WorkerID == "" {
		return fmt.Errorf("worker: request has no worker id")
	}
	if req.ControllerAddr == "" {
		return fmt.Errorf("worker: request has no controller address")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("worker: marshal request: %w", err)
	}
	entry := c.Entry
	if len(entry) == 0 {
		entry = []string{EntryCommand}
	}
	cmd := exec.Command(c.Binary, entry...)
	cmd.Stdin = bytes.NewReader(append(data, '\n'))
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("worker: start process: %w", err)
	}
	log := c.Log
	if log == nil {
		log = nopLogger{}
	}
	log.Printf("worker: launched %s as pid %d", req.WorkerID, cmd.Process.Pid)
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
