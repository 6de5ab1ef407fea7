// Package remote delegates a workflow to another host: it writes the code to
// the fixed script artifact under the state folder, ships it over, and runs
// the remote command to completion. Remote failures are reported as stream
// messages on the caller's output sink, never as program faults.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"flowtap/internal/config"
)

// Sink receives stream messages for the caller's frontend. Name is the
// stream identity ("stdout" or "stderr").
type Sink interface {
	Stream(name, text string)
}

// CommandRunner executes one external command and reports its exit code.
// Transport problems (command not startable, connection lost) surface as a
// non-nil error.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (int, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// Delegator ships code to a remote host and blocks for the remote run.
type Delegator struct {
	runner CommandRunner
	sink   Sink

	// RemoteBinary is the dispatcher executable name on the remote host.
	RemoteBinary string
}

// Option customizes the delegator.
type Option func(*Delegator)

// WithRunner replaces the default ssh/scp command runner.
func WithRunner(r CommandRunner) Option {
	return func(d *Delegator) {
		if r != nil {
			d.runner = r
		}
	}
}

// New builds a delegator reporting to sink.
func New(sink Sink, opts ...Option) (*Delegator, error) {
	if sink == nil {
		return nil, fmt.Errorf("remote: output sink is required")
	}
	d := &Delegator{runner: execRunner{}, sink: sink, RemoteBinary: "flowtap"}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Delegation describes one remote dispatch.
type Delegation struct {
	Host       string
	Code       string
	ConfigFile string
	ProjectDir string
	// Args is the raw forwarded argument list; host/config selection flags
	// are stripped before the remote run.
	Args []string
}

// Delegate resolves the host, writes the script artifact, copies it over,
// and issues the remote run command. A non-zero remote exit or a transport
// failure becomes a stream message; the returned error covers only local
// setup problems (state dir, artifact write).
func (d *Delegator) Delegate(ctx context.Context, del Delegation) error {
	cfg, err := config.LoadConfigFiles(del.ConfigFile)
	if err != nil {
		return err
	}
	host := resolveHost(cfg, del.Host)
	if host == "" {
		return fmt.Errorf("remote: no host configured for %q", del.Host)
	}
	if strings.TrimSpace(del.Code) == "" {
		return nil
	}
	script := config.RemoteScriptPath(del.ProjectDir)
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		return fmt.Errorf("remote: ensure state dir: %w", err)
	}
	if err := os.WriteFile(script, []byte(del.Code), 0o644); err != nil {
		return fmt.Errorf("remote: write script artifact: %w", err)
	}

	d.sink.Stream("stdout", fmt.Sprintf("HINT: executing workflow on %s", del.Host))

	if code, err := d.runner.Run(ctx, "scp", "-q", script, host+":"+config.RemoteScriptName); err != nil || code != 0 {
		if err == nil {
			err = fmt.Errorf("scp exited with code %d", code)
		}
		d.sink.Stream("stdout", err.Error())
		return nil
	}

	argv := RemoveArg(del.Args, "-r")
	argv = RemoveArg(argv, "-c")
	remoteCmd := append([]string{host, d.RemoteBinary, "run", config.RemoteScriptName}, argv...)
	code, err := d.runner.Run(ctx, "ssh", remoteCmd...)
	if err != nil {
		d.sink.Stream("stdout", err.Error())
		return nil
	}
	if code != 0 {
		d.sink.Stream("stderr", fmt.Sprintf("remote execution of workflow exited with code %d", code))
	}
	return nil
}

// RemoveArg strips a flag and its value from an argument list. The flag may
// appear as two tokens ("-r host") or one ("-r=host").
func RemoveArg(args []string, flag string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == flag {
			i++ // skip the value
			continue
		}
		if strings.HasPrefix(args[i], flag+"=") {
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// resolveHost maps a host alias through the loaded configuration; an alias
// without an entry is used verbatim.
func resolveHost(cfg map[string]any, alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return ""
	}
	hosts, ok := cfg["hosts"].(map[string]any)
	if !ok {
		return alias
	}
	entry, ok := hosts[alias].(map[string]any)
	if !ok {
		return alias
	}
	if addr, ok := entry["address"].(string); ok && addr != "" {
		return addr
	}
	return alias
}
