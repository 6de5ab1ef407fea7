package config

import "fmt"

// Run modes accepted by the engine capability.
const (
	RunModeInteractive = "interactive"
	RunModeDryrun      = "dryrun"
)

// Signature modes. SigModeIgnore is forced under dry-run.
const (
	SigModeDefault = "default"
	SigModeIgnore  = "ignore"
	SigModeForce   = "force"
	SigModeBuild   = "build"
	SigModeAssert  = "assert"
)

// Execution is the fully-resolved option set handed to an executor. It is
// built once per request, validated at construction, and never mutated after
// handoff.
type Execution struct {
	ConfigFile string

	// OutputDAG and OutputReport are resolved artifact names; empty means
	// the artifact is disabled.
	OutputDAG    string
	OutputReport string

	SigMode      string
	DefaultQueue string

	// WaitForTask is tri-state: true, false, or nil for queue default.
	WaitForTask *bool

	ResumeMode bool
	RunMode    string
	Verbosity  int

	MaxProcs       int
	MaxRunningJobs int

	Workdir  string
	Workflow string
	Targets  []string
	BinDirs  []string

	// WorkflowArgs are the argument tokens forwarded to the workflow itself.
	WorkflowArgs []string
}

// Validate checks the resolved option set once; executors rely on it having
// passed and do not re-derive defaults.
func (e Execution) Validate() error {
	switch e.RunMode {
	case RunModeInteractive, RunModeDryrun:
	default:
		return fmt.Errorf("config: unknown run mode %q", e.RunMode)
	}
	if e.Verbosity < 0 || e.Verbosity > 4 {
		return fmt.Errorf("config: verbosity %d out of range 0..4", e.Verbosity)
	}
	if e.MaxProcs < 0 {
		return fmt.Errorf("config: max procs must not be negative")
	}
	if e.MaxRunningJobs < 0 {
		return fmt.Errorf("config: max running jobs must not be negative")
	}
	if e.RunMode == RunModeDryrun && e.SigMode != SigModeIgnore {
		return fmt.Errorf("config: dry-run requires sig mode ignore, got %q", e.SigMode)
	}
	return nil
}

// AsMap renders the option set as the configuration dictionary the engine
// capability consumes. Disabled artifacts appear as nil values.
func (e Execution) AsMap() map[string]any {
	toValue := func(name string) any {
		if name == "" {
			return nil
		}
		return name
	}
	var wait any
	if e.WaitForTask != nil {
		wait = *e.WaitForTask
	}
	return map[string]any{
		"config_file":      e.ConfigFile,
		"output_dag":       toValue(e.OutputDAG),
		"output_report":    toValue(e.OutputReport),
		"sig_mode":         e.SigMode,
		"default_queue":    e.DefaultQueue,
		"wait_for_task":    wait,
		"resume_mode":      e.ResumeMode,
		"run_mode":         e.RunMode,
		"verbosity":        e.Verbosity,
		"max_procs":        e.MaxProcs,
		"max_running_jobs": e.MaxRunningJobs,
		"workdir":          e.Workdir,
		"script":           "interactive",
		"workflow":         e.Workflow,
		"targets":          e.Targets,
		"bin_dirs":         e.BinDirs,
		"workflow_args":    e.WorkflowArgs,
	}
}
