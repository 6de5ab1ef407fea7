package dispatch

import (
	"fmt"
	"os"
	"strings"
	"time"

	"flowtap/internal/config"
	"flowtap/internal/script"
)

// timestampLayout renders MMDDYY_HHMM for default artifact names.
const timestampLayout = "010206_1504"

// Invocation is the tagged result of the dispatch decision. Each variant
// carries exactly the fields its execution path needs; nil means there is
// nothing to execute (blank code, or code refused from scratch mode).
type Invocation interface {
	isInvocation()
}

// HelpInvocation prints usage and performs no other work.
type HelpInvocation struct{}

// ScratchInvocation runs one auto-wrapped section inline.
type ScratchInvocation struct {
	Section script.Section
	Config  config.Execution
}

// WorkflowInvocation spawns an isolated worker for a full workflow run.
type WorkflowInvocation struct {
	Code     string
	Workflow string
	Args     []string
	Targets  []string
	Config   config.Execution
}

// RemoteInvocation delegates the code to another host.
type RemoteInvocation struct {
	Host       string
	Code       string
	ConfigFile string
	Args       []string
	Config     config.Execution
}

func (HelpInvocation) isInvocation()     {}
func (ScratchInvocation) isInvocation()  {}
func (WorkflowInvocation) isInvocation() {}
func (RemoteInvocation) isInvocation()   {}

// ExecutionRequest is the immutable input of a dispatch: the code text, the
// raw argument tokens, and the invocation-mode hint. RawArgs accepts either
// an already-split token list or a single string to be token-split.
type ExecutionRequest struct {
	Code         string
	RawArgs      []string
	RawArgString string
	// WorkflowMode marks requests arriving through the run/execute-as-
	// background-workflow entry.
	WorkflowMode bool
}

func (r ExecutionRequest) tokens() ([]string, error) {
	if r.RawArgs != nil {
		return r.RawArgs, nil
	}
	return SplitTokens(r.RawArgString)
}

// Decide is the pure decision function: it inspects the request and returns
// exactly one invocation variant, or nil when nothing should execute. now
// feeds the timestamped artifact defaults.
func Decide(req ExecutionRequest, now time.Time) (Invocation, error) {
	tokens, err := req.tokens()
	if err != nil {
		return nil, err
	}
	if req.Code == "" || hasHelpFlag(tokens) {
		return HelpInvocation{}, nil
	}

	// A leading flag token means no workflow name is present.
	withWorkflow := true
	if len(tokens) > 0 && strings.HasPrefix(strings.TrimSpace(tokens[0]), "-") {
		withWorkflow = false
	}
	args, forwarded, err := parseKnownArgs(tokens, withWorkflow)
	if err != nil {
		return nil, err
	}
	if args.Help {
		return HelpInvocation{}, nil
	}
	cfg := resolveExecution(args, forwarded, now)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if args.Remote != "" {
		return RemoteInvocation{
			Host:       args.Remote,
			Code:       req.Code,
			ConfigFile: args.ConfigFile,
			Args:       tokens,
			Config:     cfg,
		}, nil
	}

	if strings.TrimSpace(req.Code) == "" {
		return nil, nil
	}

	if req.WorkflowMode {
		return WorkflowInvocation{
			Code:     req.Code,
			Workflow: args.Workflow,
			Args:     forwarded,
			Targets:  args.Targets,
			Config:   cfg,
		}, nil
	}

	// Scratch mode takes only single-step content: code already carrying a
	// section header or directive is refused rather than partially run.
	if script.HasHeaderOrDirective(req.Code) {
		return nil, nil
	}
	wrapped := script.WrapScratch(req.Code)
	sc, err := script.LineParser{}.Parse(wrapped)
	if err != nil {
		return nil, err
	}
	return ScratchInvocation{Section: sc.Sections[0], Config: cfg}, nil
}

// resolveExecution folds parsed arguments into the typed option set,
// deriving artifact defaults from the timestamp and forcing signature mode
// ignore under dry-run.
func resolveExecution(args runArgs, forwarded []string, now time.Time) config.Execution {
	ts := now.Format(timestampLayout)
	dag := resolveArtifact(args.DAG, "workflow_"+ts+".dot")
	report := resolveArtifact(args.Report, "workflow_"+ts+".html")

	sigMode := args.SigMode
	runMode := config.RunModeInteractive
	if args.DryRun {
		sigMode = config.SigModeIgnore
		runMode = config.RunModeDryrun
	}
	// Wait if -w or under dry-run, do not wait under -W, otherwise leave
	// the queue default in charge.
	var wait *bool
	if args.Wait || args.DryRun {
		v := true
		wait = &v
	} else if args.NoWait {
		v := false
		wait = &v
	}
	workdir, err := os.Getwd()
	if err != nil {
		workdir = "."
	}
	return config.Execution{
		ConfigFile:     args.ConfigFile,
		OutputDAG:      dag,
		OutputReport:   report,
		SigMode:        sigMode,
		DefaultQueue:   args.Queue,
		WaitForTask:    wait,
		RunMode:        runMode,
		Verbosity:      args.Verbosity,
		MaxProcs:       args.MaxProcs,
		MaxRunningJobs: args.MaxRunningJobs,
		Workdir:        workdir,
		Workflow:       args.Workflow,
		Targets:        args.Targets,
		BinDirs:        args.BinDirs,
		WorkflowArgs:   forwarded,
	}
}

// resolveArtifact maps the tri-state flag onto a resolved name: unspecified
// takes the timestamped default, an explicit empty value disables the
// artifact, anything else overrides the default.
func resolveArtifact(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func hasHelpFlag(tokens []string) bool {
	for _, token := range tokens {
		if token == "-h" || token == "--help" {
			return true
		}
	}
	return false
}

// Usage is the text printed for help requests and empty dispatches.
func Usage() string {
	return fmt.Sprintf(`usage: run [workflow] [options] [workflow-args...]

options:
  -h            show this help
  -c FILE       configuration file
  -d [FILE]     DAG output (bare -d disables; default workflow_<%s>.dot)
  -p [FILE]     report output (bare -p disables; default workflow_<%s>.html)
  -s MODE       signature mode (default|ignore|force|build|assert)
  -n            dry run
  -q QUEUE      default task queue
  -w / -W       wait / do not wait for tasks (default: queue decides)
  -v LEVEL      verbosity 0..4 (default 2)
  -j N          max concurrent processes
  -J N          max running jobs
  -r HOST       execute on remote host
  -t TARGET...  target list
  -b DIR...     binary search directories (default %s)

unrecognized tokens are forwarded to the workflow.
`, timestampLayout, timestampLayout, config.DefaultBinDir)
}
