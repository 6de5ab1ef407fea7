package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"flowtap/internal/config"
)

// runArgs is the raw result of token parsing, before artifact names and
// derived defaults are resolved into a config.Execution.
type runArgs struct {
	Workflow string
	Help     bool

	ConfigFile string

	// DAG and Report are tri-state: nil means unspecified (use the
	// timestamped default), empty means explicitly disabled.
	DAG    *string
	Report *string

	SigMode string
	DryRun  bool
	Queue   string
	Wait    bool
	NoWait  bool

	Verbosity      int
	MaxProcs       int
	MaxRunningJobs int

	Remote  string
	Targets []string
	BinDirs []string
}

// parseKnownArgs scans tokens for the run options and returns everything it
// does not recognize as forwarded workflow arguments. When withWorkflow is
// set, the first non-flag token names the workflow.
func parseKnownArgs(tokens []string, withWorkflow bool) (runArgs, []string, error) {
	args := runArgs{Verbosity: 2, SigMode: config.SigModeDefault}
	// Copy so inline-form rewrites never clobber the caller's slice.
	tokens = append([]string(nil), tokens...)
	var forwarded []string
	workflowSeen := false

	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(tokens) {
			return "", fmt.Errorf("dispatch: flag %s requires a value", flag)
		}
		*i++
		return tokens[*i], nil
	}
	intValue := func(i *int, flag string) (int, error) {
		raw, err := value(i, flag)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("dispatch: flag %s: %w", flag, err)
		}
		return n, nil
	}
	// optionalValue implements the bare-flag form that explicitly disables
	// an artifact: "-d" alone yields "", "-d name" yields name.
	optionalValue := func(i *int) string {
		if *i+1 < len(tokens) && !strings.HasPrefix(tokens[*i+1], "-") {
			*i++
			return tokens[*i]
		}
		return ""
	}
	multiValue := func(i *int) []string {
		var vals []string
		for *i+1 < len(tokens) && !strings.HasPrefix(tokens[*i+1], "-") {
			*i++
			vals = append(vals, tokens[*i])
		}
		return vals
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		flag, inline, hasInline := strings.Cut(token, "=")
		if hasInline && strings.HasPrefix(flag, "-") {
			switch flag {
			case "-c", "-d", "--dag", "-p", "--report", "-s", "-q", "-v", "-j", "-J", "-r":
				// Rewrite the inline form into the two-token form.
				tokens = append(tokens[:i], append([]string{flag, inline}, tokens[i+1:]...)...)
				token = flag
			}
		}
		switch token {
		case "-h", "--help":
			args.Help = true
		case "-c":
			v, err := value(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.ConfigFile = v
		case "-d", "--dag":
			v := optionalValue(&i)
			args.DAG = &v
		case "-p", "--report":
			v := optionalValue(&i)
			args.Report = &v
		case "-s":
			v, err := value(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.SigMode = v
		case "-n":
			args.DryRun = true
		case "-q":
			v, err := value(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.Queue = v
		case "-w":
			args.Wait = true
		case "-W":
			args.NoWait = true
		case "-v":
			n, err := intValue(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.Verbosity = n
		case "-j":
			n, err := intValue(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.MaxProcs = n
		case "-J":
			n, err := intValue(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.MaxRunningJobs = n
		case "-r":
			v, err := value(&i, token)
			if err != nil {
				return args, nil, err
			}
			args.Remote = v
		case "-t":
			args.Targets = multiValue(&i)
		case "-b":
			dirs := multiValue(&i)
			if len(dirs) == 0 {
				dirs = []string{config.DefaultBinDir}
			}
			args.BinDirs = dirs
		default:
			if withWorkflow && !workflowSeen && !strings.HasPrefix(token, "-") {
				args.Workflow = token
				workflowSeen = true
				continue
			}
			forwarded = append(forwarded, token)
		}
	}
	if args.Wait && args.NoWait {
		return args, nil, fmt.Errorf("dispatch: -w and -W are mutually exclusive")
	}
	if args.Verbosity < 0 || args.Verbosity > 4 {
		return args, nil, fmt.Errorf("dispatch: verbosity %d out of range 0..4", args.Verbosity)
	}
	return args, forwarded, nil
}
