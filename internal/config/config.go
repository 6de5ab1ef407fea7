// Package config handles the .flowtap directory structure, YAML configuration
// files, and the typed execution configuration handed to executors. Every
// project that dispatches workflows gets a .flowtap/ folder in its root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// StateDir is the name of the directory created in each project root.
	StateDir = ".flowtap"

	// RemoteScriptName is the fixed-path script artifact used only for
	// remote delegation.
	RemoteScriptName = "interactive.fw"
)

// DefaultBinDir is the user-level binary directory created on demand when
// listed in bin_dirs.
const DefaultBinDir = "~/.flowtap/bin"

// InitStateDir creates the .flowtap directory structure under projectDir.
//
// Structure created:
// .flowtap/
// ├── logs/    <- session log file
// └── state/   <- remote script artifact, run state
func InitStateDir(projectDir string) error {
	root := filepath.Join(projectDir, StateDir)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// RemoteScriptPath returns the fixed script artifact path under the state
// folder of the working directory.
func RemoteScriptPath(projectDir string) string {
	return filepath.Join(projectDir, StateDir, "state", RemoteScriptName)
}

// LoadConfigFiles reads a YAML configuration file into a generic mapping.
// A missing path yields an empty mapping rather than an error so callers can
// treat configuration as optional.
func LoadConfigFiles(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := map[string]any{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SetupBinDirs expands each configured binary directory, creates the default
// directory when it is listed but missing, and prepends the expansions to the
// process search path.
func SetupBinDirs(dirs []string) error {
	if len(dirs) == 0 {
		return nil
	}
	expanded := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		exp := expandHome(dir)
		if dir == DefaultBinDir {
			if _, err := os.Stat(exp); os.IsNotExist(err) {
				if err := os.MkdirAll(exp, 0o755); err != nil {
					return fmt.Errorf("config: create %s: %w", exp, err)
				}
			}
		}
		expanded = append(expanded, exp)
	}
	path := strings.Join(expanded, string(os.PathListSeparator))
	if current := os.Getenv("PATH"); current != "" {
		path = path + string(os.PathListSeparator) + current
	}
	return os.Setenv("PATH", path)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
