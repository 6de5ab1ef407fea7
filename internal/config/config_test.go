package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitStateDir(t *testing.T) {
	dir := t.TempDir()
	if err := InitStateDir(dir); err != nil {
		t.Fatalf("init state dir: %v", err)
	}
	for _, sub := range []string{"logs", "state"} {
		if _, err := os.Stat(filepath.Join(dir, StateDir, sub)); err != nil {
			t.Fatalf("missing %s: %v", sub, err)
		}
	}
}

func TestLoadConfigFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.yml")
	content := "hosts:\n  cluster:\n    address: cluster.example.org\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfigFiles(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := cfg["hosts"]; !ok {
		t.Fatalf("expected hosts key, got %+v", cfg)
	}
}

func TestLoadConfigFilesMissingIsEmpty(t *testing.T) {
	cfg, err := LoadConfigFiles(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if len(cfg) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestSetupBinDirsPrependsPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PATH", "/usr/bin")
	if err := SetupBinDirs([]string{dir}); err != nil {
		t.Fatalf("setup bin dirs: %v", err)
	}
	path := os.Getenv("PATH")
	want := dir + string(os.PathListSeparator) + "/usr/bin"
	if path != want {
		t.Fatalf("PATH = %q, want %q", path, want)
	}
}

func TestExecutionValidate(t *testing.T) {
	valid := Execution{RunMode: RunModeInteractive, SigMode: SigModeDefault, Verbosity: 2}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	bad := valid
	bad.RunMode = "batch"
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown run mode accepted")
	}
	dry := valid
	dry.RunMode = RunModeDryrun
	if err := dry.Validate(); err == nil {
		t.Fatalf("dry-run without sig mode ignore accepted")
	}
	dry.SigMode = SigModeIgnore
	if err := dry.Validate(); err != nil {
		t.Fatalf("dry-run with ignore rejected: %v", err)
	}
}

func TestExecutionAsMap(t *testing.T) {
	wait := true
	e := Execution{
		RunMode:      RunModeInteractive,
		SigMode:      SigModeDefault,
		OutputDAG:    "workflow_010224_1200.dot",
		OutputReport: "",
		WaitForTask:  &wait,
		Workflow:     "align",
	}
	m := e.AsMap()
	if m["output_dag"] != "workflow_010224_1200.dot" {
		t.Fatalf("unexpected output_dag: %v", m["output_dag"])
	}
	if m["output_report"] != nil {
		t.Fatalf("disabled report should be nil, got %v", m["output_report"])
	}
	if m["wait_for_task"] != true {
		t.Fatalf("unexpected wait_for_task: %v", m["wait_for_task"])
	}
	if m["script"] != "interactive" {
		t.Fatalf("unexpected script: %v", m["script"])
	}
}
