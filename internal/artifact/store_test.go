package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flowtap/internal/engine"
	"flowtap/internal/script"
)

func sampleWorkflow() *script.Workflow {
	return &script.Workflow{
		Name: "align",
		Sections: []script.Section{
			{Name: "align_1"},
			{Name: "align_2"},
		},
	}
}

func TestWriteDAG(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	path, err := store.WriteDAG("run.dot", sampleWorkflow())
	if err != nil {
		t.Fatalf("write dag: %v", err)
	}
	if path != filepath.Join(dir, "run.dot") {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dag: %v", err)
	}
	dot := string(data)
	if !strings.Contains(dot, `"align_1" -> "align_2"`) {
		t.Fatalf("edge missing:\n%s", dot)
	}
}

func TestWriteDAGDisabled(t *testing.T) {
	store := NewStore(t.TempDir())
	path, err := store.WriteDAG("", sampleWorkflow())
	if err != nil || path != "" {
		t.Fatalf("disabled artifact must be a no-op, got %q %v", path, err)
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	store := NewStore(dir, WithClock(func() time.Time { return fixed }))
	res := engine.Result{LastValue: 42, Report: map[string]any{"steps_run": 2}}
	path, err := store.WriteReport("run.html", sampleWorkflow(), res, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("write report: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	html := string(data)
	for _, want := range []string{"align_1", "align_2", "42", "2024-01-02T12:00:00Z", "1.5s"} {
		if !strings.Contains(html, want) {
			t.Fatalf("report missing %q:\n%s", want, html)
		}
	}
}
