// Package artifact renders the per-run output files: the workflow DAG in
// graphviz dot form and an HTML run report. Both are optional; an empty name
// means the artifact is disabled and nothing is written.
package artifact

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowtap/internal/engine"
	"flowtap/internal/script"
)

// Store writes run artifacts rooted at a working directory.
type Store struct {
	dir string
	now func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for report timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore builds a store rooted at dir. Relative artifact names resolve
// against it.
func NewStore(dir string, opts ...StoreOption) *Store {
	store := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// WriteDAG renders the workflow's section chain as a dot digraph. It returns
// the written path, or "" when name is empty (artifact disabled).
func (s *Store) WriteDAG(name string, wf *script.Workflow) (string, error) {
	if name == "" {
		return "", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", wf.Name)
	b.WriteString("\trankdir=LR;\n")
	for i, sec := range wf.Sections {
		fmt.Fprintf(&b, "\t%q;\n", sec.Name)
		if i > 0 {
			fmt.Fprintf(&b, "\t%q -> %q;\n", wf.Sections[i-1].Name, sec.Name)
		}
	}
	b.WriteString("}\n")
	path := s.resolve(name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("artifact: write dag: %w", err)
	}
	return path, nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Workflow}} run report</title></head>
<body>
<h1>{{.Workflow}}</h1>
<p>Generated {{.Generated}} · {{.Elapsed}}</p>
<table border="1">
<tr><th>Step</th></tr>
{{range .Steps}}<tr><td>{{.}}</td></tr>
{{end}}</table>
{{if .LastValue}}<p>Last value: <code>{{.LastValue}}</code></p>{{end}}
{{range $key, $value := .Report}}<p>{{$key}}: {{$value}}</p>
{{end}}</body>
</html>
`))

type reportData struct {
	Workflow  string
	Generated string
	Elapsed   string
	Steps     []string
	LastValue string
	Report    map[string]any
}

// WriteReport renders an HTML summary of a finished run. It returns the
// written path, or "" when name is empty (artifact disabled).
func (s *Store) WriteReport(name string, wf *script.Workflow, res engine.Result, elapsed time.Duration) (string, error) {
	if name == "" {
		return "", nil
	}
	data := reportData{
		Workflow:  wf.Name,
		Generated: s.now().Format(time.RFC3339),
		Elapsed:   elapsed.Round(time.Millisecond).String(),
		Report:    res.Report,
	}
	for _, sec := range wf.Sections {
		data.Steps = append(data.Steps, sec.Name)
	}
	if res.LastValue != nil {
		data.LastValue = fmt.Sprintf("%v", res.LastValue)
	}
	var b strings.Builder
	if err := reportTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("artifact: render report: %w", err)
	}
	path := s.resolve(name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("artifact: write report: %w", err)
	}
	return path, nil
}

func (s *Store) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}
