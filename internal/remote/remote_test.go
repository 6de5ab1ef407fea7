package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"flowtap/internal/config"
)

type streamMessage struct {
	Name string
	Text string
}

type recordingSink struct {
	messages []streamMessage
}

func (s *recordingSink) Stream(name, text string) {
	s.messages = append(s.messages, streamMessage{Name: name, Text: text})
}

type fakeRunner struct {
	calls [][]string
	// exit codes keyed by command name; transport errors keyed the same way.
	exits map[string]int
	errs  map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (int, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if err := f.errs[name]; err != nil {
		return -1, err
	}
	return f.exits[name], nil
}

func newDelegator(t *testing.T, runner *fakeRunner) (*Delegator, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	d, err := New(sink, WithRunner(runner))
	if err != nil {
		t.Fatalf("new delegator: %v", err)
	}
	return d, sink
}

func delegation(t *testing.T) Delegation {
	t.Helper()
	return Delegation{
		Host:       "cluster",
		Code:       "[align_1]\nx := 1\n",
		ProjectDir: t.TempDir(),
		Args:       []string{"-r", "cluster", "-c", "hosts.yml", "--jobs", "4"},
	}
}

func TestDelegateZeroExitIsSilent(t *testing.T) {
	runner := &fakeRunner{}
	d, sink := newDelegator(t, runner)
	del := delegation(t)
	if err := d.Delegate(context.Background(), del); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	for _, m := range sink.messages {
		if m.Name == "stderr" {
			t.Fatalf("unexpected stderr message on success: %+v", m)
		}
		if strings.Contains(m.Text, "exited with code") {
			t.Fatalf("exit message on success: %+v", m)
		}
	}
	// The script artifact was written under the state folder.
	script := config.RemoteScriptPath(del.ProjectDir)
	data, err := os.ReadFile(script)
	if err != nil {
		t.Fatalf("script artifact missing: %v", err)
	}
	if string(data) != del.Code {
		t.Fatalf("artifact content mismatch: %q", data)
	}
}

func TestDelegateNonZeroExitStreamsCode(t *testing.T) {
	runner := &fakeRunner{exits: map[string]int{"ssh": 3}}
	d, sink := newDelegator(t, runner)
	if err := d.Delegate(context.Background(), delegation(t)); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	found := false
	for _, m := range sink.messages {
		if m.Name == "stderr" && strings.Contains(m.Text, "3") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no stderr message naming exit code: %+v", sink.messages)
	}
}

func TestDelegateTransportErrorIsStreamedNotRaised(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"ssh": errors.New("connection reset")}}
	d, sink := newDelegator(t, runner)
	if err := d.Delegate(context.Background(), delegation(t)); err != nil {
		t.Fatalf("transport failure must not surface as an error: %v", err)
	}
	found := false
	for _, m := range sink.messages {
		if strings.Contains(m.Text, "connection reset") {
			found = true
		}
	}
	if !found {
		t.Fatalf("transport error not streamed: %+v", sink.messages)
	}
}

func TestDelegateStripsSelectionFlags(t *testing.T) {
	runner := &fakeRunner{}
	d, _ := newDelegator(t, runner)
	if err := d.Delegate(context.Background(), delegation(t)); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	var sshCall []string
	for _, call := range runner.calls {
		if call[0] == "ssh" {
			sshCall = call
		}
	}
	if sshCall == nil {
		t.Fatalf("ssh was never invoked: %+v", runner.calls)
	}
	joined := strings.Join(sshCall, " ")
	if strings.Contains(joined, "-r") || strings.Contains(joined, "hosts.yml") {
		t.Fatalf("selection flags forwarded to remote: %v", sshCall)
	}
	if !strings.Contains(joined, "--jobs 4") {
		t.Fatalf("workflow args lost: %v", sshCall)
	}
}

func TestDelegateEmptyCodeDoesNothing(t *testing.T) {
	runner := &fakeRunner{}
	d, sink := newDelegator(t, runner)
	del := delegation(t)
	del.Code = "   \n"
	if err := d.Delegate(context.Background(), del); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if len(runner.calls) != 0 || len(sink.messages) != 0 {
		t.Fatalf("side effects for empty code: %+v %+v", runner.calls, sink.messages)
	}
}

func TestDelegateResolvesHostFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hosts.yml")
	content := "hosts:\n  cluster:\n    address: cluster.example.org\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	runner := &fakeRunner{}
	d, _ := newDelegator(t, runner)
	del := delegation(t)
	del.ConfigFile = cfgPath
	if err := d.Delegate(context.Background(), del); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	foundResolved := false
	for _, call := range runner.calls {
		for _, arg := range call {
			if strings.Contains(arg, "cluster.example.org") {
				foundResolved = true
			}
		}
	}
	if !foundResolved {
		t.Fatalf("host alias not resolved through config: %+v", runner.calls)
	}
}

func TestRemoveArg(t *testing.T) {
	args := []string{"-r", "cluster", "--jobs", "4", "-c=hosts.yml", "-v"}
	got := RemoveArg(RemoveArg(args, "-r"), "-c")
	want := []string{"--jobs", "4", "-v"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RemoveArg = %+v, want %+v", got, want)
	}
}
