package tmux

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/plugin"
)

func newTestRuntime(fake *execx.FakeExecutor) *Runtime {
	r := New(fake)
	r.SendTimeout = 50 * time.Millisecond
	r.PollInterval = time.Millisecond
	r.ConfirmRetries = 1
	r.ConfirmDelay = time.Millisecond
	return r
}

func TestCreate(t *testing.T) {
	fake := execx.NewFakeExecutor()
	r := newTestRuntime(fake)

	handle, err := r.Create(context.Background(), plugin.RuntimeSpec{
		Name:    "drover-w1",
		WorkDir: "/tmp/work",
		Command: []string{"claude", "--continue"},
		Env:     map[string]string{"DROVER_SESSION": "drover-w1"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if handle != "drover-w1" {
		t.Errorf("handle = %q, want drover-w1", handle)
	}

	var created string
	for _, call := range fake.Calls() {
		if strings.HasPrefix(call, "tmux new-session") {
			created = call
		}
	}
	if created == "" {
		t.Fatal("no new-session call recorded")
	}
	for _, want := range []string{"-d", "-s drover-w1", "-c /tmp/work", "-e DROVER_SESSION=drover-w1", "claude --continue"} {
		if !strings.Contains(created, want) {
			t.Errorf("new-session call missing %q: %s", want, created)
		}
	}
	if fake.CallCount("tmux set-option") != 1 {
		t.Error("expected history-limit set-option call")
	}
}

func TestCreateRequiresName(t *testing.T) {
	r := newTestRuntime(execx.NewFakeExecutor())
	if _, err := r.Create(context.Background(), plugin.RuntimeSpec{WorkDir: "/tmp"}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestDestroy(t *testing.T) {
	tests := []struct {
		name    string
		result  execx.FakeResult
		wantErr bool
	}{
		{name: "alive session", result: execx.FakeResult{}},
		{name: "already gone", result: execx.FakeResult{Stderr: "can't find session: drover-w1", Err: errExit}, wantErr: false},
		{name: "no server", result: execx.FakeResult{Stderr: "no server running on /tmp/tmux-0/default", Err: errExit}, wantErr: false},
		{name: "real failure", result: execx.FakeResult{Stderr: "server exited unexpectedly", Err: errExit}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := execx.NewFakeExecutor()
			fake.Script("tmux kill-session", tt.result)
			r := newTestRuntime(fake)

			err := r.Destroy(context.Background(), "drover-w1")
			if (err != nil) != tt.wantErr {
				t.Errorf("Destroy error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsAlive(t *testing.T) {
	fake := execx.NewFakeExecutor()
	r := newTestRuntime(fake)

	alive, err := r.IsAlive(context.Background(), "drover-w1")
	if err != nil || !alive {
		t.Errorf("IsAlive = %v, %v; want true, nil", alive, err)
	}

	fake.ScriptError("tmux has-session", "can't find session")
	alive, err = r.IsAlive(context.Background(), "drover-w1")
	if err != nil || alive {
		t.Errorf("IsAlive = %v, %v; want false, nil", alive, err)
	}
}

func TestMetrics(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("tmux display-message", "0 4242 1756700000\n")
	r := newTestRuntime(fake)

	m, err := r.Metrics(context.Background(), "drover-w1")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.PaneDead {
		t.Error("PaneDead = true, want false")
	}
	if m.PanePID != 4242 {
		t.Errorf("PanePID = %d, want 4242", m.PanePID)
	}
	if m.CreatedAt != "1756700000" {
		t.Errorf("CreatedAt = %q", m.CreatedAt)
	}
}

func TestAttachInfo(t *testing.T) {
	r := newTestRuntime(execx.NewFakeExecutor())
	if got := r.AttachInfo("drover-w1"); got != "tmux attach -t drover-w1" {
		t.Errorf("AttachInfo = %q", got)
	}
}

func TestSendMessageShort(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("tmux capture-pane", "agent idle\n> ")
	r := newTestRuntime(fake)

	if err := r.SendMessage(context.Background(), "drover-w1", "continue"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	var sawClear, sawLiteral bool
	for _, call := range fake.Calls() {
		if strings.Contains(call, "send-keys -t drover-w1 C-u") {
			sawClear = true
		}
		if strings.Contains(call, "send-keys -t drover-w1 -l -- continue") {
			sawLiteral = true
		}
	}
	if !sawClear {
		t.Error("input line was not cleared before sending")
	}
	if !sawLiteral {
		t.Error("short message was not sent literally")
	}
	if fake.CallCount("tmux load-buffer") != 0 {
		t.Error("short message should not use the paste buffer")
	}
}

func TestSendMessageMultilineUsesPasteBuffer(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("tmux capture-pane", "> ")
	r := newTestRuntime(fake)

	msg := "CI failed on this branch.\nPlease investigate and push a fix."
	if err := r.SendMessage(context.Background(), "drover-w1", msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if fake.CallCount("tmux load-buffer") != 1 {
		t.Error("multiline message should go through load-buffer")
	}
	if fake.CallCount("tmux paste-buffer") != 1 {
		t.Error("multiline message should be pasted into the pane")
	}
	for _, call := range fake.Calls() {
		if strings.Contains(call, "send-keys") && strings.Contains(call, "investigate") {
			t.Error("multiline content leaked into send-keys")
		}
	}
}

func TestSendMessageAmbiguousWhenNeverIdle(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("tmux capture-pane", "> ")
	r := newTestRuntime(fake)
	r.SendTimeout = 0 // idle is never observed

	err := r.SendMessage(context.Background(), "drover-w1", "status?")
	if !errors.Is(err, errors.KindDeliveryAmbiguous) {
		t.Fatalf("error = %v, want DeliveryAmbiguous kind", err)
	}
	// The message must still have been sent.
	if fake.CallCount("tmux send-keys -t drover-w1 -l") != 1 {
		t.Error("message was not sent despite ambiguity")
	}
}

func TestSendMessageConfirmRetries(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("tmux capture-pane", "> ")
	r := newTestRuntime(fake)
	r.ConfirmRetries = 2

	if err := r.SendMessage(context.Background(), "drover-w1", "go"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	// Pane output never changes, so Enter is asserted initial + 2 retries.
	if got := fake.CallCount("tmux send-keys -t drover-w1 Enter"); got != 3 {
		t.Errorf("Enter sent %d times, want 3", got)
	}
}

var errExit = errExitType{}

type errExitType struct{}

func (errExitType) Error() string { return "exit status 1" }
