// Package tmux implements the Runtime capability over tmux sessions. Each
// session's agent runs in a detached tmux session whose name is the
// session's runtime handle.
package tmux

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/plugin"
)

// Runtime is the tmux-backed plugin.Runtime.
type Runtime struct {
	executor execx.CommandExecutor
	log      *slog.Logger

	// Send protocol tuning; zero values take the defaults below.
	SendTimeout    time.Duration // busy-wait cap before sending anyway
	PollInterval   time.Duration // busy-wait poll spacing
	ConfirmRetries int           // post-send Enter re-asserts
	ConfirmDelay   time.Duration // spacing between confirmation checks
}

const (
	defaultSendTimeout    = 60 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultConfirmRetries = 3
	defaultConfirmDelay   = time.Second

	paneWidth    = 200
	paneHeight   = 50
	historyLimit = "10000"

	// Past this size (or any newline) injection goes through a tmux paste
	// buffer so the content cannot interleave with pane output.
	inlineSendLimit = 200
)

// New creates a tmux runtime using the given executor.
func New(executor execx.CommandExecutor) *Runtime {
	return &Runtime{
		executor:       executor,
		log:            logger.ComponentLogger("tmux"),
		SendTimeout:    defaultSendTimeout,
		PollInterval:   defaultPollInterval,
		ConfirmRetries: defaultConfirmRetries,
		ConfirmDelay:   defaultConfirmDelay,
	}
}

// Create starts a detached tmux session running the requested command and
// returns the session name as the runtime handle.
func (r *Runtime) Create(ctx context.Context, spec plugin.RuntimeSpec) (string, error) {
	name := spec.Name
	if name == "" {
		return "", fmt.Errorf("runtime spec has no name")
	}

	args := []string{
		"new-session", "-d",
		"-s", name,
		"-c", spec.WorkDir,
		"-x", strconv.Itoa(paneWidth),
		"-y", strconv.Itoa(paneHeight),
	}
	for key, value := range spec.Env {
		args = append(args, "-e", key+"="+value)
	}
	args = append(args, spec.Command...)

	if out, err := r.executor.CombinedOutput(ctx, spec.WorkDir, "tmux", args...); err != nil {
		return "", fmt.Errorf("failed to create tmux session %s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}

	// Best-effort session options; the session works without them.
	if _, err := r.executor.CombinedOutput(ctx, spec.WorkDir, "tmux", "set-option", "-t", name, "history-limit", historyLimit); err != nil {
		r.log.Warn("failed to set history-limit", "session", name, "error", err)
	}

	r.log.Info("tmux session created", "session", name, "workdir", spec.WorkDir)
	return name, nil
}

// Destroy kills the tmux session. Destroying an already-dead handle is not
// an error.
func (r *Runtime) Destroy(ctx context.Context, handle string) error {
	out, err := r.executor.CombinedOutput(ctx, "", "tmux", "kill-session", "-t", handle)
	if err != nil {
		if isNoSessionOutput(string(out)) {
			return nil
		}
		return fmt.Errorf("failed to kill tmux session %s: %s: %w", handle, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Output captures the last lines of the pane's visible history.
func (r *Runtime) Output(ctx context.Context, handle string, lines int) (string, error) {
	if lines <= 0 {
		lines = paneHeight
	}
	out, err := r.executor.Output(ctx, "", "tmux", "capture-pane", "-p", "-t", handle, "-S", fmt.Sprintf("-%d", lines))
	if err != nil {
		return "", fmt.Errorf("failed to capture pane for %s: %w", handle, err)
	}
	return string(out), nil
}

// IsAlive reports whether the tmux session still exists.
func (r *Runtime) IsAlive(ctx context.Context, handle string) (bool, error) {
	_, _, err := r.executor.Run(ctx, "", "tmux", "has-session", "-t", handle)
	return err == nil, nil
}

// Metrics returns pane-level liveness numbers.
func (r *Runtime) Metrics(ctx context.Context, handle string) (plugin.RuntimeMetrics, error) {
	out, err := r.executor.Output(ctx, "", "tmux", "display-message", "-p", "-t", handle,
		"#{pane_dead} #{pane_pid} #{session_created}")
	if err != nil {
		return plugin.RuntimeMetrics{}, fmt.Errorf("failed to query tmux metrics for %s: %w", handle, err)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	m := plugin.RuntimeMetrics{}
	if len(fields) > 0 {
		m.PaneDead = fields[0] == "1"
	}
	if len(fields) > 1 {
		m.PanePID, _ = strconv.Atoi(fields[1])
	}
	if len(fields) > 2 {
		m.CreatedAt = fields[2]
	}
	return m, nil
}

// AttachInfo returns the command a human runs to attach to the session.
func (r *Runtime) AttachInfo(handle string) string {
	return "tmux attach -t " + handle
}

func isNoSessionOutput(out string) bool {
	out = strings.ToLower(out)
	return strings.Contains(out, "no server running") ||
		strings.Contains(out, "session not found") ||
		strings.Contains(out, "can't find session")
}
