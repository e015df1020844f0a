// Package claude drives the Claude Code CLI as the session agent.
package claude

import (
	"context"
	"log/slog"
	"strings"

	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// Agent implements plugin.Agent for the claude CLI.
type Agent struct {
	log *slog.Logger

	// BaseArgs are prepended to every launch. Overridable for tests.
	BaseArgs []string
}

// New creates a claude agent.
func New() *Agent {
	return &Agent{
		log:      logger.ComponentLogger("claude"),
		BaseArgs: []string{"claude"},
	}
}

// LaunchCommand returns the argv that starts the agent. The initial prompt
// is not part of the command line; it is delivered by PostLaunchSetup so the
// send path can confirm it landed.
func (a *Agent) LaunchCommand(spec plugin.LaunchSpec) []string {
	cmd := make([]string, 0, len(a.BaseArgs)+len(spec.ExtraArgs))
	cmd = append(cmd, a.BaseArgs...)
	cmd = append(cmd, spec.ExtraArgs...)
	return cmd
}

// Environment returns the extra environment for the agent process.
func (a *Agent) Environment(spec plugin.LaunchSpec) map[string]string {
	return map[string]string{
		"DROVER_SESSION_ID": spec.SessionID,
		"DROVER_WORKDIR":    spec.WorkDir,
	}
}

// Output markers the claude CLI prints in its various states. Matched
// case-insensitively against the tail of the pane.
var (
	activeMarkers = []string{
		"esc to interrupt",
		"thinking",
		"✻",
		"tokens",
	}
	waitingMarkers = []string{
		"do you want",
		"would you like",
		"(y/n)",
		"❯ 1.",
		"permission",
		"waiting for your input",
	}
	blockedMarkers = []string{
		"rate limit",
		"usage limit reached",
		"api error",
		"overloaded",
	}
	exitedMarkers = []string{
		"pane is dead",
		"process exited",
	}
)

// DetectActivity classifies a captured pane tail. Heuristic by nature;
// unknown output defaults to idle because a quiet pane is the common case.
func (a *Agent) DetectActivity(output string) session.Activity {
	tail := strings.ToLower(tailLines(output, 15))
	if tail == "" {
		return session.ActivityIdle
	}
	for _, m := range exitedMarkers {
		if strings.Contains(tail, m) {
			return session.ActivityExited
		}
	}
	for _, m := range blockedMarkers {
		if strings.Contains(tail, m) {
			return session.ActivityBlocked
		}
	}
	for _, m := range waitingMarkers {
		if strings.Contains(tail, m) {
			return session.ActivityWaitingInput
		}
	}
	for _, m := range activeMarkers {
		if strings.Contains(tail, m) {
			return session.ActivityActive
		}
	}
	return session.ActivityIdle
}

// ActivityState probes the live session: process liveness first, then the
// output heuristic.
func (a *Agent) ActivityState(ctx context.Context, rt plugin.Runtime, handle string) (session.Activity, error) {
	running, err := a.IsProcessRunning(ctx, rt, handle)
	if err != nil {
		return session.ActivityExited, err
	}
	if !running {
		return session.ActivityExited, nil
	}
	out, err := rt.Output(ctx, handle, 50)
	if err != nil {
		return session.ActivityIdle, err
	}
	return a.DetectActivity(out), nil
}

// IsProcessRunning reports whether the agent process is alive inside the
// runtime. A live terminal with a dead pane counts as not running.
func (a *Agent) IsProcessRunning(ctx context.Context, rt plugin.Runtime, handle string) (bool, error) {
	alive, err := rt.IsAlive(ctx, handle)
	if err != nil || !alive {
		return false, err
	}
	m, err := rt.Metrics(ctx, handle)
	if err != nil {
		// The terminal answered IsAlive; treat a metrics failure as alive
		// rather than declaring a running agent dead.
		a.log.Warn("metrics probe failed", "session", handle, "error", err)
		return true, nil
	}
	return !m.PaneDead, nil
}

// PostLaunchSetup delivers the initial instruction once the runtime exists.
// A DeliveryAmbiguous result is passed through so the caller can record it.
func (a *Agent) PostLaunchSetup(ctx context.Context, rt plugin.Runtime, handle string, spec plugin.LaunchSpec) error {
	if spec.Prompt == "" {
		return nil
	}
	a.log.Info("delivering initial prompt", "session", spec.SessionID)
	return rt.SendMessage(ctx, handle, spec.Prompt)
}

// tailLines returns the last n non-empty lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append([]string{lines[i]}, kept...)
	}
	return strings.Join(kept, "\n")
}
