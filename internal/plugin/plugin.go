// Package plugin defines the narrow capability contracts the engine consumes
// and the signal types they report. Every concrete implementation lives in a
// subpackage; the engine depends only on these interfaces and never chooses
// an implementation itself; the resolve subpackage is the single point where
// configuration strings become variants.
package plugin

import (
	"context"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/session"
)

// RuntimeSpec describes the process a Runtime should create.
type RuntimeSpec struct {
	Name    string // requested handle name; must be safe as a process handle
	WorkDir string
	Command []string // argv of the agent process
	Env     map[string]string
}

// RuntimeMetrics are coarse liveness numbers for a runtime handle.
type RuntimeMetrics struct {
	PaneDead  bool
	PanePID   int
	CreatedAt string
}

// Runtime controls the terminal/process a session's agent runs in.
//
// SendMessage implements the delivery protocol the engine relies on: a
// bounded busy-wait for idle before sending, clearing partially-typed input,
// an injection path that cannot interleave with the target's own output for
// multi-line content, and bounded confirmation retries. If the busy-wait is
// exhausted the message is still sent and the returned error has kind
// DeliveryAmbiguous.
type Runtime interface {
	Create(ctx context.Context, spec RuntimeSpec) (handle string, err error)
	Destroy(ctx context.Context, handle string) error
	SendMessage(ctx context.Context, handle, message string) error
	Output(ctx context.Context, handle string, lines int) (string, error)
	IsAlive(ctx context.Context, handle string) (bool, error)
	Metrics(ctx context.Context, handle string) (RuntimeMetrics, error)
	AttachInfo(handle string) string
}

// LaunchSpec is what an Agent needs to produce its launch command.
type LaunchSpec struct {
	SessionID string
	WorkDir   string
	Prompt    string   // initial instruction, may be empty
	ExtraArgs []string // per-spawn override arguments
}

// Agent drives a specific coding-assistant CLI.
type Agent interface {
	LaunchCommand(spec LaunchSpec) []string
	Environment(spec LaunchSpec) map[string]string
	// DetectActivity classifies captured terminal output. Cheap, heuristic.
	DetectActivity(output string) session.Activity
	// ActivityState is the richer probe: it may inspect the process table in
	// addition to output. rt is the runtime owning the session's handle.
	ActivityState(ctx context.Context, rt Runtime, handle string) (session.Activity, error)
	// IsProcessRunning reports whether the agent process itself (not just
	// the surrounding terminal) is alive inside the runtime.
	IsProcessRunning(ctx context.Context, rt Runtime, handle string) (bool, error)
	// PostLaunchSetup runs once after the runtime is created: dismissing
	// trust prompts, injecting the first instruction, and similar.
	PostLaunchSetup(ctx context.Context, rt Runtime, handle string, spec LaunchSpec) error
}

// Workspace isolates a session's checkout.
type Workspace interface {
	// Create produces an isolated checkout on a new branch and returns its
	// path. It must be safe to roll back with Destroy on a later failure.
	Create(ctx context.Context, proj config.Project, branch string) (path string, err error)
	PostCreate(ctx context.Context, proj config.Project, path string) error
	// Destroy removes the checkout and its branch. Idempotent.
	Destroy(ctx context.Context, proj config.Project, path, branch string) error
}

// Issue is a tracker work item.
type Issue struct {
	Ref   session.Ref
	Title string
	Body  string
}

// Answer is a tri-state reply for completion probes. Cleanup must stay
// non-destructive on AnswerUnknown.
type Answer int

const (
	AnswerUnknown Answer = iota
	AnswerYes
	AnswerNo
)

// Tracker is the read-only issue source.
type Tracker interface {
	Issue(ctx context.Context, proj config.Project, ref session.Ref) (Issue, error)
	GeneratePrompt(issue Issue) string
	IsIssueDone(ctx context.Context, proj config.Project, ref session.Ref) (Answer, error)
}

// PRStateKind is the coarse pull request state.
type PRStateKind string

const (
	PRStateNone   PRStateKind = "none"
	PRStateOpen   PRStateKind = "open"
	PRStateMerged PRStateKind = "merged"
	PRStateClosed PRStateKind = "closed"
)

// CIStatus summarizes a PR's checks.
type CIStatus string

const (
	CIStatusNone    CIStatus = "none"
	CIStatusPending CIStatus = "pending"
	CIStatusPassing CIStatus = "passing"
	CIStatusFailing CIStatus = "failing"
)

// ReviewDecision summarizes a PR's review state.
type ReviewDecision string

const (
	ReviewNone             ReviewDecision = "none"
	ReviewPending          ReviewDecision = "pending"
	ReviewApproved         ReviewDecision = "approved"
	ReviewChangesRequested ReviewDecision = "changes_requested"
)

// PRState is everything the lifecycle engine needs to know about a PR.
type PRState struct {
	State             PRStateKind
	IsDraft           bool
	UnresolvedThreads int
	HasConflicts      bool
	URL               string
}

// SCM is the pull-request/CI/review source.
type SCM interface {
	// DetectPR finds the PR for a branch, if one exists.
	DetectPR(ctx context.Context, proj config.Project, branch string) (session.Ref, bool, error)
	PRState(ctx context.Context, proj config.Project, ref session.Ref) (PRState, error)
	CISummary(ctx context.Context, proj config.Project, ref session.Ref) (CIStatus, error)
	ReviewDecision(ctx context.Context, proj config.Project, ref session.Ref) (ReviewDecision, error)
	Merge(ctx context.Context, proj config.Project, ref session.Ref) error
}

// Event is a human-facing notification.
type Event struct {
	SessionID string
	Title     string
	Message   string
}

// Notifier pushes events to a human. Fire-and-forget from the engine's
// perspective: delivery failures are logged by callers, never fatal.
type Notifier interface {
	Notify(ctx context.Context, event Event, priority string) error
}

// Registry is the full set of resolved capability plugins, constructed once
// and passed by dependency injection into the session and lifecycle
// managers. There is no ambient lookup.
type Registry struct {
	Runtime   Runtime
	Agent     Agent
	Workspace Workspace
	Tracker   Tracker
	SCM       SCM
	Notifier  Notifier
}
