package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role distinguishes worker sessions from the per-project orchestrator.
type Role string

const (
	RoleWorker       Role = "worker"
	RoleOrchestrator Role = "orchestrator"
)

// Status is the authoritative workflow position of a session.
type Status string

const (
	StatusSpawning         Status = "spawning"
	StatusWorking          Status = "working"
	StatusPROpen           Status = "pr_open"
	StatusReviewPending    Status = "review_pending"
	StatusCIFailed         Status = "ci_failed"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusMergeable        Status = "mergeable"
	StatusMerged           Status = "merged"
	StatusNeedsInput       Status = "needs_input"
	StatusStuck            Status = "stuck"
	StatusErrored          Status = "errored"
	StatusCleanup          Status = "cleanup"
	StatusKilled           Status = "killed"
	StatusDone             Status = "done"
	StatusTerminated       Status = "terminated"
)

// terminalStatuses are never polled or transitioned again.
var terminalStatuses = map[Status]bool{
	StatusMerged:     true,
	StatusKilled:     true,
	StatusDone:       true,
	StatusTerminated: true,
	StatusCleanup:    true,
}

// Terminal reports whether the status permanently excludes the session from
// reconciliation.
func (s Status) Terminal() bool {
	return terminalStatuses[s]
}

// Valid reports whether s is a member of the closed status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusSpawning, StatusWorking, StatusPROpen, StatusReviewPending,
		StatusCIFailed, StatusChangesRequested, StatusApproved, StatusMergeable,
		StatusMerged, StatusNeedsInput, StatusStuck, StatusErrored,
		StatusCleanup, StatusKilled, StatusDone, StatusTerminated:
		return true
	}
	return false
}

// Activity is the volatile engagement signal of the underlying process,
// orthogonal to workflow status.
type Activity string

const (
	ActivityActive       Activity = "active"
	ActivityIdle         Activity = "idle"
	ActivityWaitingInput Activity = "waiting_input"
	ActivityBlocked      Activity = "blocked"
	ActivityExited       Activity = "exited"
)

// Valid reports whether a is a member of the closed activity enum.
func (a Activity) Valid() bool {
	switch a {
	case ActivityActive, ActivityIdle, ActivityWaitingInput, ActivityBlocked, ActivityExited:
		return true
	}
	return false
}

// Ref links a session to an external tracker issue or SCM pull request.
type Ref struct {
	Source string // "github", "asana", ...
	ID     string // issue number / PR number as a string
	URL    string
}

// String renders the ref as source:id for persistence.
func (r Ref) String() string {
	if r.ID == "" {
		return ""
	}
	if r.Source == "" {
		return r.ID
	}
	return r.Source + ":" + r.ID
}

// ParseRef parses a source:id persisted value. A bare value is an ID with no
// source.
func ParseRef(s string) Ref {
	if s == "" {
		return Ref{}
	}
	if source, id, ok := strings.Cut(s, ":"); ok {
		return Ref{Source: source, ID: id}
	}
	return Ref{ID: s}
}

// Session is one tracked unit of work.
type Session struct {
	ID            string
	ProjectID     string
	Role          Role
	Status        Status
	Activity      Activity
	Branch        string
	WorkspacePath string
	IssueRef      Ref
	PRRef         Ref
	// RuntimeHandle is the opaque live-process reference owned by the
	// session between runtime create and destroy. Empty otherwise.
	RuntimeHandle  string
	Summary        string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Terminal reports whether the session has reached a terminal status.
func (s *Session) Terminal() bool {
	return s.Status.Terminal()
}

// MaxBranchNameValidation is the maximum length for user-provided branch names.
const MaxBranchNameValidation = 100

// validBranchNameRegex matches valid git branch name characters.
// Git branch names cannot contain: space, ~, ^, :, ?, *, [, \, or control
// characters. They also cannot start with - or end with .lock.
var validBranchNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9/_.-]*$`)

// ValidateBranchName checks if a branch name is valid for git.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return nil // Empty is allowed (will use default)
	}

	if len(branch) > MaxBranchNameValidation {
		return fmt.Errorf("branch name too long (max %d characters)", MaxBranchNameValidation)
	}

	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}

	if strings.HasSuffix(branch, ".lock") {
		return fmt.Errorf("branch name cannot end with '.lock'")
	}

	if strings.Contains(branch, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}

	if !validBranchNameRegex.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters (use letters, numbers, /, _, ., -)")
	}

	return nil
}
