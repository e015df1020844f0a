package plugin

import "fmt"

// The variant sets below enumerate every known implementation per
// capability at the type level. Configuration strings are parsed into these
// kinds exactly once (resolve package); nothing else in the engine dispatches
// on plugin names.

// RuntimeKind enumerates the Runtime variants.
type RuntimeKind int

const (
	RuntimeTmux RuntimeKind = iota
)

// ParseRuntimeKind maps a configuration string to a RuntimeKind.
func ParseRuntimeKind(s string) (RuntimeKind, error) {
	switch s {
	case "", "tmux":
		return RuntimeTmux, nil
	}
	return 0, fmt.Errorf("unknown runtime plugin %q", s)
}

// AgentKind enumerates the Agent variants.
type AgentKind int

const (
	AgentClaude AgentKind = iota
)

// ParseAgentKind maps a configuration string to an AgentKind.
func ParseAgentKind(s string) (AgentKind, error) {
	switch s {
	case "", "claude":
		return AgentClaude, nil
	}
	return 0, fmt.Errorf("unknown agent plugin %q", s)
}

// WorkspaceKind enumerates the Workspace variants.
type WorkspaceKind int

const (
	WorkspaceWorktree WorkspaceKind = iota
)

// ParseWorkspaceKind maps a configuration string to a WorkspaceKind.
func ParseWorkspaceKind(s string) (WorkspaceKind, error) {
	switch s {
	case "", "worktree":
		return WorkspaceWorktree, nil
	}
	return 0, fmt.Errorf("unknown workspace plugin %q", s)
}

// TrackerKind enumerates the Tracker variants.
type TrackerKind int

const (
	TrackerGitHub TrackerKind = iota
)

// ParseTrackerKind maps a configuration string to a TrackerKind.
func ParseTrackerKind(s string) (TrackerKind, error) {
	switch s {
	case "", "github":
		return TrackerGitHub, nil
	}
	return 0, fmt.Errorf("unknown tracker plugin %q", s)
}

// SCMKind enumerates the SCM variants.
type SCMKind int

const (
	SCMGitHub SCMKind = iota
)

// ParseSCMKind maps a configuration string to an SCMKind.
func ParseSCMKind(s string) (SCMKind, error) {
	switch s {
	case "", "github":
		return SCMGitHub, nil
	}
	return 0, fmt.Errorf("unknown scm plugin %q", s)
}

// NotifierKind enumerates the Notifier variants.
type NotifierKind int

const (
	NotifierDesktop NotifierKind = iota
	NotifierLog
)

// ParseNotifierKind maps a configuration string to a NotifierKind.
func ParseNotifierKind(s string) (NotifierKind, error) {
	switch s {
	case "", "desktop":
		return NotifierDesktop, nil
	case "log":
		return NotifierLog, nil
	}
	return 0, fmt.Errorf("unknown notifier plugin %q", s)
}
