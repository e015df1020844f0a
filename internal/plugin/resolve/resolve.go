// Package resolve is the single point where plugin configuration strings
// become concrete implementations. Everything downstream receives a
// plugin.Registry and stays ignorant of which variant is behind each slot.
package resolve

import (
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/plugin/claude"
	"github.com/drover-dev/drover/internal/plugin/github"
	"github.com/drover-dev/drover/internal/plugin/notify"
	"github.com/drover-dev/drover/internal/plugin/tmux"
	"github.com/drover-dev/drover/internal/plugin/worktree"
)

// New builds the registry named by the configuration. An unknown plugin
// name is a configuration error.
func New(plugins config.Plugins, executor execx.CommandExecutor) (*plugin.Registry, error) {
	const op errors.Op = "resolve.New"
	reg := &plugin.Registry{}

	runtimeKind, err := plugin.ParseRuntimeKind(plugins.Runtime)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	switch runtimeKind {
	case plugin.RuntimeTmux:
		reg.Runtime = tmux.New(executor)
	}

	agentKind, err := plugin.ParseAgentKind(plugins.Agent)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	switch agentKind {
	case plugin.AgentClaude:
		reg.Agent = claude.New()
	}

	workspaceKind, err := plugin.ParseWorkspaceKind(plugins.Workspace)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	switch workspaceKind {
	case plugin.WorkspaceWorktree:
		reg.Workspace = worktree.New(executor)
	}

	// The github client serves both tracker and SCM; share one instance so
	// the repo cache is shared too.
	var gh *github.Client

	trackerKind, err := plugin.ParseTrackerKind(plugins.Tracker)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	switch trackerKind {
	case plugin.TrackerGitHub:
		gh = github.New(executor)
		reg.Tracker = gh
	}

	scmKind, err := plugin.ParseSCMKind(plugins.SCM)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	switch scmKind {
	case plugin.SCMGitHub:
		if gh == nil {
			gh = github.New(executor)
		}
		reg.SCM = gh
	}

	notifierKind, err := plugin.ParseNotifierKind(plugins.Notifier)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	switch notifierKind {
	case plugin.NotifierDesktop:
		reg.Notifier = notify.NewDesktop()
	case plugin.NotifierLog:
		reg.Notifier = notify.NewLog()
	}

	return reg, nil
}
