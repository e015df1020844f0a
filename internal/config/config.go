// Package config holds drover's resolved configuration: project definitions,
// plugin selections, the reaction policy map, and engine tuning. File
// discovery and flag plumbing belong to the surrounding CLI layer; the
// engine only ever sees the resolved value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Project defines one coordinated repository.
type Project struct {
	ID            string `yaml:"id"`
	Path          string `yaml:"path"`                     // repo checkout the orchestrator works in
	SessionPrefix string `yaml:"session_prefix,omitempty"` // defaults to ID
	BranchPrefix  string `yaml:"branch_prefix,omitempty"`  // prepended to auto-generated branch names
	BaseBranch    string `yaml:"base_branch,omitempty"`    // defaults to origin's default branch
}

// Prefix returns the session ID prefix for the project.
func (p Project) Prefix() string {
	if p.SessionPrefix != "" {
		return p.SessionPrefix
	}
	return p.ID
}

// Plugins selects one concrete implementation per capability. Resolution of
// these strings into variants happens exactly once, in plugin.Resolve.
type Plugins struct {
	Runtime   string `yaml:"runtime,omitempty"`   // "tmux"
	Agent     string `yaml:"agent,omitempty"`     // "claude"
	Workspace string `yaml:"workspace,omitempty"` // "worktree"
	Tracker   string `yaml:"tracker,omitempty"`   // "github"
	SCM       string `yaml:"scm,omitempty"`       // "github"
	Notifier  string `yaml:"notifier,omitempty"`  // "desktop" or "log"
}

// Action is what a reaction does when its event fires.
type Action string

const (
	ActionSendToAgent Action = "send-to-agent"
	ActionNotify      Action = "notify"
	ActionAutoMerge   Action = "auto-merge"
)

// Reaction is one entry of the reaction policy map. The policy is read-only
// configuration; the lifecycle manager is its sole consumer.
type Reaction struct {
	Action Action `yaml:"action"`
	// Message is the instruction template for send-to-agent, rendered with
	// {{.SessionID}}, {{.Branch}}, {{.PR}}, {{.Status}}.
	Message string `yaml:"message,omitempty"`
	// Retries caps automatic sends per transition before the reaction stops.
	Retries int `yaml:"retries,omitempty"`
	// EscalateAfter is the send count after which automation stops and a
	// human notification fires instead.
	EscalateAfter int `yaml:"escalate_after,omitempty"`
	// Priority is the notification priority for notify (low/normal/high).
	Priority string `yaml:"priority,omitempty"`
}

// Lifecycle tunes the reconciliation loop.
type Lifecycle struct {
	TickInterval  time.Duration `yaml:"tick_interval,omitempty"`
	TickDeadline  time.Duration `yaml:"tick_deadline,omitempty"`
	PluginTimeout time.Duration `yaml:"plugin_timeout,omitempty"`
	MaxParallel   int           `yaml:"max_parallel,omitempty"`
}

// Config is the resolved configuration for one drover process.
type Config struct {
	StateDir  string              `yaml:"state_dir,omitempty"`
	Projects  []Project           `yaml:"projects"`
	Plugins   Plugins             `yaml:"plugins,omitempty"`
	Reactions map[string]Reaction `yaml:"reactions,omitempty"`
	Lifecycle Lifecycle           `yaml:"lifecycle,omitempty"`
}

// Default returns a config with every tuning knob at its default. Reactions
// default to the standard policy; explicit config replaces entries by key.
func Default() *Config {
	return &Config{
		Plugins: Plugins{
			Runtime:   "tmux",
			Agent:     "claude",
			Workspace: "worktree",
			Tracker:   "github",
			SCM:       "github",
			Notifier:  "desktop",
		},
		Reactions: DefaultReactions(),
		Lifecycle: Lifecycle{
			TickInterval:  30 * time.Second,
			TickDeadline:  5 * time.Minute,
			PluginTimeout: 30 * time.Second,
			MaxParallel:   4,
		},
	}
}

// DefaultReactions is the standard reaction policy. Keys are transition
// event keys: "<from>-><to>" exact, or "-><to>" matching any prior status.
func DefaultReactions() map[string]Reaction {
	return map[string]Reaction{
		"->ci_failed": {
			Action:        ActionSendToAgent,
			Message:       "CI is failing on {{.Branch}}. Inspect the failing checks on PR {{.PR}} and push a fix.",
			Retries:       3,
			EscalateAfter: 3,
			Priority:      "high",
		},
		"->changes_requested": {
			Action:        ActionSendToAgent,
			Message:       "A reviewer requested changes on PR {{.PR}}. Address the review comments and push.",
			Retries:       3,
			EscalateAfter: 3,
			Priority:      "high",
		},
		"->needs_input": {
			Action:   ActionNotify,
			Priority: "high",
		},
		"->stuck": {
			Action:   ActionNotify,
			Priority: "high",
		},
		"->mergeable": {
			Action: ActionAutoMerge,
		},
		"->merged": {
			Action:   ActionNotify,
			Priority: "low",
		},
		"->done": {
			Action:   ActionNotify,
			Priority: "low",
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// A config that sets reactions replaces only the keys it names.
	if cfg.Reactions == nil {
		cfg.Reactions = DefaultReactions()
	} else {
		merged := DefaultReactions()
		for key, r := range cfg.Reactions {
			merged[key] = r
		}
		cfg.Reactions = merged
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the default config file location (~/.drover/config.yaml).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".drover", "config.yaml"), nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Plugins.Runtime == "" {
		cfg.Plugins.Runtime = def.Plugins.Runtime
	}
	if cfg.Plugins.Agent == "" {
		cfg.Plugins.Agent = def.Plugins.Agent
	}
	if cfg.Plugins.Workspace == "" {
		cfg.Plugins.Workspace = def.Plugins.Workspace
	}
	if cfg.Plugins.Tracker == "" {
		cfg.Plugins.Tracker = def.Plugins.Tracker
	}
	if cfg.Plugins.SCM == "" {
		cfg.Plugins.SCM = def.Plugins.SCM
	}
	if cfg.Plugins.Notifier == "" {
		cfg.Plugins.Notifier = def.Plugins.Notifier
	}
	if cfg.Lifecycle.TickInterval == 0 {
		cfg.Lifecycle.TickInterval = def.Lifecycle.TickInterval
	}
	if cfg.Lifecycle.TickDeadline == 0 {
		cfg.Lifecycle.TickDeadline = def.Lifecycle.TickDeadline
	}
	if cfg.Lifecycle.PluginTimeout == 0 {
		cfg.Lifecycle.PluginTimeout = def.Lifecycle.PluginTimeout
	}
	if cfg.Lifecycle.MaxParallel == 0 {
		cfg.Lifecycle.MaxParallel = def.Lifecycle.MaxParallel
	}
}

// Validate checks the resolved config for mistakes worth failing fast on.
func (c *Config) Validate() error {
	if len(c.Projects) == 0 {
		return fmt.Errorf("config has no projects")
	}
	seen := make(map[string]bool)
	for _, p := range c.Projects {
		if p.ID == "" {
			return fmt.Errorf("project with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate project id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Path == "" {
			return fmt.Errorf("project %q has no path", p.ID)
		}
	}
	for key, r := range c.Reactions {
		switch r.Action {
		case ActionSendToAgent, ActionNotify, ActionAutoMerge:
		default:
			return fmt.Errorf("reaction %q has unknown action %q", key, r.Action)
		}
		if r.Action == ActionSendToAgent && r.Message == "" {
			return fmt.Errorf("reaction %q is send-to-agent but has no message", key)
		}
	}
	return nil
}

// Project returns the project with the given ID, or nil.
func (c *Config) Project(id string) *Project {
	for i := range c.Projects {
		if c.Projects[i].ID == id {
			return &c.Projects[i]
		}
	}
	return nil
}
