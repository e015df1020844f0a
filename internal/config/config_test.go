package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	path := writeConfig(t, `
projects:
  - id: myproj
    path: /srv/repos/myproj
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Projects) != 1 || cfg.Projects[0].ID != "myproj" {
		t.Errorf("projects = %+v", cfg.Projects)
	}
	if cfg.Plugins.Runtime != "tmux" || cfg.Plugins.SCM != "github" {
		t.Errorf("plugin defaults not applied: %+v", cfg.Plugins)
	}
	if cfg.Lifecycle.TickInterval != 30*time.Second {
		t.Errorf("tick interval default = %v", cfg.Lifecycle.TickInterval)
	}
	if _, ok := cfg.Reactions["->ci_failed"]; !ok {
		t.Error("default reactions not applied")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
projects:
  - id: myproj
    path: /srv/repos/myproj
    session_prefix: mp
    branch_prefix: drover/
plugins:
  notifier: log
lifecycle:
  tick_interval: 10s
  max_parallel: 2
reactions:
  "->ci_failed":
    action: notify
    priority: high
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Projects[0].Prefix() != "mp" {
		t.Errorf("prefix = %q", cfg.Projects[0].Prefix())
	}
	if cfg.Plugins.Notifier != "log" {
		t.Errorf("notifier = %q", cfg.Plugins.Notifier)
	}
	if cfg.Lifecycle.TickInterval != 10*time.Second || cfg.Lifecycle.MaxParallel != 2 {
		t.Errorf("lifecycle = %+v", cfg.Lifecycle)
	}
	// Named reaction replaced; others keep defaults.
	if cfg.Reactions["->ci_failed"].Action != ActionNotify {
		t.Errorf("ci_failed reaction = %+v", cfg.Reactions["->ci_failed"])
	}
	if cfg.Reactions["->mergeable"].Action != ActionAutoMerge {
		t.Errorf("mergeable default lost: %+v", cfg.Reactions["->mergeable"])
	}
}

func TestProjectPrefixDefault(t *testing.T) {
	p := Project{ID: "myproj"}
	if p.Prefix() != "myproj" {
		t.Errorf("Prefix() = %q, want project ID", p.Prefix())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no projects", func(c *Config) { c.Projects = nil }, true},
		{"empty project id", func(c *Config) { c.Projects[0].ID = "" }, true},
		{"duplicate project id", func(c *Config) {
			c.Projects = append(c.Projects, Project{ID: "myproj", Path: "/other"})
		}, true},
		{"project without path", func(c *Config) { c.Projects[0].Path = "" }, true},
		{"unknown action", func(c *Config) {
			c.Reactions["->stuck"] = Reaction{Action: "page-everyone"}
		}, true},
		{"send without message", func(c *Config) {
			c.Reactions["->stuck"] = Reaction{Action: ActionSendToAgent}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Projects = []Project{{ID: "myproj", Path: "/srv/repos/myproj"}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestProjectLookup(t *testing.T) {
	cfg := Default()
	cfg.Projects = []Project{{ID: "a", Path: "/a"}, {ID: "b", Path: "/b"}}

	if p := cfg.Project("b"); p == nil || p.Path != "/b" {
		t.Errorf("Project(b) = %+v", p)
	}
	if p := cfg.Project("ghost"); p != nil {
		t.Errorf("Project(ghost) = %+v, want nil", p)
	}
}
