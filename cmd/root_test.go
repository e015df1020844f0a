package cmd

import (
	"strings"
	"testing"
	"time"
)

func TestVersionTemplate(t *testing.T) {
	SetVersionInfo("1.2.3", "abc1234", "2026-09-01")
	tmpl := versionTemplate()
	for _, want := range []string{"1.2.3", "abc1234", "2026-09-01"} {
		if !strings.Contains(tmpl, want) {
			t.Errorf("version template missing %q: %s", want, tmpl)
		}
	}

	SetVersionInfo("dev", "none", "unknown")
	if tmpl := versionTemplate(); strings.Contains(tmpl, "commit") {
		t.Errorf("dev template should omit commit info: %s", tmpl)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"run": false, "sessions": false, "clean": false,
		"spawn": false, "send": false, "kill": false,
	}
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestHumanSince(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := humanSince(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("humanSince(%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
