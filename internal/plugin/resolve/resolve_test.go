package resolve

import (
	"testing"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/execx"
)

func TestNewDefaults(t *testing.T) {
	reg, err := New(config.Plugins{}, execx.NewFakeExecutor())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if reg.Runtime == nil || reg.Agent == nil || reg.Workspace == nil ||
		reg.Tracker == nil || reg.SCM == nil || reg.Notifier == nil {
		t.Errorf("registry has nil slots: %+v", reg)
	}
}

func TestNewSharedGitHubClient(t *testing.T) {
	reg, err := New(config.Plugins{Tracker: "github", SCM: "github"}, execx.NewFakeExecutor())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if any(reg.Tracker) != any(reg.SCM) {
		t.Error("tracker and SCM should share one github client")
	}
}

func TestNewLogNotifier(t *testing.T) {
	reg, err := New(config.Plugins{Notifier: "log"}, execx.NewFakeExecutor())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if reg.Notifier == nil {
		t.Fatal("notifier not resolved")
	}
}

func TestNewUnknownPlugin(t *testing.T) {
	tests := []config.Plugins{
		{Runtime: "screen"},
		{Agent: "copilot"},
		{Workspace: "clone"},
		{Tracker: "jira"},
		{SCM: "gitlab"},
		{Notifier: "sms"},
	}
	for _, plugins := range tests {
		if _, err := New(plugins, execx.NewFakeExecutor()); !errors.Is(err, errors.KindConfig) {
			t.Errorf("New(%+v) error = %v, want config kind", plugins, err)
		}
	}
}
