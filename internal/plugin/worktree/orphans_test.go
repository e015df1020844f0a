package worktree

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/execx"
)

func mkWorktreeDir(t *testing.T, root, project, name string) string {
	t.Helper()
	path := filepath.Join(root, project, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	return path
}

func TestOrphans(t *testing.T) {
	fake := execx.NewFakeExecutor()
	w := newTestWorkspace(t, fake)

	claimed := mkWorktreeDir(t, w.Root, "api", "drover-api-w1")
	orphan1 := mkWorktreeDir(t, w.Root, "api", "drover-api-w2")
	orphan2 := mkWorktreeDir(t, w.Root, "web", "drover-web-w1")

	got, err := w.Orphans(map[string]bool{claimed: true})
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	sort.Strings(got)
	want := []string{orphan1, orphan2}
	sort.Strings(want)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Orphans = %v, want %v", got, want)
	}
}

func TestOrphansEmptyRoot(t *testing.T) {
	w := newTestWorkspace(t, execx.NewFakeExecutor())
	w.Root = filepath.Join(t.TempDir(), "does-not-exist")

	got, err := w.Orphans(nil)
	if err != nil || got != nil {
		t.Errorf("Orphans = %v, %v; want nil, nil", got, err)
	}
}

func TestPruneOrphans(t *testing.T) {
	fake := execx.NewFakeExecutor()
	w := newTestWorkspace(t, fake)
	proj := config.Project{ID: "api", Path: t.TempDir()}

	claimed := mkWorktreeDir(t, w.Root, "api", "drover-api-w1")
	orphan := mkWorktreeDir(t, w.Root, "api", "drover-api-w2")
	unknownProj := mkWorktreeDir(t, w.Root, "gone-project", "drover-gone-w1")

	pruned, err := w.PruneOrphans(context.Background(), []config.Project{proj}, map[string]bool{claimed: true})
	if err != nil {
		t.Fatalf("PruneOrphans: %v", err)
	}
	if len(pruned) != 2 {
		t.Fatalf("pruned = %v, want 2 paths", pruned)
	}

	if _, err := os.Stat(claimed); err != nil {
		t.Error("claimed worktree was removed")
	}
	for _, path := range []string{orphan, unknownProj} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("orphan %s still exists", path)
		}
	}

	// Configured projects go through git; unconfigured ones cannot.
	if fake.CallCount("git worktree remove --force "+orphan) != 1 {
		t.Error("expected git-managed removal for configured project")
	}
	if fake.CallCount("git worktree prune") != 1 {
		t.Error("expected one prune for the touched project")
	}
}
