package worktree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/execx"
)

func testProject(t *testing.T) config.Project {
	t.Helper()
	return config.Project{ID: "api", Path: t.TempDir(), BaseBranch: "main"}
}

func newTestWorkspace(t *testing.T, fake *execx.FakeExecutor) *Workspace {
	t.Helper()
	w := New(fake)
	w.Root = t.TempDir()
	return w
}

func TestCreate(t *testing.T) {
	fake := execx.NewFakeExecutor()
	w := newTestWorkspace(t, fake)
	proj := testProject(t)

	path, err := w.Create(context.Background(), proj, "drover/fix-auth")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := filepath.Join(w.Root, "api", "drover-fix-auth")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	var added string
	for _, call := range fake.Calls() {
		if strings.HasPrefix(call, "git worktree add") {
			added = call
		}
	}
	if added == "" {
		t.Fatal("no worktree add call recorded")
	}
	if !strings.Contains(added, "-b drover/fix-auth") {
		t.Errorf("worktree add missing branch flag: %s", added)
	}
	if !strings.HasSuffix(added, "origin/main") {
		t.Errorf("worktree should branch from fetched origin/main: %s", added)
	}
}

func TestCreateFallsBackToLocalBaseWhenFetchFails(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptError("git fetch", "could not resolve host")
	w := newTestWorkspace(t, fake)

	if _, err := w.Create(context.Background(), testProject(t), "drover/offline"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, call := range fake.Calls() {
		if strings.HasPrefix(call, "git worktree add") && !strings.HasSuffix(call, " main") {
			t.Errorf("expected local base ref after fetch failure: %s", call)
		}
	}
}

func TestCreateDetectsDefaultBranch(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("git symbolic-ref", "origin/develop\n")
	w := newTestWorkspace(t, fake)
	proj := testProject(t)
	proj.BaseBranch = ""

	if _, err := w.Create(context.Background(), proj, "drover/w5"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fake.CallCount("git fetch origin develop") != 1 {
		t.Error("expected fetch of detected default branch")
	}
}

func TestCreateSurfacesGitFailure(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptError("git worktree add", "fatal: branch already exists")
	w := newTestWorkspace(t, fake)

	if _, err := w.Create(context.Background(), testProject(t), "drover/dup"); err == nil {
		t.Fatal("expected error from worktree add failure")
	}
}

func TestDestroy(t *testing.T) {
	fake := execx.NewFakeExecutor()
	w := newTestWorkspace(t, fake)
	proj := testProject(t)

	if err := w.Destroy(context.Background(), proj, "/tmp/wt", "drover/fix-auth"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if fake.CallCount("git worktree remove --force /tmp/wt") != 1 {
		t.Error("expected forced worktree remove")
	}
	if fake.CallCount("git worktree prune") != 1 {
		t.Error("expected worktree prune")
	}
	if fake.CallCount("git branch -D drover/fix-auth") != 1 {
		t.Error("expected branch delete attempt")
	}
}

func TestDestroyIdempotent(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.Script("git worktree remove", execx.FakeResult{
		Stderr: "fatal: '/tmp/wt' is not a working tree",
		Err:    errExit{},
	})
	fake.Script("git branch -D", execx.FakeResult{
		Stderr: "error: branch 'drover/gone' not found",
		Err:    errExit{},
	})
	w := newTestWorkspace(t, fake)

	if err := w.Destroy(context.Background(), testProject(t), "/tmp/wt", "drover/gone"); err != nil {
		t.Fatalf("Destroy of missing worktree should succeed, got %v", err)
	}
}

func TestPostCreateCopiesEnvFiles(t *testing.T) {
	fake := execx.NewFakeExecutor()
	w := newTestWorkspace(t, fake)
	proj := testProject(t)
	dest := t.TempDir()

	writeFile(t, filepath.Join(proj.Path, ".env"), "API_KEY=secret")
	if err := w.PostCreate(context.Background(), proj, dest); err != nil {
		t.Fatalf("PostCreate: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, ".env")); got != "API_KEY=secret" {
		t.Errorf(".env contents = %q", got)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

type errExit struct{}

func (errExit) Error() string { return "exit status 1" }
