// Package worktree isolates each session in a git worktree on its own
// branch, leaving the project's main checkout untouched.
package worktree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/logger"
)

// Workspace implements plugin.Workspace with git worktrees.
type Workspace struct {
	executor execx.CommandExecutor
	log      *slog.Logger

	// Root is the directory worktrees are created under. Defaults to
	// ~/.drover/worktrees.
	Root string
}

// New creates a worktree workspace provider.
func New(executor execx.CommandExecutor) *Workspace {
	return &Workspace{
		executor: executor,
		log:      logger.ComponentLogger("worktree"),
		Root:     defaultRoot(),
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "drover-worktrees")
	}
	return filepath.Join(home, ".drover", "worktrees")
}

// Create adds a worktree for the project on a new branch and returns its
// path. The branch starts from the project's base branch, preferring the
// freshest origin ref available.
func (w *Workspace) Create(ctx context.Context, proj config.Project, branch string) (string, error) {
	const op errors.Op = "worktree.Create"

	path := w.pathFor(proj, branch)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}

	base := w.resolveBase(ctx, proj)

	out, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "worktree", "add", "-b", branch, path, base)
	if err != nil {
		return "", errors.E(op, errors.KindGit,
			fmt.Sprintf("failed to add worktree at %s from %s: %s", path, base, strings.TrimSpace(string(out))), err)
	}

	w.log.Info("worktree created", "project", proj.ID, "branch", branch, "path", path, "base", base)
	return path, nil
}

// PostCreate copies untracked local configuration the checkout needs, such
// as .env files the repo ignores.
func (w *Workspace) PostCreate(ctx context.Context, proj config.Project, path string) error {
	for _, name := range []string{".env", ".env.local"} {
		src := filepath.Join(proj.Path, name)
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(path, name), data, 0o600); err != nil {
			w.log.Warn("failed to copy local config into worktree", "file", name, "error", err)
		}
	}
	return nil
}

// Destroy removes the worktree and deletes its branch. Safe to call on a
// worktree that is already gone.
func (w *Workspace) Destroy(ctx context.Context, proj config.Project, path, branch string) error {
	const op errors.Op = "worktree.Destroy"

	if path != "" {
		out, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "worktree", "remove", "--force", path)
		if err != nil && !isMissingWorktree(string(out)) {
			return errors.E(op, errors.KindGit, strings.TrimSpace(string(out)), err)
		}
	}

	// Prune bookkeeping for any worktree directory removed out of band.
	if _, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "worktree", "prune"); err != nil {
		w.log.Warn("worktree prune failed", "project", proj.ID, "error", err)
	}

	// Branch deletion is best effort: the branch may be merged and deleted
	// remotely already, or never have been created.
	if branch != "" {
		if out, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "branch", "-D", branch); err != nil {
			w.log.Debug("branch delete skipped", "branch", branch, "output", strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// resolveBase picks the ref new branches start from. A fetch failure falls
// back to the local ref so offline use still works.
func (w *Workspace) resolveBase(ctx context.Context, proj config.Project) string {
	base := proj.BaseBranch
	if base == "" {
		base = w.detectDefaultBranch(ctx, proj)
	}
	if _, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "fetch", "origin", base); err != nil {
		w.log.Warn("fetch failed, branching from local ref", "project", proj.ID, "base", base, "error", err)
		return base
	}
	return "origin/" + base
}

func (w *Workspace) detectDefaultBranch(ctx context.Context, proj config.Project) string {
	out, err := w.executor.Output(ctx, proj.Path, "git", "symbolic-ref", "refs/remotes/origin/HEAD", "--short")
	if err != nil {
		return "main"
	}
	ref := strings.TrimSpace(string(out))
	if name, ok := strings.CutPrefix(ref, "origin/"); ok && name != "" {
		return name
	}
	return "main"
}

func (w *Workspace) pathFor(proj config.Project, branch string) string {
	sanitized := strings.ReplaceAll(branch, "/", "-")
	return filepath.Join(w.Root, proj.ID, sanitized)
}

func isMissingWorktree(out string) bool {
	out = strings.ToLower(out)
	return strings.Contains(out, "is not a working tree") ||
		strings.Contains(out, "no such file or directory") ||
		strings.Contains(out, "does not exist")
}
