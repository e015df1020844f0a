package worktree

import (
	"context"
	"os"
	"path/filepath"

	"github.com/drover-dev/drover/internal/config"
)

// Orphans returns worktree directories under Root that no live session
// claims. live is keyed by workspace path.
func (w *Workspace) Orphans(live map[string]bool) ([]string, error) {
	projects, err := os.ReadDir(w.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var orphans []string
	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(w.Root, proj.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(w.Root, proj.Name(), entry.Name())
			if !live[path] {
				orphans = append(orphans, path)
			}
		}
	}
	return orphans, nil
}

// PruneOrphans removes unclaimed worktree directories. Directories whose
// project is still configured go through git so worktree bookkeeping stays
// consistent; the rest are plain directory removals.
func (w *Workspace) PruneOrphans(ctx context.Context, projects []config.Project, live map[string]bool) ([]string, error) {
	orphans, err := w.Orphans(live)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]config.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	var pruned []string
	touched := make(map[string]config.Project)
	for _, path := range orphans {
		projID := filepath.Base(filepath.Dir(path))
		if proj, ok := byID[projID]; ok {
			if out, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "worktree", "remove", "--force", path); err != nil && !isMissingWorktree(string(out)) {
				w.log.Warn("orphan worktree remove failed, deleting directly", "path", path, "error", err)
			}
			touched[proj.ID] = proj
		}
		if err := os.RemoveAll(path); err != nil {
			w.log.Warn("failed to delete orphan directory", "path", path, "error", err)
			continue
		}
		pruned = append(pruned, path)
		w.log.Info("orphan worktree pruned", "path", path)
	}

	for _, proj := range touched {
		if _, err := w.executor.CombinedOutput(ctx, proj.Path, "git", "worktree", "prune"); err != nil {
			w.log.Warn("worktree prune failed", "project", proj.ID, "error", err)
		}
	}
	return pruned, nil
}
