package manager

import (
	"context"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// Kill force-terminates a session: the runtime is destroyed, a worker's
// workspace and branch are removed, and the record is archived. The
// orchestrator's workspace is the project checkout and is never touched.
func (m *Manager) Kill(ctx context.Context, id string) error {
	const op errors.Op = "manager.Kill"

	unlock := m.store.Lock(id)
	defer unlock()

	sess, err := m.load(id)
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	if sess == nil {
		return errors.SessionNotFound(op, id)
	}

	m.teardown(ctx, sess)
	if err := m.store.Delete(id, true); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	m.log.Info("session killed", "session", id)
	return nil
}

// Cleanup removes a finished session's resources. It is deliberately
// conservative: a session whose completion cannot be established stays
// untouched, and a session with an open pull request is never cleaned.
func (m *Manager) Cleanup(ctx context.Context, id string) (bool, error) {
	const op errors.Op = "manager.Cleanup"

	unlock := m.store.Lock(id)
	defer unlock()

	sess, err := m.load(id)
	if err != nil {
		return false, errors.E(op, errors.KindIO, err)
	}
	if sess == nil {
		return false, errors.SessionNotFound(op, id)
	}

	ok, err := m.cleanable(ctx, sess)
	if err != nil {
		m.log.Warn("cleanup probe failed, leaving session", "session", id, "error", err)
		return false, nil
	}
	if !ok {
		// Record process liveness alongside the decision; a dead process
		// alone is not completion evidence, and operators reading the log
		// should see that it was observed, not skipped.
		alive := false
		if sess.RuntimeHandle != "" {
			alive, _ = m.plugins.Runtime.IsAlive(ctx, sess.RuntimeHandle)
		}
		m.log.Debug("session kept", "session", id, "status", sess.Status, "runtime_alive", alive)
		return false, nil
	}

	m.teardown(ctx, sess)
	if err := m.store.Delete(id, true); err != nil {
		return false, errors.E(op, errors.KindIO, err)
	}
	m.log.Info("session cleaned", "session", id)
	return true, nil
}

// CleanupAll sweeps every session and returns the IDs that were cleaned.
// Per-session failures are logged and do not stop the sweep.
func (m *Manager) CleanupAll(ctx context.Context) ([]string, error) {
	ids, err := m.store.List()
	if err != nil {
		return nil, errors.E(errors.Op("manager.CleanupAll"), errors.KindIO, err)
	}

	var cleaned []string
	for _, id := range ids {
		ok, err := m.Cleanup(ctx, id)
		if err != nil {
			m.log.Warn("cleanup failed", "session", id, "error", err)
			continue
		}
		if ok {
			cleaned = append(cleaned, id)
		}
	}
	return cleaned, nil
}

// cleanable decides whether removing the session cannot lose work. Terminal
// statuses qualify outright. Otherwise the session's PR or issue must be
// verifiably finished; any ambiguity answers no.
func (m *Manager) cleanable(ctx context.Context, sess *session.Session) (bool, error) {
	if sess.Status.Terminal() {
		return true, nil
	}

	proj := m.cfg.Project(sess.ProjectID)
	if proj == nil {
		// Project no longer configured; nothing can be verified.
		return false, nil
	}

	if sess.PRRef.ID != "" {
		st, err := m.plugins.SCM.PRState(ctx, *proj, sess.PRRef)
		if err != nil {
			return false, err
		}
		switch st.State {
		case plugin.PRStateMerged, plugin.PRStateClosed:
			return true, nil
		default:
			return false, nil
		}
	}

	if sess.IssueRef.ID != "" {
		answer, err := m.plugins.Tracker.IsIssueDone(ctx, *proj, sess.IssueRef)
		if err != nil {
			return false, err
		}
		return answer == plugin.AnswerYes, nil
	}

	// No external evidence exists for this session; never clean it
	// automatically.
	return false, nil
}

// teardown releases a session's runtime and, for workers, its workspace.
// Every step is best effort; cleanup of a half-dead session must not wedge.
func (m *Manager) teardown(ctx context.Context, sess *session.Session) {
	if sess.RuntimeHandle != "" {
		if err := m.plugins.Runtime.Destroy(ctx, sess.RuntimeHandle); err != nil {
			m.log.Warn("runtime destroy failed", "session", sess.ID, "error", err)
		}
	}
	if sess.Role != session.RoleWorker || sess.WorkspacePath == "" {
		return
	}
	proj := m.cfg.Project(sess.ProjectID)
	if proj == nil {
		proj = &config.Project{ID: sess.ProjectID}
	}
	if err := m.plugins.Workspace.Destroy(ctx, *proj, sess.WorkspacePath, sess.Branch); err != nil {
		m.log.Warn("workspace destroy failed", "session", sess.ID, "error", err)
	}
}
