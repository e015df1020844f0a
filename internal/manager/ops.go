package manager

import (
	"context"
	"time"

	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/session"
)

// Get returns one session, enriched with a live activity probe when the
// session still has a runtime. The probed activity is persisted so listings
// stay fresh between ticks.
func (m *Manager) Get(ctx context.Context, id string) (*session.Session, error) {
	const op errors.Op = "manager.Get"

	sess, err := m.load(id)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	if sess == nil {
		return nil, errors.SessionNotFound(op, id)
	}

	if !sess.Status.Terminal() && sess.RuntimeHandle != "" {
		activity, err := m.plugins.Agent.ActivityState(ctx, m.plugins.Runtime, sess.RuntimeHandle)
		if err != nil {
			m.log.Debug("activity probe failed", "session", id, "error", err)
			return sess, nil
		}
		if activity != sess.Activity {
			sess.Activity = activity
			sess.LastActivityAt = time.Now().UTC()
			if err := m.store.Update(id, map[string]string{
				session.FieldActivity:       string(activity),
				session.FieldLastActivityAt: sess.LastActivityAt.Format(time.RFC3339),
			}); err != nil {
				m.log.Warn("failed to persist activity", "session", id, "error", err)
			}
		}
	}
	return sess, nil
}

// List returns every readable session, sorted by ID. Stale records are
// skipped, not surfaced.
func (m *Manager) List(ctx context.Context) ([]*session.Session, error) {
	const op errors.Op = "manager.List"

	ids, err := m.store.List()
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := m.load(id)
		if err != nil {
			return nil, errors.E(op, errors.KindIO, err)
		}
		if sess == nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Send delivers a message to a session's agent. A DeliveryAmbiguous error
// from the runtime passes through so callers can distinguish "unconfirmed"
// from "failed".
func (m *Manager) Send(ctx context.Context, id, message string) error {
	const op errors.Op = "manager.Send"

	unlock := m.store.Lock(id)
	defer unlock()

	sess, err := m.load(id)
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	if sess == nil {
		return errors.SessionNotFound(op, id)
	}
	if sess.RuntimeHandle == "" {
		return errors.RuntimeDead(op, id)
	}
	alive, err := m.plugins.Runtime.IsAlive(ctx, sess.RuntimeHandle)
	if err != nil {
		return errors.PluginFailed(op, "runtime", id, err)
	}
	if !alive {
		return errors.RuntimeDead(op, id)
	}

	sendErr := m.plugins.Runtime.SendMessage(ctx, sess.RuntimeHandle, message)
	if sendErr != nil && !errors.Is(sendErr, errors.KindDeliveryAmbiguous) {
		return errors.PluginFailed(op, "runtime", id, sendErr)
	}

	if err := m.store.UpdateLocked(id, map[string]string{
		session.FieldLastActivityAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		m.log.Warn("failed to persist activity timestamp", "session", id, "error", err)
	}
	return sendErr
}

// Restore reattaches to a session's live runtime. A session whose runtime
// handle is gone or reports dead cannot be reattached; that surfaces as a
// not-found class error and the caller spawns a fresh session instead.
func (m *Manager) Restore(ctx context.Context, id string) (*session.Session, error) {
	const op errors.Op = "manager.Restore"

	unlock := m.store.Lock(id)
	defer unlock()

	sess, err := m.load(id)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	if sess == nil {
		return nil, errors.SessionNotFound(op, id)
	}
	if sess.Status.Terminal() {
		return nil, errors.E(op, errors.KindInvalid, "cannot restore a terminal session")
	}
	if sess.RuntimeHandle == "" {
		return nil, errors.RuntimeDead(op, id)
	}
	alive, err := m.plugins.Runtime.IsAlive(ctx, sess.RuntimeHandle)
	if err != nil {
		return nil, errors.PluginFailed(op, "runtime", id, err)
	}
	if !alive {
		return nil, errors.RuntimeDead(op, id)
	}

	sess.LastActivityAt = time.Now().UTC()
	if err := m.store.UpdateLocked(id, map[string]string{
		session.FieldLastActivityAt: sess.LastActivityAt.Format(time.RFC3339),
	}); err != nil {
		m.log.Warn("failed to persist activity timestamp", "session", id, "error", err)
	}
	m.log.Info("session reattached", "session", id)
	return sess, nil
}
