// Package lifecycle runs the reconciliation loop: it periodically compares
// each live session's observed reality against its tracked status and reacts
// to changes per the configured policy.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/manager"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// Engine is the lifecycle reconciler. One engine instance per host; the
// on-disk lock in Run enforces that.
type Engine struct {
	mgr *manager.Manager
	cfg *config.Config
	log *slog.Logger

	project string // when set, only this project's sessions reconcile

	mu       sync.Mutex
	counters map[string]int // (session, event key) -> automatic sends so far
}

// FilterProject restricts reconciliation to one project's sessions.
func (e *Engine) FilterProject(id string) { e.project = id }

// New creates an engine over the manager's store and plugins.
func New(mgr *manager.Manager, cfg *config.Config) *Engine {
	return &Engine{
		mgr:      mgr,
		cfg:      cfg,
		log:      logger.ComponentLogger("lifecycle"),
		counters: make(map[string]int),
	}
}

// Run acquires the reconciler lock and ticks until the context is done.
// A second reconciler against the same state directory fails fast instead
// of double-driving sessions.
func (e *Engine) Run(ctx context.Context) error {
	const op errors.Op = "lifecycle.Run"

	lockPath := filepath.Join(e.mgr.Store().Root(), "reconciler.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	if !locked {
		return errors.E(op, errors.KindConflict,
			"another reconciler holds "+lockPath+"; stop it or remove the lock if its process is gone")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.log.Warn("failed to release reconciler lock", "error", err)
		}
	}()
	// Advisory PID so a stale lock is diagnosable by hand.
	if err := os.WriteFile(lockPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		e.log.Warn("failed to record reconciler pid", "error", err)
	}

	interval := e.cfg.Lifecycle.TickInterval
	e.log.Info("reconciler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := e.Tick(ctx); err != nil {
		e.log.Error("tick failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			e.log.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.log.Error("tick failed", "error", err)
			}
		}
	}
}

// Tick reconciles every non-terminal session once. Sessions run
// concurrently under a bounded group; per-session failures are logged and
// never abort the pass.
func (e *Engine) Tick(ctx context.Context) error {
	const op errors.Op = "lifecycle.Tick"

	tickCtx, cancel := context.WithTimeout(ctx, e.cfg.Lifecycle.TickDeadline)
	defer cancel()

	sessions, err := e.mgr.List(tickCtx)
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}

	g, gctx := errgroup.WithContext(tickCtx)
	g.SetLimit(e.cfg.Lifecycle.MaxParallel)

	reconciled := 0
	for _, sess := range sessions {
		if sess.Status.Terminal() {
			continue
		}
		if e.project != "" && sess.ProjectID != e.project {
			continue
		}
		reconciled++
		id := sess.ID
		g.Go(func() error {
			if err := e.reconcile(gctx, id); err != nil {
				e.log.Error("session reconciliation failed", "session", id, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.E(op, err)
	}
	e.log.Debug("tick complete", "sessions", reconciled)
	return nil
}

// reconcile observes one session and, if its status changed, dispatches the
// configured reaction. Reactions run after the per-ID lock is released:
// send-to-agent goes back through Manager.Send, which takes the same
// non-reentrant lock.
func (e *Engine) reconcile(ctx context.Context, id string) error {
	proj, sess, next, changed, err := e.observe(ctx, id)
	if err != nil || !changed {
		return err
	}
	e.log.Info("status transition", "session", id, "from", sess.Status, "to", next)
	e.react(ctx, proj, sess, next)
	return nil
}

// observe runs the read-compute-write sequence for one session under its
// store lock and reports whether the status changed.
func (e *Engine) observe(ctx context.Context, id string) (config.Project, *session.Session, session.Status, bool, error) {
	store := e.mgr.Store()
	unlock := store.Lock(id)
	defer unlock()

	none := config.Project{}
	rec, err := store.Read(id)
	if err != nil || rec == nil {
		// Stale records are logged by the store and skipped here.
		return none, nil, "", false, err
	}
	sess, err := session.FromRecord(rec)
	if err != nil {
		return none, nil, "", false, nil
	}
	if sess.Status.Terminal() {
		return none, nil, "", false, nil
	}

	proj := e.cfg.Project(sess.ProjectID)
	if proj == nil {
		e.log.Warn("session references unknown project", "session", id, "project", sess.ProjectID)
		return none, nil, "", false, nil
	}

	sig, prDiscovered := e.gather(ctx, *proj, sess)
	next := DetermineStatus(sig)

	update := map[string]string{}
	if prDiscovered {
		update[session.FieldPR] = sess.PRRef.String()
		update[session.FieldPRURL] = sess.PRRef.URL
	}

	// Rule: a dead process that finished its work leaves an orphaned
	// runtime handle; release it when the session settles into done.
	if next == session.StatusDone && !sig.RuntimeAlive && sess.RuntimeHandle != "" {
		if err := e.mgr.Plugins().Runtime.Destroy(ctx, sess.RuntimeHandle); err != nil {
			e.log.Warn("failed to release orphaned runtime", "session", id, "error", err)
		}
		update[session.FieldRuntime] = ""
	}

	if sig.Activity != sess.Activity {
		update[session.FieldActivity] = string(sig.Activity)
	}

	changed := next != sess.Status
	if changed {
		update[session.FieldStatus] = string(next)
		update[session.FieldLastActivityAt] = time.Now().UTC().Format(time.RFC3339)
	}
	if len(update) > 0 {
		if err := store.UpdateLocked(id, update); err != nil {
			return none, nil, "", false, err
		}
	}
	return *proj, sess, next, changed, nil
}

// gather collects the signal tuple for a session, each plugin call under
// its own timeout. Probe failures degrade to the zero signal rather than
// failing the pass. The returned bool reports whether a PR was newly
// discovered for the session's branch (the caller persists it).
func (e *Engine) gather(ctx context.Context, proj config.Project, sess *session.Session) (Signals, bool) {
	plugins := e.mgr.Plugins()
	sig := Signals{}

	if sess.RuntimeHandle != "" {
		callCtx, cancel := e.pluginCtx(ctx)
		alive, err := plugins.Runtime.IsAlive(callCtx, sess.RuntimeHandle)
		cancel()
		if err != nil {
			e.log.Warn("liveness probe failed", "session", sess.ID, "error", err)
		}
		sig.RuntimeAlive = alive

		callCtx, cancel = e.pluginCtx(ctx)
		activity, err := plugins.Agent.ActivityState(callCtx, plugins.Runtime, sess.RuntimeHandle)
		cancel()
		if err != nil {
			e.log.Warn("activity probe failed", "session", sess.ID, "error", err)
		} else {
			sig.Activity = activity
		}
	}

	prDiscovered := false
	if sess.PRRef.ID == "" && sess.Branch != "" {
		callCtx, cancel := e.pluginCtx(ctx)
		ref, found, err := plugins.SCM.DetectPR(callCtx, proj, sess.Branch)
		cancel()
		if err != nil {
			e.log.Warn("PR detection failed", "session", sess.ID, "error", err)
		} else if found {
			sess.PRRef = ref
			prDiscovered = true
		}
	}

	if sess.PRRef.ID != "" {
		callCtx, cancel := e.pluginCtx(ctx)
		state, err := plugins.SCM.PRState(callCtx, proj, sess.PRRef)
		cancel()
		if err != nil {
			e.log.Warn("PR state probe failed", "session", sess.ID, "error", err)
		} else {
			sig.HasPR = true
			sig.PR = state

			// CI and review signals only influence open non-draft PRs;
			// skip the extra subprocess round-trips otherwise.
			if state.State == plugin.PRStateOpen && !state.IsDraft {
				callCtx, cancel = e.pluginCtx(ctx)
				ci, err := plugins.SCM.CISummary(callCtx, proj, sess.PRRef)
				cancel()
				if err != nil {
					e.log.Warn("CI probe failed", "session", sess.ID, "error", err)
				} else {
					sig.CI = ci
				}

				callCtx, cancel = e.pluginCtx(ctx)
				review, err := plugins.SCM.ReviewDecision(callCtx, proj, sess.PRRef)
				cancel()
				if err != nil {
					e.log.Warn("review probe failed", "session", sess.ID, "error", err)
				} else {
					sig.Review = review
				}
			}
		}
	}

	return sig, prDiscovered
}

func (e *Engine) pluginCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.Lifecycle.PluginTimeout)
}
