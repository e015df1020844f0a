// Package manager owns session lifecycle actions: spawning, messaging,
// restoring, killing, and cleanup. It composes the capability plugins and
// the store; all policy about status transitions lives in lifecycle.
package manager

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
	"github.com/drover-dev/drover/internal/store"
)

// maxReserveAttempts bounds sequential worker-number probing before falling
// back to a random suffix.
const maxReserveAttempts = 5

// Manager coordinates sessions for all configured projects.
type Manager struct {
	store   *store.Store
	cfg     *config.Config
	plugins *plugin.Registry
	log     *slog.Logger
}

// New creates a manager over the given store, config, and resolved plugins.
func New(st *store.Store, cfg *config.Config, plugins *plugin.Registry) *Manager {
	return &Manager{
		store:   st,
		cfg:     cfg,
		plugins: plugins,
		log:     logger.ComponentLogger("manager"),
	}
}

// Store exposes the underlying store for the lifecycle engine.
func (m *Manager) Store() *store.Store { return m.store }

// Plugins exposes the resolved registry for the lifecycle engine.
func (m *Manager) Plugins() *plugin.Registry { return m.plugins }

func (m *Manager) project(id string) (config.Project, error) {
	proj := m.cfg.Project(id)
	if proj == nil {
		return config.Project{}, errors.E(errors.Op("manager.project"), errors.KindConfig,
			fmt.Sprintf("unknown project %q", id))
	}
	return *proj, nil
}

// orchestratorID is the fixed session ID for a project's orchestrator.
func orchestratorID(proj config.Project) string {
	return proj.Prefix() + "-orchestrator"
}

// allocateID reserves the next free {prefix}-w{N} ID. The counter recovers
// from whatever IDs already exist in the store; after bounded sequential
// conflicts a random suffix guarantees progress.
func (m *Manager) allocateID(proj config.Project) (string, error) {
	const op errors.Op = "manager.allocateID"

	prefix := proj.Prefix()
	next, err := m.nextWorkerNum(prefix)
	if err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		id := fmt.Sprintf("%s-w%d", prefix, next+attempt)
		ok, err := m.store.Reserve(id)
		if err != nil {
			return "", errors.E(op, errors.KindIO, err)
		}
		if ok {
			return id, nil
		}
	}

	id := fmt.Sprintf("%s-w-%s", prefix, uuid.NewString()[:8])
	ok, err := m.store.Reserve(id)
	if err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}
	if !ok {
		return "", errors.ReservationConflict(id)
	}
	m.log.Warn("worker counter exhausted, using random session ID", "project", proj.ID, "id", id)
	return id, nil
}

// nextWorkerNum scans existing session IDs and returns one past the highest
// worker number seen for the prefix.
func (m *Manager) nextWorkerNum(prefix string) (int, error) {
	ids, err := m.store.List()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, id := range ids {
		rest, ok := strings.CutPrefix(id, prefix+"-w")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// load reads and parses one session. Missing and stale records both come
// back as (nil, nil); stale records are logged by the store.
func (m *Manager) load(id string) (*session.Session, error) {
	rec, err := m.store.Read(id)
	if err != nil {
		if errors.Is(err, errors.KindStaleRecord) {
			return nil, nil
		}
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	sess, err := session.FromRecord(rec)
	if err != nil {
		m.log.Warn("unparseable session record", "session", id, "error", err)
		return nil, nil
	}
	return sess, nil
}
