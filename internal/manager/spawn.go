package manager

import (
	"context"
	"time"

	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// SpawnRequest describes a worker session to create.
type SpawnRequest struct {
	ProjectID string
	IssueRef  session.Ref // optional; prompt is generated from the issue
	Prompt    string      // explicit prompt; wins over the issue prompt
	Branch    string      // optional; generated from the session ID otherwise
	ExtraArgs []string    // extra agent CLI arguments
}

// Spawn creates a worker session: reserve an ID, build an isolated
// workspace, start the agent runtime, persist the record, then deliver the
// initial prompt. Failures before the record is written roll back what was
// already created.
func (m *Manager) Spawn(ctx context.Context, req SpawnRequest) (*session.Session, error) {
	const op errors.Op = "manager.Spawn"

	proj, err := m.project(req.ProjectID)
	if err != nil {
		return nil, err
	}

	if req.IssueRef.ID != "" {
		if dup, err := m.findIssueSession(proj.ID, req.IssueRef); err != nil {
			return nil, errors.E(op, errors.KindIO, err)
		} else if dup != "" {
			return nil, errors.E(op, errors.KindConflict,
				"issue "+req.IssueRef.String()+" already has live session "+dup)
		}
	}

	id, err := m.allocateID(proj)
	if err != nil {
		return nil, err
	}
	release := func() {
		if err := m.store.Delete(id, false); err != nil {
			m.log.Warn("failed to release reservation", "session", id, "error", err)
		}
	}

	branch := req.Branch
	if branch == "" {
		branch = proj.BranchPrefix + id
	}
	if err := session.ValidateBranchName(branch); err != nil {
		release()
		return nil, errors.E(op, errors.KindInvalid, err)
	}

	path, err := m.plugins.Workspace.Create(ctx, proj, branch)
	if err != nil {
		release()
		return nil, errors.PluginFailed(op, "workspace", id, err)
	}
	if err := m.plugins.Workspace.PostCreate(ctx, proj, path); err != nil {
		m.log.Warn("workspace post-create failed", "session", id, "error", err)
	}

	rollbackWorkspace := func() {
		if err := m.plugins.Workspace.Destroy(ctx, proj, path, branch); err != nil {
			m.log.Warn("failed to roll back workspace", "session", id, "error", err)
		}
		release()
	}

	prompt := req.Prompt
	issueRef := req.IssueRef
	if prompt == "" && issueRef.ID != "" {
		issue, err := m.plugins.Tracker.Issue(ctx, proj, issueRef)
		if err != nil {
			rollbackWorkspace()
			return nil, errors.PluginFailed(op, "tracker", id, err)
		}
		issueRef = issue.Ref
		prompt = m.plugins.Tracker.GeneratePrompt(issue)
	}

	launch := plugin.LaunchSpec{SessionID: id, WorkDir: path, Prompt: prompt, ExtraArgs: req.ExtraArgs}
	handle, err := m.plugins.Runtime.Create(ctx, plugin.RuntimeSpec{
		Name:    id,
		WorkDir: path,
		Command: m.plugins.Agent.LaunchCommand(launch),
		Env:     m.plugins.Agent.Environment(launch),
	})
	if err != nil {
		rollbackWorkspace()
		return nil, errors.PluginFailed(op, "runtime", id, err)
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:             id,
		ProjectID:      proj.ID,
		Role:           session.RoleWorker,
		Status:         session.StatusSpawning,
		Branch:         branch,
		WorkspacePath:  path,
		IssueRef:       issueRef,
		RuntimeHandle:  handle,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.Write(id, sess.ToRecord()); err != nil {
		if derr := m.plugins.Runtime.Destroy(ctx, handle); derr != nil {
			m.log.Warn("failed to roll back runtime", "session", id, "error", derr)
		}
		rollbackWorkspace()
		return nil, errors.E(op, errors.KindIO, err)
	}

	m.postLaunch(ctx, sess, launch)
	m.log.Info("session spawned", "session", id, "project", proj.ID, "branch", branch)
	return sess, nil
}

// SpawnOrchestrator starts or returns the project's orchestrator session.
// The orchestrator has a fixed ID and runs in the project's main checkout.
// If one is already running, a call without a prompt returns it unchanged
// and a call with a prompt is a conflict.
func (m *Manager) SpawnOrchestrator(ctx context.Context, projectID, prompt string) (*session.Session, error) {
	const op errors.Op = "manager.SpawnOrchestrator"

	proj, err := m.project(projectID)
	if err != nil {
		return nil, err
	}
	id := orchestratorID(proj)

	unlock := m.store.Lock(id)
	defer unlock()

	sess, err := m.load(id)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	if sess != nil && sess.RuntimeHandle != "" {
		alive, err := m.plugins.Runtime.IsAlive(ctx, sess.RuntimeHandle)
		if err != nil {
			return nil, errors.PluginFailed(op, "runtime", id, err)
		}
		if alive {
			if prompt == "" {
				return sess, nil
			}
			return nil, errors.OrchestratorRunning(id)
		}
		// Stale handle from a previous run; replace the runtime below.
		if err := m.plugins.Runtime.Destroy(ctx, sess.RuntimeHandle); err != nil {
			m.log.Warn("failed to destroy stale orchestrator handle", "session", id, "error", err)
		}
	}

	if sess == nil {
		if ok, err := m.store.Reserve(id); err != nil {
			return nil, errors.E(op, errors.KindIO, err)
		} else if !ok {
			// A record exists but did not parse; recreate it in place.
			m.log.Warn("rebuilding orchestrator over unreadable record", "session", id)
		}
		now := time.Now().UTC()
		sess = &session.Session{
			ID:        id,
			ProjectID: proj.ID,
			Role:      session.RoleOrchestrator,
			CreatedAt: now,
		}
	}

	launch := plugin.LaunchSpec{SessionID: id, WorkDir: proj.Path, Prompt: prompt}
	handle, err := m.plugins.Runtime.Create(ctx, plugin.RuntimeSpec{
		Name:    id,
		WorkDir: proj.Path,
		Command: m.plugins.Agent.LaunchCommand(launch),
		Env:     m.plugins.Agent.Environment(launch),
	})
	if err != nil {
		return nil, errors.PluginFailed(op, "runtime", id, err)
	}

	sess.Status = session.StatusSpawning
	sess.Activity = ""
	sess.WorkspacePath = proj.Path
	sess.RuntimeHandle = handle
	sess.LastActivityAt = time.Now().UTC()
	if err := m.store.Write(id, sess.ToRecord()); err != nil {
		if derr := m.plugins.Runtime.Destroy(ctx, handle); derr != nil {
			m.log.Warn("failed to roll back runtime", "session", id, "error", derr)
		}
		return nil, errors.E(op, errors.KindIO, err)
	}

	m.postLaunch(ctx, sess, launch)
	m.log.Info("orchestrator running", "session", id, "project", proj.ID)
	return sess, nil
}

// postLaunch runs the agent's one-time setup. Delivery ambiguity and setup
// failures leave the session in place; the lifecycle engine picks up stuck
// sessions on its next pass.
func (m *Manager) postLaunch(ctx context.Context, sess *session.Session, launch plugin.LaunchSpec) {
	err := m.plugins.Agent.PostLaunchSetup(ctx, m.plugins.Runtime, sess.RuntimeHandle, launch)
	switch {
	case err == nil:
	case errors.Is(err, errors.KindDeliveryAmbiguous):
		m.log.Warn("initial prompt delivery unconfirmed", "session", sess.ID)
	default:
		m.log.Error("post-launch setup failed", "session", sess.ID, "error", err)
	}
}

// findIssueSession returns the ID of a live session already working the
// given issue for the project, or "".
func (m *Manager) findIssueSession(projectID string, ref session.Ref) (string, error) {
	ids, err := m.store.List()
	if err != nil {
		return "", err
	}
	want := ref.String()
	for _, id := range ids {
		sess, err := m.load(id)
		if err != nil || sess == nil {
			continue
		}
		if sess.ProjectID == projectID && !sess.Status.Terminal() && sess.IssueRef.String() == want {
			return id, nil
		}
	}
	return "", nil
}
