// Package plugintest provides in-memory capability fakes for manager and
// lifecycle tests.
package plugintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// Runtime is an in-memory plugin.Runtime. Handles exist from Create until
// Destroy or an explicit MarkDead.
type Runtime struct {
	mu       sync.Mutex
	handles  map[string]bool // handle -> alive
	output   map[string]string
	sent     map[string][]string
	CreateErr  error
	SendErr    error
	DestroyErr error
}

func NewRuntime() *Runtime {
	return &Runtime{
		handles: make(map[string]bool),
		output:  make(map[string]string),
		sent:    make(map[string][]string),
	}
}

func (r *Runtime) Create(ctx context.Context, spec plugin.RuntimeSpec) (string, error) {
	if r.CreateErr != nil {
		return "", r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[spec.Name] = true
	return spec.Name, nil
}

func (r *Runtime) Destroy(ctx context.Context, handle string) error {
	if r.DestroyErr != nil {
		return r.DestroyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, handle)
	return nil
}

func (r *Runtime) SendMessage(ctx context.Context, handle, message string) error {
	r.mu.Lock()
	r.sent[handle] = append(r.sent[handle], message)
	r.mu.Unlock()
	return r.SendErr
}

func (r *Runtime) Output(ctx context.Context, handle string, lines int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output[handle], nil
}

func (r *Runtime) IsAlive(ctx context.Context, handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[handle], nil
}

func (r *Runtime) Metrics(ctx context.Context, handle string) (plugin.RuntimeMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return plugin.RuntimeMetrics{PaneDead: !r.handles[handle], PanePID: 1}, nil
}

func (r *Runtime) AttachInfo(handle string) string { return "fake attach " + handle }

// MarkDead makes a handle report dead without removing it.
func (r *Runtime) MarkDead(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[handle] = false
}

// SetOutput scripts the pane output for a handle.
func (r *Runtime) SetOutput(handle, out string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output[handle] = out
}

// Sent returns messages delivered to a handle.
func (r *Runtime) Sent(handle string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, len(r.sent[handle]))
	copy(msgs, r.sent[handle])
	return msgs
}

// Alive reports whether a handle exists and is alive.
func (r *Runtime) Alive(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[handle]
}

// Agent is a scriptable plugin.Agent.
type Agent struct {
	Activity    session.Activity
	ActivityErr error
	SetupErr    error
	setups      []plugin.LaunchSpec
	mu          sync.Mutex
}

func NewAgent() *Agent { return &Agent{Activity: session.ActivityIdle} }

func (a *Agent) LaunchCommand(spec plugin.LaunchSpec) []string {
	return []string{"fake-agent"}
}

func (a *Agent) Environment(spec plugin.LaunchSpec) map[string]string {
	return map[string]string{"FAKE_SESSION": spec.SessionID}
}

func (a *Agent) DetectActivity(output string) session.Activity { return a.Activity }

func (a *Agent) ActivityState(ctx context.Context, rt plugin.Runtime, handle string) (session.Activity, error) {
	if a.ActivityErr != nil {
		return session.ActivityIdle, a.ActivityErr
	}
	alive, _ := rt.IsAlive(ctx, handle)
	if !alive {
		return session.ActivityExited, nil
	}
	return a.Activity, nil
}

func (a *Agent) IsProcessRunning(ctx context.Context, rt plugin.Runtime, handle string) (bool, error) {
	return rt.IsAlive(ctx, handle)
}

func (a *Agent) PostLaunchSetup(ctx context.Context, rt plugin.Runtime, handle string, spec plugin.LaunchSpec) error {
	a.mu.Lock()
	a.setups = append(a.setups, spec)
	a.mu.Unlock()
	if a.SetupErr != nil {
		return a.SetupErr
	}
	if spec.Prompt != "" {
		return rt.SendMessage(ctx, handle, spec.Prompt)
	}
	return nil
}

// Setups returns every PostLaunchSetup invocation.
func (a *Agent) Setups() []plugin.LaunchSpec {
	a.mu.Lock()
	defer a.mu.Unlock()
	specs := make([]plugin.LaunchSpec, len(a.setups))
	copy(specs, a.setups)
	return specs
}

// Workspace is an in-memory plugin.Workspace.
type Workspace struct {
	mu        sync.Mutex
	created   map[string]string // path -> branch
	destroyed []string
	CreateErr error
}

func NewWorkspace() *Workspace {
	return &Workspace{created: make(map[string]string)}
}

func (w *Workspace) Create(ctx context.Context, proj config.Project, branch string) (string, error) {
	if w.CreateErr != nil {
		return "", w.CreateErr
	}
	path := fmt.Sprintf("/fake/worktrees/%s/%s", proj.ID, branch)
	w.mu.Lock()
	w.created[path] = branch
	w.mu.Unlock()
	return path, nil
}

func (w *Workspace) PostCreate(ctx context.Context, proj config.Project, path string) error {
	return nil
}

func (w *Workspace) Destroy(ctx context.Context, proj config.Project, path, branch string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.created, path)
	w.destroyed = append(w.destroyed, path)
	return nil
}

// Exists reports whether a workspace path is still live.
func (w *Workspace) Exists(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.created[path]
	return ok
}

// Destroyed returns every destroyed path.
func (w *Workspace) Destroyed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.destroyed))
	copy(out, w.destroyed)
	return out
}

// Tracker is a scriptable plugin.Tracker.
type Tracker struct {
	Issues map[string]plugin.Issue // keyed by ref ID
	Done   map[string]plugin.Answer
	Err    error
}

func NewTracker() *Tracker {
	return &Tracker{
		Issues: make(map[string]plugin.Issue),
		Done:   make(map[string]plugin.Answer),
	}
}

func (t *Tracker) Issue(ctx context.Context, proj config.Project, ref session.Ref) (plugin.Issue, error) {
	if t.Err != nil {
		return plugin.Issue{}, t.Err
	}
	issue, ok := t.Issues[ref.ID]
	if !ok {
		return plugin.Issue{}, fmt.Errorf("no issue %s", ref.ID)
	}
	return issue, nil
}

func (t *Tracker) GeneratePrompt(issue plugin.Issue) string {
	return "work on: " + issue.Title
}

func (t *Tracker) IsIssueDone(ctx context.Context, proj config.Project, ref session.Ref) (plugin.Answer, error) {
	return t.Done[ref.ID], t.Err
}

// SCM is a scriptable plugin.SCM keyed by branch and PR ID.
type SCM struct {
	mu        sync.Mutex
	PRsByHead map[string]session.Ref // branch -> ref
	States    map[string]plugin.PRState
	CI        map[string]plugin.CIStatus
	Reviews   map[string]plugin.ReviewDecision
	MergeErr  error
	Err       error
	merged    []string
}

func NewSCM() *SCM {
	return &SCM{
		PRsByHead: make(map[string]session.Ref),
		States:    make(map[string]plugin.PRState),
		CI:        make(map[string]plugin.CIStatus),
		Reviews:   make(map[string]plugin.ReviewDecision),
	}
}

func (s *SCM) DetectPR(ctx context.Context, proj config.Project, branch string) (session.Ref, bool, error) {
	if s.Err != nil {
		return session.Ref{}, false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.PRsByHead[branch]
	return ref, ok, nil
}

func (s *SCM) PRState(ctx context.Context, proj config.Project, ref session.Ref) (plugin.PRState, error) {
	if s.Err != nil {
		return plugin.PRState{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.States[ref.ID], nil
}

func (s *SCM) CISummary(ctx context.Context, proj config.Project, ref session.Ref) (plugin.CIStatus, error) {
	if s.Err != nil {
		return plugin.CIStatusNone, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ci, ok := s.CI[ref.ID]; ok {
		return ci, nil
	}
	return plugin.CIStatusNone, nil
}

func (s *SCM) ReviewDecision(ctx context.Context, proj config.Project, ref session.Ref) (plugin.ReviewDecision, error) {
	if s.Err != nil {
		return plugin.ReviewNone, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rd, ok := s.Reviews[ref.ID]; ok {
		return rd, nil
	}
	return plugin.ReviewNone, nil
}

func (s *SCM) Merge(ctx context.Context, proj config.Project, ref session.Ref) error {
	if s.MergeErr != nil {
		return s.MergeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merged = append(s.merged, ref.ID)
	st := s.States[ref.ID]
	st.State = plugin.PRStateMerged
	s.States[ref.ID] = st
	return nil
}

// Merged returns every merged PR ID.
func (s *SCM) Merged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.merged))
	copy(out, s.merged)
	return out
}

// Notifier records every event.
type Notifier struct {
	mu     sync.Mutex
	events []plugin.Event
	prios  []string
	Err    error
}

func NewNotifier() *Notifier { return &Notifier{} }

func (n *Notifier) Notify(ctx context.Context, event plugin.Event, priority string) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.prios = append(n.prios, priority)
	n.mu.Unlock()
	return n.Err
}

// Events returns every notified event.
func (n *Notifier) Events() []plugin.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]plugin.Event, len(n.events))
	copy(out, n.events)
	return out
}

// Priorities returns the priority of each notified event, in order.
func (n *Notifier) Priorities() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.prios))
	copy(out, n.prios)
	return out
}

// Registry bundles one of each fake into a plugin.Registry plus the typed
// handles tests assert against.
type Registry struct {
	Runtime   *Runtime
	Agent     *Agent
	Workspace *Workspace
	Tracker   *Tracker
	SCM       *SCM
	Notifier  *Notifier
}

// NewRegistry creates a full set of fakes.
func NewRegistry() *Registry {
	return &Registry{
		Runtime:   NewRuntime(),
		Agent:     NewAgent(),
		Workspace: NewWorkspace(),
		Tracker:   NewTracker(),
		SCM:       NewSCM(),
		Notifier:  NewNotifier(),
	}
}

// Plugins returns the fakes as a plugin.Registry.
func (r *Registry) Plugins() *plugin.Registry {
	return &plugin.Registry{
		Runtime:   r.Runtime,
		Agent:     r.Agent,
		Workspace: r.Workspace,
		Tracker:   r.Tracker,
		SCM:       r.SCM,
		Notifier:  r.Notifier,
	}
}
