package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// templateData is what reaction message templates may reference.
type templateData struct {
	SessionID string
	Project   string
	Branch    string
	PR        string
	Status    string
}

// react dispatches the configured reaction for a status transition. Called
// only when the status actually changed, which gives at-most-once semantics
// per distinct transition for free.
func (e *Engine) react(ctx context.Context, proj config.Project, sess *session.Session, next session.Status) {
	key, reaction, ok := e.lookupReaction(sess.Status, next)
	if !ok {
		return
	}

	switch reaction.Action {
	case config.ActionSendToAgent:
		e.sendToAgent(ctx, sess, next, key, reaction)
	case config.ActionNotify:
		e.notify(ctx, sess, next, reaction.Priority)
	case config.ActionAutoMerge:
		e.autoMerge(ctx, proj, sess, next)
	default:
		e.log.Warn("unknown reaction action", "session", sess.ID, "action", reaction.Action)
	}
}

// lookupReaction resolves the policy entry for a transition: the exact
// "<from>-><to>" key wins over the generic "-><to>" key.
func (e *Engine) lookupReaction(from, to session.Status) (string, config.Reaction, bool) {
	exact := fmt.Sprintf("%s->%s", from, to)
	if r, ok := e.cfg.Reactions[exact]; ok {
		return exact, r, true
	}
	generic := fmt.Sprintf("->%s", to)
	if r, ok := e.cfg.Reactions[generic]; ok {
		return generic, r, true
	}
	return "", config.Reaction{}, false
}

// sendToAgent forwards a templated instruction to the session. Each
// automatic send increments the (session, event) counter; once the policy's
// retry or escalate-after budget is spent, automation stops and a human is
// notified instead.
func (e *Engine) sendToAgent(ctx context.Context, sess *session.Session, next session.Status, key string, reaction config.Reaction) {
	counterKey := sess.ID + "|" + key
	limit := sendLimit(reaction)

	e.mu.Lock()
	count := e.counters[counterKey]
	escalate := limit > 0 && count >= limit
	if !escalate {
		e.counters[counterKey] = count + 1
	}
	e.mu.Unlock()

	if escalate {
		e.log.Warn("escalating after repeated automatic sends",
			"session", sess.ID, "event", key, "sends", count)
		e.notify(ctx, sess, next, "high")
		return
	}

	message, err := renderMessage(reaction.Message, templateData{
		SessionID: sess.ID,
		Project:   sess.ProjectID,
		Branch:    sess.Branch,
		PR:        prLabel(sess),
		Status:    string(next),
	})
	if err != nil {
		e.log.Error("bad reaction template", "session", sess.ID, "event", key, "error", err)
		return
	}

	err = e.mgr.Send(ctx, sess.ID, message)
	switch {
	case err == nil:
		e.log.Info("instruction sent", "session", sess.ID, "event", key, "attempt", count+1)
	case errors.Is(err, errors.KindDeliveryAmbiguous):
		e.log.Warn("instruction delivery unconfirmed", "session", sess.ID, "event", key)
	default:
		e.log.Error("instruction send failed", "session", sess.ID, "event", key, "error", err)
	}
}

// notify posts a human-facing event. Failures are logged, never fatal.
func (e *Engine) notify(ctx context.Context, sess *session.Session, next session.Status, priority string) {
	event := plugin.Event{
		SessionID: sess.ID,
		Title:     fmt.Sprintf("%s: %s", sess.ID, statusHeadline(next)),
		Message:   notifyMessage(sess, next),
	}
	if err := e.mgr.Plugins().Notifier.Notify(ctx, event, priority); err != nil {
		e.log.Warn("notification failed", "session", sess.ID, "error", err)
	}
}

// autoMerge merges the session's PR. Guarded on the new status so a policy
// misconfiguration can never merge a PR that is not mergeable.
func (e *Engine) autoMerge(ctx context.Context, proj config.Project, sess *session.Session, next session.Status) {
	if next != session.StatusMergeable {
		e.log.Warn("auto-merge configured for non-mergeable transition, skipping",
			"session", sess.ID, "status", next)
		return
	}
	if sess.PRRef.ID == "" {
		return
	}
	if err := e.mgr.Plugins().SCM.Merge(ctx, proj, sess.PRRef); err != nil {
		e.log.Error("auto-merge failed", "session", sess.ID, "pr", sess.PRRef.ID, "error", err)
		e.notify(ctx, sess, next, "high")
		return
	}
	e.log.Info("auto-merged", "session", sess.ID, "pr", sess.PRRef.ID)
}

// sendLimit is the automatic-send budget for a policy entry: the smaller of
// retries and escalate-after when both are set, whichever is set otherwise.
// Zero means unlimited.
func sendLimit(r config.Reaction) int {
	limit := r.EscalateAfter
	if r.Retries > 0 && (limit <= 0 || r.Retries < limit) {
		limit = r.Retries
	}
	return limit
}

func renderMessage(tmpl string, data templateData) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("empty message template")
	}
	t, err := template.New("reaction").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func prLabel(sess *session.Session) string {
	if sess.PRRef.URL != "" {
		return sess.PRRef.URL
	}
	if sess.PRRef.ID != "" {
		return "#" + sess.PRRef.ID
	}
	return ""
}

func statusHeadline(s session.Status) string {
	switch s {
	case session.StatusCIFailed:
		return "CI is failing"
	case session.StatusChangesRequested:
		return "changes requested"
	case session.StatusNeedsInput:
		return "waiting for input"
	case session.StatusStuck:
		return "stuck"
	case session.StatusMergeable:
		return "ready to merge"
	case session.StatusMerged:
		return "merged"
	case session.StatusDone:
		return "finished"
	default:
		return string(s)
	}
}

func notifyMessage(sess *session.Session, next session.Status) string {
	parts := []string{string(next)}
	if sess.Branch != "" {
		parts = append(parts, "branch "+sess.Branch)
	}
	if pr := prLabel(sess); pr != "" {
		parts = append(parts, "PR "+pr)
	}
	return strings.Join(parts, ", ")
}
