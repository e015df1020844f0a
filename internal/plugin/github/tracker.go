package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// Issue fetches a tracker issue by number.
func (c *Client) Issue(ctx context.Context, proj config.Project, ref session.Ref) (plugin.Issue, error) {
	const op errors.Op = "github.Issue"

	var resp struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		URL    string `json:"url"`
	}
	if err := c.ghJSON(ctx, proj, &resp, "issue", "view", ref.ID, "--json", "number,title,body,url"); err != nil {
		return plugin.Issue{}, errors.E(op, errors.KindPlugin, err)
	}

	return plugin.Issue{
		Ref:   session.Ref{Source: "github", ID: ref.ID, URL: resp.URL},
		Title: resp.Title,
		Body:  resp.Body,
	}, nil
}

// GeneratePrompt renders an issue into the instruction handed to a freshly
// spawned agent.
func (c *Client) GeneratePrompt(issue plugin.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work on GitHub issue #%s: %s\n\n", issue.Ref.ID, issue.Title)
	if issue.Body != "" {
		b.WriteString(issue.Body)
		b.WriteString("\n\n")
	}
	b.WriteString("When the work is complete, open a pull request that closes the issue.")
	return b.String()
}

// IsIssueDone reports whether the issue was closed as completed. Errors and
// unexpected states degrade to AnswerUnknown so cleanup stays conservative.
func (c *Client) IsIssueDone(ctx context.Context, proj config.Project, ref session.Ref) (plugin.Answer, error) {
	var resp struct {
		State       string `json:"state"`
		StateReason string `json:"stateReason"`
	}
	if err := c.ghJSON(ctx, proj, &resp, "issue", "view", ref.ID, "--json", "state,stateReason"); err != nil {
		c.log.Warn("issue state probe failed", "issue", ref.ID, "error", err)
		return plugin.AnswerUnknown, nil
	}

	switch strings.ToUpper(resp.State) {
	case "OPEN":
		return plugin.AnswerNo, nil
	case "CLOSED":
		if strings.EqualFold(resp.StateReason, "not_planned") {
			// Closed without being done. Dropping the session would lose
			// uncommitted work, so answer no rather than yes.
			return plugin.AnswerNo, nil
		}
		return plugin.AnswerYes, nil
	default:
		return plugin.AnswerUnknown, nil
	}
}
