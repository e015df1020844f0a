package github

import (
	"context"
	"strconv"
	"strings"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// DetectPR finds the pull request whose head is the given branch.
func (c *Client) DetectPR(ctx context.Context, proj config.Project, branch string) (session.Ref, bool, error) {
	const op errors.Op = "github.DetectPR"

	var resp []struct {
		Number int    `json:"number"`
		URL    string `json:"url"`
	}
	err := c.ghJSON(ctx, proj, &resp, "pr", "list",
		"--head", branch, "--state", "all", "--limit", "1", "--json", "number,url")
	if err != nil {
		return session.Ref{}, false, errors.E(op, errors.KindPlugin, err)
	}
	if len(resp) == 0 {
		return session.Ref{}, false, nil
	}
	return session.Ref{
		Source: "github",
		ID:     strconv.Itoa(resp[0].Number),
		URL:    resp[0].URL,
	}, true, nil
}

// PRState returns the coarse state plus the flags the lifecycle engine
// branches on.
func (c *Client) PRState(ctx context.Context, proj config.Project, ref session.Ref) (plugin.PRState, error) {
	const op errors.Op = "github.PRState"

	var resp struct {
		State     string `json:"state"`
		IsDraft   bool   `json:"isDraft"`
		Mergeable string `json:"mergeable"`
		URL       string `json:"url"`
	}
	err := c.ghJSON(ctx, proj, &resp, "pr", "view", ref.ID, "--json", "state,isDraft,mergeable,url")
	if err != nil {
		return plugin.PRState{}, errors.E(op, errors.KindPlugin, err)
	}

	state := plugin.PRStateOpen
	switch strings.ToUpper(resp.State) {
	case "MERGED":
		state = plugin.PRStateMerged
	case "CLOSED":
		state = plugin.PRStateClosed
	}

	st := plugin.PRState{
		State:        state,
		IsDraft:      resp.IsDraft,
		HasConflicts: strings.EqualFold(resp.Mergeable, "CONFLICTING"),
		URL:          resp.URL,
	}

	if state == plugin.PRStateOpen {
		threads, err := c.unresolvedThreads(ctx, proj, ref)
		if err != nil {
			// Thread counts gate review handoff, not safety. Degrade to
			// zero instead of failing the whole state read.
			c.log.Warn("review thread probe failed", "pr", ref.ID, "error", err)
		}
		st.UnresolvedThreads = threads
	}
	return st, nil
}

const reviewThreadsQuery = `query($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      reviewThreads(first: 100) { nodes { isResolved } }
    }
  }
}`

func (c *Client) unresolvedThreads(ctx context.Context, proj config.Project, ref session.Ref) (int, error) {
	info, err := c.repo(ctx, proj)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Data struct {
			Repository struct {
				PullRequest struct {
					ReviewThreads struct {
						Nodes []struct {
							IsResolved bool `json:"isResolved"`
						} `json:"nodes"`
					} `json:"reviewThreads"`
				} `json:"pullRequest"`
			} `json:"repository"`
		} `json:"data"`
	}
	err = c.ghJSON(ctx, proj, &resp, "api", "graphql",
		"-f", "query="+reviewThreadsQuery,
		"-f", "owner="+info.Owner,
		"-f", "name="+info.Name,
		"-F", "number="+ref.ID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, node := range resp.Data.Repository.PullRequest.ReviewThreads.Nodes {
		if !node.IsResolved {
			count++
		}
	}
	return count, nil
}

// CISummary collapses the PR's check rollup into one status.
func (c *Client) CISummary(ctx context.Context, proj config.Project, ref session.Ref) (plugin.CIStatus, error) {
	const op errors.Op = "github.CISummary"

	var resp struct {
		StatusCheckRollup []struct {
			Status     string `json:"status"`
			Conclusion string `json:"conclusion"`
			State      string `json:"state"` // StatusContext entries use state instead
		} `json:"statusCheckRollup"`
	}
	err := c.ghJSON(ctx, proj, &resp, "pr", "view", ref.ID, "--json", "statusCheckRollup")
	if err != nil {
		return plugin.CIStatusNone, errors.E(op, errors.KindPlugin, err)
	}
	if len(resp.StatusCheckRollup) == 0 {
		return plugin.CIStatusNone, nil
	}

	pending := false
	for _, check := range resp.StatusCheckRollup {
		switch strings.ToUpper(check.State) {
		case "FAILURE", "ERROR":
			return plugin.CIStatusFailing, nil
		case "PENDING":
			pending = true
		}
		switch strings.ToUpper(check.Conclusion) {
		case "FAILURE", "TIMED_OUT", "CANCELLED", "ACTION_REQUIRED":
			return plugin.CIStatusFailing, nil
		}
		switch strings.ToUpper(check.Status) {
		case "QUEUED", "IN_PROGRESS", "PENDING", "WAITING":
			pending = true
		}
	}
	if pending {
		return plugin.CIStatusPending, nil
	}
	return plugin.CIStatusPassing, nil
}

// ReviewDecision returns the PR's aggregate review decision.
func (c *Client) ReviewDecision(ctx context.Context, proj config.Project, ref session.Ref) (plugin.ReviewDecision, error) {
	const op errors.Op = "github.ReviewDecision"

	var resp struct {
		ReviewDecision string `json:"reviewDecision"`
	}
	err := c.ghJSON(ctx, proj, &resp, "pr", "view", ref.ID, "--json", "reviewDecision")
	if err != nil {
		return plugin.ReviewNone, errors.E(op, errors.KindPlugin, err)
	}

	switch strings.ToUpper(resp.ReviewDecision) {
	case "APPROVED":
		return plugin.ReviewApproved, nil
	case "CHANGES_REQUESTED":
		return plugin.ReviewChangesRequested, nil
	case "REVIEW_REQUIRED":
		return plugin.ReviewPending, nil
	default:
		return plugin.ReviewNone, nil
	}
}

// Merge squash-merges the PR and deletes its remote branch.
func (c *Client) Merge(ctx context.Context, proj config.Project, ref session.Ref) error {
	const op errors.Op = "github.Merge"

	out, err := c.executor.CombinedOutput(ctx, proj.Path, "gh", "pr", "merge", ref.ID,
		"--squash", "--delete-branch")
	if err != nil {
		return errors.E(op, errors.KindPlugin, strings.TrimSpace(string(out)), err)
	}
	c.log.Info("pull request merged", "project", proj.ID, "pr", ref.ID)
	return nil
}
