// Package github implements the Tracker and SCM capabilities on top of the
// gh CLI. All commands run inside the project checkout so gh resolves the
// repository from git remotes.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/logger"
)

// Client shells out to gh for issue and pull request state.
type Client struct {
	executor execx.CommandExecutor
	log      *slog.Logger

	mu    sync.Mutex
	repos map[string]repoInfo // keyed by project ID
}

type repoInfo struct {
	Owner string
	Name  string
}

// New creates a gh-backed client. The same client serves both the Tracker
// and SCM capability slots.
func New(executor execx.CommandExecutor) *Client {
	return &Client{
		executor: executor,
		log:      logger.ComponentLogger("github"),
		repos:    make(map[string]repoInfo),
	}
}

// ghJSON runs a gh command in the project checkout and decodes its stdout.
func (c *Client) ghJSON(ctx context.Context, proj config.Project, out interface{}, args ...string) error {
	stdout, stderr, err := c.executor.Run(ctx, proj.Path, "gh", args...)
	if err != nil {
		return fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(stderr)), err)
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return fmt.Errorf("gh %s: decoding output: %w", strings.Join(args, " "), err)
	}
	return nil
}

// repo resolves and caches the owner/name pair for a project, needed for
// GraphQL queries that cannot infer the repository from the working
// directory.
func (c *Client) repo(ctx context.Context, proj config.Project) (repoInfo, error) {
	c.mu.Lock()
	if info, ok := c.repos[proj.ID]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	var resp struct {
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		Name string `json:"name"`
	}
	if err := c.ghJSON(ctx, proj, &resp, "repo", "view", "--json", "owner,name"); err != nil {
		return repoInfo{}, errors.E(errors.Op("github.repo"), errors.KindPlugin, err)
	}
	info := repoInfo{Owner: resp.Owner.Login, Name: resp.Name}

	c.mu.Lock()
	c.repos[proj.ID] = info
	c.mu.Unlock()
	return info, nil
}
