package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/manager"
	"github.com/drover-dev/drover/internal/session"
)

var (
	spawnProject      string
	spawnIssue        string
	spawnPrompt       string
	spawnBranch       string
	spawnAgentArgs    []string
	spawnOrchestrator bool
)

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Start a new agent session",
	Long: `Spawn creates a worker session in a fresh git worktree and starts its
agent. With --issue the initial instruction is generated from the tracker
issue; --prompt overrides it. With --orchestrator the project's single
orchestrator session is started (or returned, if already running).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := setup()
		if err != nil {
			return err
		}

		if spawnOrchestrator {
			sess, err := mgr.SpawnOrchestrator(cmd.Context(), spawnProject, spawnPrompt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", sess.ID, mgr.Plugins().Runtime.AttachInfo(sess.RuntimeHandle))
			return nil
		}

		var issueRef session.Ref
		if spawnIssue != "" {
			issueRef = session.ParseRef(spawnIssue)
			if issueRef.Source == "" {
				issueRef.Source = "github"
			}
		}
		sess, err := mgr.Spawn(cmd.Context(), manager.SpawnRequest{
			ProjectID: spawnProject,
			IssueRef:  issueRef,
			Prompt:    spawnPrompt,
			Branch:    spawnBranch,
			ExtraArgs: spawnAgentArgs,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s on %s\n%s\n",
			sess.ID, sess.Branch, mgr.Plugins().Runtime.AttachInfo(sess.RuntimeHandle))
		return nil
	},
}

func init() {
	spawnCmd.Flags().StringVar(&spawnProject, "project", "", "Project to spawn in (required)")
	spawnCmd.Flags().StringVar(&spawnIssue, "issue", "", "Tracker issue to work on, e.g. 42 or github:42")
	spawnCmd.Flags().StringVar(&spawnPrompt, "prompt", "", "Initial instruction for the agent")
	spawnCmd.Flags().StringVar(&spawnBranch, "branch", "", "Branch name (default derived from the session ID)")
	spawnCmd.Flags().StringSliceVar(&spawnAgentArgs, "agent-arg", nil, "Extra agent CLI argument (repeatable)")
	spawnCmd.Flags().BoolVar(&spawnOrchestrator, "orchestrator", false, "Spawn the project orchestrator instead of a worker")
	_ = spawnCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(spawnCmd)
}
