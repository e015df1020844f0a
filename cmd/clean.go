package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/plugin/worktree"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove finished sessions and orphaned worktrees",
	Long: `Clean sweeps all sessions and removes the ones whose completion is
unambiguous: terminal status, merged or closed PR, or a resolved issue.
Sessions with an open PR or uncertain state are left alone. Worktree
directories no session claims are pruned afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cfg, err := setup()
		if err != nil {
			return err
		}

		cleaned, err := mgr.CleanupAll(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range cleaned {
			fmt.Fprintf(cmd.OutOrStdout(), "cleaned %s\n", id)
		}

		// Worktree dirs left behind by crashed spawns or manual deletes.
		ws, ok := mgr.Plugins().Workspace.(*worktree.Workspace)
		if !ok {
			return nil
		}
		sessions, err := mgr.List(cmd.Context())
		if err != nil {
			return err
		}
		live := make(map[string]bool, len(sessions))
		for _, s := range sessions {
			live[s.WorkspacePath] = true
		}
		pruned, err := ws.PruneOrphans(cmd.Context(), cfg.Projects, live)
		if err != nil {
			return err
		}
		for _, path := range pruned {
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", path)
		}
		if len(cleaned) == 0 && len(pruned) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to clean")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
