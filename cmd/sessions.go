package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sessionsProject string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List tracked sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := setup()
		if err != nil {
			return err
		}
		sessions, err := mgr.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tSTATUS\tACTIVITY\tBRANCH\tPR\tLAST ACTIVITY")
		for _, s := range sessions {
			if sessionsProject != "" && s.ProjectID != sessionsProject {
				continue
			}
			last := ""
			if !s.LastActivityAt.IsZero() {
				last = humanSince(s.LastActivityAt)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.ProjectID, s.Status, s.Activity, s.Branch, s.PRRef.String(), last)
		}
		return w.Flush()
	},
}

func humanSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsProject, "project", "", "Only show sessions for this project")
	rootCmd.AddCommand(sessionsCmd)
}
