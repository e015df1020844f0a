package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/lifecycle"
)

var (
	runOnce     bool
	runInterval time.Duration
	runProject  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation loop",
	Long: `Run starts the lifecycle reconciler: every tick it gathers live signals
for each non-terminal session, recomputes its status, and dispatches the
configured reactions. Only one reconciler may run per state directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cfg, err := setup()
		if err != nil {
			return err
		}
		if runInterval > 0 {
			cfg.Lifecycle.TickInterval = runInterval
		}

		engine := lifecycle.New(mgr, cfg)
		if runProject != "" {
			if cfg.Project(runProject) == nil {
				return fmt.Errorf("unknown project %q", runProject)
			}
			engine.FilterProject(runProject)
		}
		if runOnce {
			return engine.Tick(cmd.Context())
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return engine.Run(ctx)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single reconciliation pass and exit")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "Override the tick interval")
	runCmd.Flags().StringVar(&runProject, "project", "", "Only reconcile this project's sessions")
	rootCmd.AddCommand(runCmd)
}
