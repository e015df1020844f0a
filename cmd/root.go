// Package cmd is the thin CLI surface over the session engine. Commands
// wire configuration, the store, and the plugin registry together and call
// into manager/lifecycle; no policy lives here.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/manager"
	"github.com/drover-dev/drover/internal/plugin/resolve"
	"github.com/drover-dev/drover/internal/store"
)

var (
	debugMode  bool
	configPath string

	version, commit, date string
)

// SetVersionInfo sets version information from ldflags.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Herds a fleet of coding-agent sessions",
	Long: `Drover spawns coding-agent sessions in isolated git worktrees, watches
their pull requests and CI, and nudges or escalates when they stall.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.drover/config.yaml)")
}

func initLogging() {
	logger.SetDebug(debugMode)
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate())
	return rootCmd.Execute()
}

func versionTemplate() string {
	if commit != "" && commit != "none" {
		return fmt.Sprintf("drover %s\n  commit: %s\n  built:  %s\n", version, commit, date)
	}
	return fmt.Sprintf("drover %s\n", version)
}

// setup builds the manager every subcommand operates through.
func setup() (*manager.Manager, *config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	root := cfg.StateDir
	if root == "" {
		root, err = store.DefaultRoot()
		if err != nil {
			return nil, nil, err
		}
	}

	registry, err := resolve.New(cfg.Plugins, execx.NewRealExecutor())
	if err != nil {
		return nil, nil, err
	}
	return manager.New(store.New(root), cfg, registry), cfg, nil
}
