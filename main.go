package main

import (
	"fmt"
	"os"

	"github.com/drover-dev/drover/cmd"
	"github.com/drover-dev/drover/internal/logger"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Close()

	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "drover: %v\n", err)
		os.Exit(1)
	}
}
