package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	logsFlags := &LogsFlags{}
	healthFlags := &HealthFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createLogsCommand(globalFlags, logsFlags),
		createHealthCommand(globalFlags, healthFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:     "attache",
		Short:   "Backend process supervisor with health-gated startup",
		Version: version,
		Long: `Attache supervises a single backend helper process: it spawns it with
retry backoff, gates readiness on a health endpoint, and exposes a loopback
control API for restarts, status, logs and metrics.

Examples:
  attache run --config attache.toml
  attache run --dev                 # attach to an externally started backend
  attache logs -n 50
  attache health --timeout 5s`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	return root
}
