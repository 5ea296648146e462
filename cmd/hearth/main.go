// Hearth Core - Home Automation Runtime
//
// This is the main entry point for the Hearth Core application.
// Hearth is a file-first home automation runtime designed for:
//   - Declarative YAML models (items, things, rules) reconciled live
//   - Offline-first operation on a single node
//   - Open transports (MQTT) and open storage (SQLite, InfluxDB)
//   - Zero vendor lock-in
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/hearth.yaml"

// configFlag is the --config persistent flag value.
var configFlag string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the hearth command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hearth",
		Short: "Hearth Core home automation runtime",
		Long: `Hearth Core reconciles YAML-defined items, things and rules into a
live runtime: an event bus, a rule engine, MQTT bridging, state
persistence and a WebSocket event stream.`,
		// SilenceUsage prevents the usage dump on runtime errors; the
		// error message alone is what an operator needs.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		fmt.Sprintf("path to the config file (default %q, or HEARTH_CONFIG)", defaultConfigPath))

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// getConfigPath returns the configuration file path: the --config flag,
// then the HEARTH_CONFIG environment variable, then the default.
func getConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newVersionCmd reports build information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hearth %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
