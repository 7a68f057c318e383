// Climanode-cfg is the operator utility for climate nodes.
//
// It finds nodes on the local network, shows and drives their outputs over
// the REST API, opens a live console on the panel WebSocket and writes node
// configuration files.
//
// Usage:
//
//	climanode-cfg [command] [flags]
//
// See 'climanode-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "climanode-cfg",
	Short: "Climate node operator utility",
	Long: `A utility for finding, inspecting and driving climate nodes.

Nodes advertise themselves over mDNS as _climanode._tcp. Every command that
talks to a node accepts --node with an address or URL; without it the first
node found on the network is used.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("climanode-cfg %s (commit: %s)\n", version.Version, version.Commit)
	},
}
