// Climanode runs the climate node: it reads the temperature and humidity
// sensor, drives the status LED and RGB pixel, and exposes the outputs to a
// ThingsBoard-style cloud over MQTT and to a local web panel.
//
// Usage:
//
//	climanode run [flags]
//
// See 'climanode --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/climanode/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "climanode",
	Short: "Climate node controller",
	Long: `Controller for a small climate node.

Reads temperature and humidity, signals out-of-band readings on the status
LED and RGB pixel, and accepts manual overrides from the cloud RPC channel,
the local web panel and the REST API.

To inspect or drive a running node from another machine, use 'climanode-cfg'.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default: user config dir)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("climanode %s (commit: %s)\n", version.Version, version.Commit)
	},
}
