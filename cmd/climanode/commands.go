package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/app"
	"github.com/muurk/climanode/internal/config"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/ui"
	"github.com/muurk/climanode/internal/version"
)

var (
	configPath string

	host     string
	port     int
	logLevel string
	logFile  string

	force bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the node",
	Long: `Start the node and run until interrupted.

Configuration is layered: built-in defaults, the YAML file, a .env file in
the working directory, CLIMANODE_* environment variables and finally the
flags below.

Without gpio.chip set, outputs are simulated. Without sensor.source set to
"serial", readings come from a random walk.`,
	Example: `  # Run with the default configuration file
  climanode run

  # Serve the panel on a different port with debug logging
  climanode run --port 8080 --log-level debug

  # Use an explicit file and log to a rotating file as well
  climanode run --config ./node.yaml --log-file /var/log/climanode.log`,
	RunE: runNode,
}

func init() {
	runCmd.Flags().StringVar(&host, "host", "", "Panel listen address (overrides ui.host)")
	runCmd.Flags().IntVar(&port, "port", 0, "Panel port (overrides ui.port)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotating file")
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		cfg.UI.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.UI.Port = port
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.InitializeWithOptions(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("Starting climanode",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("node", cfg.Node.Name))

	node, err := app.New(cfg, app.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = node.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info("Node stopped")
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the built-in defaults to the configuration file so they can be
edited. An existing file is only replaced after confirmation or with --force.`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file without asking")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if _, err := os.Stat(path); err == nil && !force {
		if !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("%s exists. Overwrite?", path)) {
			p.PrintWarning("Configuration unchanged", []ui.Field{{Key: "File", Value: path}})
			return nil
		}
	}

	if err := config.Default().Save(path); err != nil {
		p.PrintFailure("Could not write configuration", err, "Check that the directory is writable.")
		return err
	}
	p.PrintSuccess("Configuration written", []ui.Field{{Key: "File", Value: path}})
	return nil
}
