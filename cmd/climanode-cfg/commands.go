package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/climanode/internal/config"
	"github.com/muurk/climanode/internal/console"
	"github.com/muurk/climanode/internal/discovery"
	"github.com/muurk/climanode/internal/gateway"
	"github.com/muurk/climanode/internal/nodeclient"
	"github.com/muurk/climanode/internal/ui"
)

var (
	nodeAddr    string
	scanTimeout int
	timeout     int

	target    string
	outState  string
	cfgOutput string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&nodeAddr, "node", "", "Node address or URL (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 10, "Request timeout in seconds")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(provisionCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find nodes on the local network",
	Long: `Browse mDNS for _climanode._tcp services and list every node that
answers before the timeout.`,
	Example: `  # Browse for 5 seconds (default)
  climanode-cfg discover

  # Longer browse on a busy network
  climanode-cfg discover --scan-timeout 15`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 5, "Browse timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Node discovery", "discover", []ui.Field{
		{Key: "Service", Value: discovery.ServiceType},
		{Key: "Timeout", Value: fmt.Sprintf("%ds", scanTimeout)},
	})

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	nodes, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintFailure("Discovery failed", err, "Check that multicast traffic is allowed on this network.")
		return err
	}

	if len(nodes) == 0 {
		p.PrintWarning("No nodes found", []ui.Field{
			{Key: "Hint", Value: "Check that discovery.enabled is true on the node"},
			{Key: "Hint", Value: "Use --node with an IP address if mDNS is blocked"},
		})
		return nil
	}

	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			n.Instance,
			n.Hostname,
			n.BaseURL(),
			n.Version(),
			n.GetMetadata("led") + "/" + n.GetMetadata("neo"),
		})
	}
	p.PrintTable([]string{"Instance", "Host", "Address", "Version", "Pins"}, rows)
	p.Println(fmt.Sprintf("Found %d node(s). Use 'climanode-cfg status --node <address>' for details.", len(nodes)))
	return nil
}

// newClient resolves --node, falling back to the first discovered node.
func newClient(ctx context.Context) (*nodeclient.Client, error) {
	addr := nodeAddr
	if addr == "" {
		scanner := discovery.NewScanner()
		nodes, err := scanner.Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		if len(nodes) == 0 {
			return nil, fmt.Errorf("no nodes found on the network, use --node")
		}
		addr = nodes[0].BaseURL()
	}

	client := nodeclient.New(addr)
	client.SetTimeout(time.Duration(timeout) * time.Second)
	return client, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a node's sensor reading and outputs",
	Example: `  climanode-cfg status --node 192.168.1.40
  climanode-cfg status --node http://node.local:8080`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	state, err := client.GetState(cmd.Context())
	if err != nil {
		p.PrintFailure("Could not read node state", err, nodeclient.TroubleshootingHint(err))
		return err
	}

	cloud := state.Cloud.Server + ":" + state.Cloud.Port
	if !state.Cloud.HasToken {
		cloud += " (no token)"
	}
	p.PrintSuccess("Node "+client.BaseURL, []ui.Field{
		{Key: "Version", Value: state.Version},
		{Key: "Temperature", Value: fmt.Sprintf("%.1f °C", state.Sensor.Temperature)},
		{Key: "Humidity", Value: fmt.Sprintf("%.1f %%", state.Sensor.Humidity)},
		{Key: "Display", Value: ui.DisplayStateStyle(state.Sensor.State).Render(state.Sensor.State)},
		{Key: "Web server", Value: ui.OnOff(state.WebserverRunning)},
		{Key: "Cloud", Value: cloud},
	})

	rows := make([][]string, 0, len(state.Outputs))
	for _, o := range state.Outputs {
		mode := "auto"
		if o.Override {
			mode = "manual"
		}
		rows = append(rows, []string{o.Name, strconv.Itoa(o.GPIO), ui.OnOff(o.On), mode})
	}
	p.PrintTable([]string{"Output", "GPIO", "State", "Mode"}, rows)
	return nil
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Drive an output on a node",
	Long: `Send a manual command through the node's REST API.

--target accepts "led", "neo" or a GPIO number. --state accepts on, off or
auto; auto returns a named output to automatic control and is only accepted
when the node allows override release.`,
	Example: `  # Force the LED on
  climanode-cfg set --node 192.168.1.40 --target led --state on

  # Hand the pixel back to the humidity controller
  climanode-cfg set --node 192.168.1.40 --target neo --state auto

  # Drive a spare pin
  climanode-cfg set --node 192.168.1.40 --target 5 --state off`,
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringVar(&target, "target", "", "Output to drive: led, neo or a GPIO number")
	setCmd.Flags().StringVar(&outState, "state", "", "Desired state: on, off or auto")
	_ = setCmd.MarkFlagRequired("target")
	_ = setCmd.MarkFlagRequired("state")
}

func runSet(cmd *cobra.Command, args []string) error {
	status, err := parseStatus(outState)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	gpio, err := strconv.Atoi(target)
	if err != nil {
		state, serr := client.GetState(cmd.Context())
		if serr != nil {
			p.PrintFailure("Could not read node state", serr, nodeclient.TroubleshootingHint(serr))
			return serr
		}
		if gpio, err = resolveTarget(target, state.Outputs); err != nil {
			return err
		}
	}

	resp, err := client.SendCommand(cmd.Context(), gpio, status)
	if err != nil {
		p.PrintFailure("Command failed", err, nodeclient.TroubleshootingHint(err))
		return err
	}

	details := []ui.Field{
		{Key: "GPIO", Value: strconv.Itoa(resp.GPIO)},
		{Key: "Status", Value: resp.Status},
		{Key: "Correlation", Value: resp.CorrelationID},
	}
	switch {
	case resp.Pending:
		p.PrintWarning("Command queued, result not yet reported", details)
	case !resp.Accepted:
		p.PrintWarning("Command rejected by the node", details)
	default:
		p.PrintSuccess("Command applied", details)
	}
	return nil
}

func parseStatus(s string) (string, error) {
	switch strings.ToLower(s) {
	case "on":
		return gateway.StatusOn, nil
	case "off":
		return gateway.StatusOff, nil
	case "auto":
		return gateway.StatusAuto, nil
	}
	return "", fmt.Errorf("invalid state %q: use on, off or auto", s)
}

func resolveTarget(name string, outputs []gateway.OutputState) (int, error) {
	name = strings.ToLower(name)
	if name == "neo" || name == "pixel" {
		name = "neopixel"
	}
	for _, o := range outputs {
		if o.Name == name {
			return o.GPIO, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q: use led, neo or a GPIO number", name)
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open a live console on a node",
	Long: `Connect to the node's panel WebSocket and show readings and output
changes as they happen. Keys toggle the outputs; press ? for help.`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	state, err := client.GetState(cmd.Context())
	if err != nil {
		ui.NewPrinter(cmd.OutOrStdout()).PrintFailure("Could not read node state", err, nodeclient.TroubleshootingHint(err))
		return err
	}

	conn, err := console.Dial(cmd.Context(), client.WebSocketURL())
	if err != nil {
		return fmt.Errorf("failed to open console: %w", err)
	}
	defer conn.Close()

	return console.Run(conn, client.BaseURL, state)
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Write node and cloud settings into a configuration file",
	Long: `Prompt for the node name, Wi-Fi credentials and cloud connection and
store them in a configuration file. Existing values are offered as defaults.
The file can then be copied to the node.`,
	Example: `  # Edit the default configuration file
  climanode-cfg provision

  # Prepare a file for another node
  climanode-cfg provision --output ./kitchen.yaml`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&cfgOutput, "output", "", "Configuration file to write (default: user config dir)")
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(cfgOutput)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	cfg.Node.Name = prompt(in, out, "Node name", cfg.Node.Name)
	cfg.Wifi.SSID = prompt(in, out, "Wi-Fi SSID", cfg.Wifi.SSID)
	if pw := promptSecret(in, out, "Wi-Fi password (blank keeps current)"); pw != "" {
		cfg.Wifi.Password = pw
	}
	cfg.Cloud.Server = prompt(in, out, "Cloud server", cfg.Cloud.Server)
	cfg.Cloud.Port = prompt(in, out, "Cloud port", cfg.Cloud.Port)
	if tok := promptSecret(in, out, "Device access token (blank keeps current)"); tok != "" {
		cfg.Cloud.Token = tok
	}

	p := ui.NewPrinter(out)
	if err := cfg.Validate(); err != nil {
		p.PrintFailure("Settings not saved", err, "Fix the values above and run provision again.")
		return err
	}

	path := cfgOutput
	if path == "" {
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}
	if err := cfg.Save(path); err != nil {
		p.PrintFailure("Settings not saved", err, "Check that the directory is writable.")
		return err
	}

	p.PrintSuccess("Configuration written", []ui.Field{
		{Key: "File", Value: path},
		{Key: "Node", Value: cfg.Node.Name},
		{Key: "Wi-Fi", Value: cfg.Wifi.SSID},
		{Key: "Cloud", Value: cfg.Cloud.Server + ":" + cfg.Cloud.Port},
		{Key: "Token", Value: tokenStatus(cfg.Cloud.Token)},
	})
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label, current string) string {
	if current != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

// promptSecret hides input when stdin is a terminal.
func promptSecret(in *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprintf(out, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func tokenStatus(tok string) string {
	if tok == "" {
		return "not set"
	}
	return "set"
}
