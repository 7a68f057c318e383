// Package ui renders styled terminal output for the climanode-cfg utility.
//
// Components follow a "render once and print" pattern: a Header describing
// the command, a Result box for success, failure or warning, and tables for
// discovered nodes and output states. The interactive console lives in its
// own package and reuses the palette defined here.
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Node Status", "climanode-cfg status", []ui.Field{{Key: "Node", Value: url}})
//	p.PrintSuccess("State fetched", []ui.Field{{Key: "Temperature", Value: "24.5 °C"}})
//
// Logging stays silent unless CLIMANODE_LOG_LEVEL is set, so this output is
// the only thing the operator sees.
package ui
