// Package logging provides structured logging for climanode.
//
// This package wraps the zap logger with convenience functions used throughout
// the node. A single process-wide logger is configured once at startup; every
// component logs through the helpers here or through a Named child logger.
//
// # Log Levels
//
//   - Debug: wire payloads, per-cycle controller decisions
//   - Info: connections, accepted commands, state changes
//   - Warn: recovered failures (lock timeouts, backpressure, invalid readings)
//   - Error: transport failures, startup problems
//
// # Configuration
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "info",
//	    File:  "/var/log/climanode/node.log",
//	}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When Options.File is set the console output is teed to a JSON file rotated
// by lumberjack. When neither a level nor CLIMANODE_LOG_LEVEL is set the
// logger is silent, which keeps operator commands quiet.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize must be
// called before any goroutine starts logging.
package logging
