// Package config loads and saves the climanode node configuration.
//
// Configuration is layered. Later layers override earlier ones:
//
//  1. Built-in defaults (Default)
//  2. The YAML file (--config, or $XDG_CONFIG_HOME/climanode/config.yaml)
//  3. A .env file in the working directory, if present
//  4. CLIMANODE_* environment variables
//  5. Command-line flags, applied by the binaries
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/climanode/config.yaml or $HOME/.config/climanode/config.yaml
//   - macOS: $HOME/.config/climanode/config.yaml
//   - Windows: %LOCALAPPDATA%\climanode\config.yaml
//
// # Security
//
// The file holds the cloud access token and Wi-Fi password, so Save writes it
// with 0600 permissions inside a 0700 directory.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Cloud.Token = token
//	if err := cfg.Save(""); err != nil {
//	    log.Fatal(err)
//	}
package config
