// Package config provides configuration for the control plane daemon.
//
// Configuration controls:
//   - Endpoint identity: workspace name and socket directory, or an
//     explicit socket path overriding both
//   - The tick interval the poll loop runs at
//   - Debug adapter settings for the optional Delve backend
//
// Configuration can be loaded from a JSON file or use sensible defaults.
// The HOSTPEEK_SOCKET environment variable overrides the socket path.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/hostpeek/hostpeek/internal/mux"
)

// Config holds the daemon configuration
type Config struct {
	// Endpoint identity
	Workspace  string `json:"workspace"`
	SocketDir  string `json:"socketDir"`
	SocketPath string `json:"socketPath"`

	// Poll loop
	TickInterval time.Duration `json:"tickInterval"`

	// Debug adapter
	Adapter AdapterConfig `json:"adapter"`
}

// AdapterConfig holds Delve-specific configuration
type AdapterConfig struct {
	Enabled    bool   `json:"enabled"`
	DlvPath    string `json:"dlvPath"`
	BuildFlags string `json:"buildFlags"`
	Program    string `json:"program"`
}

// DefaultConfig returns a configuration with sensible defaults. The
// workspace defaults to the current directory's basename.
func DefaultConfig() *Config {
	workspace := "workspace"
	if cwd, err := os.Getwd(); err == nil {
		workspace = filepath.Base(cwd)
	}
	return &Config{
		Workspace:    workspace,
		SocketDir:    os.TempDir(),
		TickInterval: 50 * time.Millisecond,
		Adapter: AdapterConfig{
			DlvPath: "dlv",
		},
	}
}

// LoadConfig loads configuration from a JSON file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveSocketPath returns the endpoint path, in precedence order: the
// HOSTPEEK_SOCKET environment variable, the explicit socketPath setting,
// then the workspace-derived name inside socketDir.
func (c *Config) ResolveSocketPath() string {
	if env := os.Getenv("HOSTPEEK_SOCKET"); env != "" {
		return env
	}
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return mux.SocketPath(c.SocketDir, c.Workspace)
}
