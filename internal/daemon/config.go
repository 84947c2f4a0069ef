// Package daemon runs the indexing services in the background and exposes
// them over a JSON-RPC 2.0 Unix socket.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/semdesk/internal/config"
)

// Config holds the socket, PID file and timeouts of the control surface.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.semdesk/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.semdesk/daemon.pid
	PIDPath string

	// Timeout bounds one client request.
	// Default: 30s
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return FromConfig(config.NewConfig().Daemon)
}

// FromConfig converts the daemon section of the application config.
func FromConfig(dc config.DaemonConfig) Config {
	return Config{
		SocketPath: dc.SocketPath,
		PIDPath:    dc.PIDPath,
		Timeout:    config.Duration(dc.Timeout, 30*time.Second),
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// EnsureDir creates the directories for socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
