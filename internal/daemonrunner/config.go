package daemonrunner

import (
	"path/filepath"
	"time"
)

// Config holds all configuration for the webmond daemon process. DataDir is
// the one required field; every other path defaults to a conventional name
// inside it (spec §6.2/§9).
type Config struct {
	DataDir string

	SocketPath string
	LogFile    string
	PIDFile    string
	LockFile   string

	// MetricsAddr, if non-empty, is the address the Prometheus /metrics
	// endpoint is served on (e.g. "127.0.0.1:9090"). Empty disables it.
	MetricsAddr string

	HealthAlertCheckInterval time.Duration
	CleanupInterval          time.Duration
}

// withDefaults fills in any path left empty from DataDir.
func (c Config) withDefaults() Config {
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "webmond.sock")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "webmond.log")
	}
	if c.PIDFile == "" {
		c.PIDFile = filepath.Join(c.DataDir, "webmond.pid")
	}
	if c.LockFile == "" {
		c.LockFile = filepath.Join(c.DataDir, "webmond.lock")
	}
	return c
}
