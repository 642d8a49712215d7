package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton
// Should be called once at application startup
func Initialize() error {
	v = viper.New()

	// Set config file name and type
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add config search paths (in order of precedence)
	// 1. Walk up from CWD to find a project .webmond/ directory
	//    This allows commands to work from subdirectories
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			webmondDir := filepath.Join(dir, ".webmond")
			configPath := filepath.Join(webmondDir, "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.AddConfigPath(webmondDir)
				break
			}
			if info, err := os.Stat(webmondDir); err == nil && info.IsDir() {
				v.AddConfigPath(webmondDir)
				break
			}
		}

		// Also add CWD/.webmond for backward compatibility
		v.AddConfigPath(filepath.Join(cwd, ".webmond"))
	}

	// 2. User config directory (~/.config/webmon/)
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "webmon"))
	}

	// 3. Home directory (~/.webmond/)
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".webmond"))
	}

	// Automatic environment variable binding
	// Environment variables take precedence over config file
	// E.g., WEBMOND_JSON, WEBMOND_DATA_DIR, WEBMOND_SOCKET
	v.SetEnvPrefix("WEBMOND")

	// Replace hyphens and dots with underscores for env var mapping
	// This allows WEBMOND_DATA_DIR to map to "data-dir" config key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Set defaults for all flags
	v.SetDefault("json", false)
	v.SetDefault("data-dir", defaultDataDir())
	v.SetDefault("socket", "")
	v.SetDefault("log-file", "")
	v.SetDefault("pid-file", "")
	v.SetDefault("no-daemon", false)
	v.SetDefault("metrics-addr", "")

	// Read config file if it exists (don't error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found - this is ok, we'll use defaults
	}

	return nil
}

// defaultDataDir returns ~/.webmond, the conventional location for the
// daemon's sqlite database, config.json, PID file, and control socket.
func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".webmond")
	}
	return ".webmond"
}

// BindFlag binds key to a cobra/pflag flag so an explicitly-passed
// command-line flag takes precedence over the config file and defaults,
// while an unset flag still falls through to them.
func BindFlag(key string, flag *pflag.Flag) error {
	if v == nil {
		return fmt.Errorf("config not initialized")
	}
	return v.BindPFlag(key, flag)
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
