// Package configfile persists the on-disk daemon configuration: SMTP
// credentials, health-alert and retention schedules, and the AEAD
// encryption key (spec §6.2).
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/onbao165/webmonitor/internal/cryptobox"
)

const ConfigFileName = "config.json"

// EmailConfig holds SMTP credentials. Password is a write-only field: it is
// accepted on input, encrypted into EncryptedPassword by Save, and never
// round-trips back to disk in plaintext.
type EmailConfig struct {
	SMTPHost          string `json:"smtp_host"`
	SMTPPort          int    `json:"smtp_port"`
	Username          string `json:"username"`
	FromName          string `json:"from_name"`
	Password          string `json:"password,omitempty"`
	EncryptedPassword string `json:"encrypted_password,omitempty"`
}

type HealthAlertsConfig struct {
	Enabled                 bool    `json:"enabled"`
	CheckIntervalMinutes    int     `json:"check_interval_minutes"`
	UnhealthyThresholdHours float64 `json:"unhealthy_threshold_hours"`
}

type DataCleanupConfig struct {
	Enabled                  bool `json:"enabled"`
	CleanupIntervalHours     int  `json:"cleanup_interval_hours"`
	KeepHealthyResultsDays   int  `json:"keep_healthy_results_days"`
	KeepUnhealthyResultsDays int  `json:"keep_unhealthy_results_days"`
}

// SecurityConfig holds the base64-encoded AEAD key used by internal/cryptobox.
type SecurityConfig struct {
	EncryptionKey string `json:"encryption_key"`
}

// Config is the full on-disk document at ConfigPath.
type Config struct {
	Email        EmailConfig        `json:"email"`
	HealthAlerts HealthAlertsConfig `json:"health_alerts"`
	DataCleanup  DataCleanupConfig  `json:"data_cleanup"`
	Security     SecurityConfig     `json:"security"`
	ConfiguredAt time.Time          `json:"configured_at"`
	LastUpdated  time.Time          `json:"last_updated"`
}

// DefaultConfig builds the document written the first time the daemon runs
// in a fresh data directory, with a freshly generated encryption key.
func DefaultConfig() (*Config, error) {
	key, err := cryptobox.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}
	now := time.Now()
	return &Config{
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
			FromName: "Web Monitor",
		},
		HealthAlerts: HealthAlertsConfig{
			Enabled:                 true,
			CheckIntervalMinutes:    60,
			UnhealthyThresholdHours: 24,
		},
		DataCleanup: DataCleanupConfig{
			Enabled:                  true,
			CleanupIntervalHours:     24,
			KeepHealthyResultsDays:   7,
			KeepUnhealthyResultsDays: 30,
		},
		Security:     SecurityConfig{EncryptionKey: cryptobox.EncodeKey(key)},
		ConfiguredAt: now,
		LastUpdated:  now,
	}, nil
}

// ConfigPath returns the conventional config file location under dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// Load reads the config file, creating a fresh default one (persisted) if
// none exists yet.
func Load(dataDir string) (*Config, error) {
	path := ConfigPath(dataDir)

	data, err := os.ReadFile(path) // #nosec G304 - controlled path from daemon config
	if os.IsNotExist(err) {
		cfg, err := DefaultConfig()
		if err != nil {
			return nil, err
		}
		if err := cfg.Save(dataDir, nil); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config file. If Email.Password holds a plaintext value and
// box is non-nil, it is encrypted into EncryptedPassword and cleared before
// the document touches disk (spec §6.2).
func (c *Config) Save(dataDir string, box *cryptobox.Box) error {
	if c.Email.Password != "" && box != nil {
		enc, err := box.Encrypt(c.Email.Password)
		if err != nil {
			return fmt.Errorf("encrypting smtp password: %w", err)
		}
		c.Email.EncryptedPassword = enc
		c.Email.Password = ""
	}

	now := time.Now()
	if c.ConfiguredAt.IsZero() {
		c.ConfiguredAt = now
	}
	c.LastUpdated = now

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(dataDir), data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// IsEmailConfigured reports whether the SMTP host, port, username, and a
// password (plaintext or encrypted) are all set.
func (c *Config) IsEmailConfigured() bool {
	return c.Email.SMTPHost != "" && c.Email.SMTPPort != 0 && c.Email.Username != "" &&
		(c.Email.Password != "" || c.Email.EncryptedPassword != "")
}

// DecryptedPassword returns the plaintext SMTP password, decrypting
// EncryptedPassword via box when no plaintext Password is already held.
func (c *Config) DecryptedPassword(box *cryptobox.Box) (string, error) {
	if c.Email.Password != "" {
		return c.Email.Password, nil
	}
	if c.Email.EncryptedPassword == "" || box == nil {
		return "", nil
	}
	return box.Decrypt(c.Email.EncryptedPassword)
}
