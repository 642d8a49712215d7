package configfile

import (
	"path/filepath"
	"testing"

	"github.com/onbao165/webmonitor/internal/cryptobox"
)

func TestLoadCreatesDefaultConfigWhenMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HealthAlerts.Enabled || cfg.HealthAlerts.CheckIntervalMinutes != 60 {
		t.Errorf("unexpected default health_alerts: %+v", cfg.HealthAlerts)
	}
	if cfg.DataCleanup.KeepHealthyResultsDays != 7 || cfg.DataCleanup.KeepUnhealthyResultsDays != 30 {
		t.Errorf("unexpected default data_cleanup: %+v", cfg.DataCleanup)
	}
	if cfg.Security.EncryptionKey == "" {
		t.Error("expected a generated encryption key")
	}

	if _, err := Load(dir); err != nil {
		t.Fatalf("second Load should read the persisted default: %v", err)
	}
}

func TestSaveEncryptsPlaintextPassword(t *testing.T) {
	dir := t.TempDir()
	key, err := cryptobox.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	box, err := cryptobox.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.Email.Username = "alerts@example.com"
	cfg.Email.Password = "hunter2"

	if err := cfg.Save(dir, box); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Email.Password != "" {
		t.Error("expected plaintext password to be cleared after Save")
	}
	if cfg.Email.EncryptedPassword == "" {
		t.Fatal("expected encrypted_password to be populated")
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Email.Password != "" {
		t.Error("reloaded config must not carry a plaintext password")
	}

	plain, err := reloaded.DecryptedPassword(box)
	if err != nil {
		t.Fatalf("DecryptedPassword: %v", err)
	}
	if plain != "hunter2" {
		t.Errorf("expected decrypted password %q, got %q", "hunter2", plain)
	}
}

func TestIsEmailConfigured(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	if cfg.IsEmailConfigured() {
		t.Error("fresh default config should not be considered configured")
	}

	cfg.Email.Username = "alerts@example.com"
	cfg.Email.Password = "hunter2"
	if !cfg.IsEmailConfigured() {
		t.Error("expected config with host/port/username/password to be configured")
	}
}

func TestConfigPath(t *testing.T) {
	dir := "/var/lib/webmond"
	want := filepath.Join(dir, ConfigFileName)
	if got := ConfigPath(dir); got != want {
		t.Errorf("ConfigPath(%q) = %q, want %q", dir, got, want)
	}
}
