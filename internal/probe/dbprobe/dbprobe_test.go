package dbprobe

import (
	"testing"

	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/types"
)

func newTestBox(t *testing.T) *cryptobox.Box {
	t.Helper()
	key, err := cryptobox.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	box, err := cryptobox.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	return box
}

func TestCheckUnsupportedDialect(t *testing.T) {
	m := types.NewDBMonitor("space-1", "db", types.DBMonitorConfig{
		DBType:   "oracle",
		Host:     "localhost",
		Port:     1521,
		Database: "xe",
	})
	result := Check(m, newTestBox(t))
	if result.FailedChecks != 2 {
		t.Errorf("expected both checks to fail for unsupported dialect, got %d", result.FailedChecks)
	}
	if result.Status != types.StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", result.Status)
	}
	if len(result.CheckList) != 2 {
		t.Errorf("expected check_list [connection, query], got %v", result.CheckList)
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	m := types.NewDBMonitor("space-1", "db", types.DBMonitorConfig{
		DBType:                   types.DBTypePostgres,
		Host:                     "127.0.0.1",
		Port:                     1,
		Database:                 "app",
		ConnectionTimeoutSeconds: 1,
		QueryTimeoutSeconds:      1,
	})
	result := Check(m, newTestBox(t))
	if result.Status != types.StatusUnhealthy {
		t.Errorf("expected unhealthy on connection refusal, got %s", result.Status)
	}
	if result.FailedChecks != 2 {
		t.Errorf("expected both checks to fail when the connection is refused, got %d", result.FailedChecks)
	}
}
