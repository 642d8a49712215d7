package retention

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onbao165/webmonitor/internal/store/sqlite"
	"github.com/onbao165/webmonitor/internal/types"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webmon.db")
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedResults(t *testing.T, ctx context.Context, st *sqlite.SQLiteStore, monitorID, spaceID string, n int, age time.Duration, status types.MonitorStatus) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := types.NewMonitorResult(monitorID, spaceID, types.MonitorTypeURL)
		r.Timestamp = time.Now().Add(-age)
		r.Status = status
		if err := st.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
}

func TestClampSubstitutesDefaults(t *testing.T) {
	var warnings []string
	log := func(format string, args ...interface{}) { warnings = append(warnings, format) }

	healthy, unhealthy := Clamp(0, 0, log)
	if healthy != defaultKeepHealthyDays || unhealthy != defaultKeepUnhealthyDays {
		t.Errorf("expected defaults 7/30, got %d/%d", healthy, unhealthy)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d", len(warnings))
	}

	healthy, unhealthy = Clamp(14, 60, log)
	if healthy != 14 || unhealthy != 60 {
		t.Errorf("expected valid TTLs to pass through unchanged, got %d/%d", healthy, unhealthy)
	}
}

func TestRunDeletesOldResultsAndHonorsSafetyCap(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	st.SaveSpace(ctx, sp)
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://example.com"})
	st.SaveMonitor(ctx, m)

	seedResults(t, ctx, st, m.ID, sp.ID, 1000, 10*24*time.Hour, types.StatusHealthy)
	seedResults(t, ctx, st, m.ID, sp.ID, 1000, 40*24*time.Hour, types.StatusUnhealthy)
	seedResults(t, ctx, st, m.ID, sp.ID, 10, time.Hour, types.StatusHealthy)

	preview, err := Preview(ctx, st, 7, 30, nil)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.HealthyToDelete != 1000 || preview.UnhealthyToDelete != 1000 || preview.TotalToDelete != 2000 {
		t.Fatalf("unexpected preview: %+v", preview)
	}
	if preview.RetentionAfterCleanup != 10 {
		t.Errorf("expected 10 results to remain, got %d", preview.RetentionAfterCleanup)
	}

	if ok := Run(ctx, st, 7, 30, nil); !ok {
		t.Fatal("expected Run to succeed")
	}

	remaining, err := st.GetResultsByMonitorID(ctx, m.ID, 10000)
	if err != nil {
		t.Fatalf("GetResultsByMonitorID: %v", err)
	}
	if len(remaining) != 10 {
		t.Errorf("expected 10 remaining results, got %d", len(remaining))
	}

	if ok := Run(ctx, st, 7, 30, nil); !ok {
		t.Fatal("expected re-running cleanup with nothing left to delete to still succeed")
	}
	remaining, _ = st.GetResultsByMonitorID(ctx, m.ID, 10000)
	if len(remaining) != 10 {
		t.Errorf("expected re-run to be a no-op, got %d remaining", len(remaining))
	}
}

func TestRunAbortsWhenSafetyCapWouldBeExceeded(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	st.SaveSpace(ctx, sp)
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://example.com"})
	st.SaveMonitor(ctx, m)

	seedResults(t, ctx, st, m.ID, sp.ID, 100, 40*24*time.Hour, types.StatusUnhealthy)

	if ok := Run(ctx, st, 7, 30, nil); ok {
		t.Error("expected Run to abort when deleting would exceed the 90% safety cap")
	}

	remaining, err := st.GetResultsByMonitorID(ctx, m.ID, 10000)
	if err != nil {
		t.Fatalf("GetResultsByMonitorID: %v", err)
	}
	if len(remaining) != 100 {
		t.Errorf("expected no rows removed after an aborted run, got %d remaining", len(remaining))
	}
}
