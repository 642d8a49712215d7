package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onbao165/webmonitor/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webmon.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSpaceCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sp := types.NewSpace("prod", "production services", []string{"ops@example.com"})
	if err := s.SaveSpace(ctx, sp); err != nil {
		t.Fatalf("SaveSpace: %v", err)
	}

	got, err := s.GetSpaceByID(ctx, sp.ID)
	if err != nil {
		t.Fatalf("GetSpaceByID: %v", err)
	}
	if got.Name != "prod" || len(got.NotificationEmails) != 1 {
		t.Errorf("unexpected space: %+v", got)
	}

	byName, err := s.GetSpaceByName(ctx, "prod")
	if err != nil || byName.ID != sp.ID {
		t.Errorf("GetSpaceByName mismatch: %v, %+v", err, byName)
	}

	list, err := s.ListSpaces(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("ListSpaces: %v, %d spaces", err, len(list))
	}

	if err := s.DeleteSpace(ctx, sp.ID); err != nil {
		t.Fatalf("DeleteSpace: %v", err)
	}
	if _, err := s.GetSpaceByID(ctx, sp.ID); err == nil {
		t.Error("expected not-found after delete")
	}
}

func TestMonitorCascadeDeleteOnSpace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sp := types.NewSpace("prod", "", nil)
	if err := s.SaveSpace(ctx, sp); err != nil {
		t.Fatalf("SaveSpace: %v", err)
	}
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://example.com"})
	if err := s.SaveMonitor(ctx, m); err != nil {
		t.Fatalf("SaveMonitor: %v", err)
	}
	r := types.NewMonitorResult(m.ID, sp.ID, types.MonitorTypeURL)
	r.CheckList = []string{"connection", "status_code"}
	if err := s.SaveResult(ctx, r); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	if err := s.DeleteSpace(ctx, sp.ID); err != nil {
		t.Fatalf("DeleteSpace: %v", err)
	}
	if _, err := s.GetMonitorByID(ctx, m.ID); err == nil {
		t.Error("expected monitor to be cascade-deleted with its space")
	}
	results, err := s.GetResultsByMonitorID(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("GetResultsByMonitorID: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected results to be cascade-deleted, got %d", len(results))
	}
}

func TestMonitorNameUniqueWithinSpace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	s.SaveSpace(ctx, sp)

	m1 := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://example.com"})
	if err := s.SaveMonitor(ctx, m1); err != nil {
		t.Fatalf("SaveMonitor: %v", err)
	}
	m2 := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://other.com"})
	if err := s.SaveMonitor(ctx, m2); err == nil {
		t.Error("expected conflict for duplicate monitor name within a space")
	}
}

func TestGetUnhealthyMonitors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	s.SaveSpace(ctx, sp)

	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://example.com"})
	m.Status = types.StatusUnhealthy
	now := time.Now()
	checked := now
	healthy := now.Add(-48 * time.Hour)
	m.LastCheckedAt = &checked
	m.LastHealthyAt = &healthy
	if err := s.SaveMonitor(ctx, m); err != nil {
		t.Fatalf("SaveMonitor: %v", err)
	}

	unhealthy, err := s.GetUnhealthyMonitors(ctx, 24)
	if err != nil {
		t.Fatalf("GetUnhealthyMonitors: %v", err)
	}
	if len(unhealthy) != 1 || unhealthy[0].ID != m.ID {
		t.Errorf("expected monitor to be flagged unhealthy, got %d results", len(unhealthy))
	}
}

func TestCleanupPreviewAndApply(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	s.SaveSpace(ctx, sp)
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://example.com"})
	s.SaveMonitor(ctx, m)

	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now().Add(-1 * time.Hour)
	for i := 0; i < 5; i++ {
		r := types.NewMonitorResult(m.ID, sp.ID, types.MonitorTypeURL)
		r.Timestamp = old
		r.Status = types.StatusHealthy
		s.SaveResult(ctx, r)
	}
	rRecent := types.NewMonitorResult(m.ID, sp.ID, types.MonitorTypeURL)
	rRecent.Timestamp = recent
	rRecent.Status = types.StatusHealthy
	s.SaveResult(ctx, rRecent)

	preview, err := s.CleanupPreview(ctx, 7, 30)
	if err != nil {
		t.Fatalf("CleanupPreview: %v", err)
	}
	if preview.HealthyToDelete != 5 || preview.TotalResults != 6 {
		t.Errorf("unexpected preview: %+v", preview)
	}

	stats, err := s.CleanupOldResults(ctx, 7, 30, 1000)
	if err != nil {
		t.Fatalf("CleanupOldResults: %v", err)
	}
	if stats.TotalDeleted != 5 {
		t.Errorf("expected 5 deleted, got %d", stats.TotalDeleted)
	}

	remaining, err := s.GetResultsByMonitorID(ctx, m.ID, 100)
	if err != nil || len(remaining) != 1 {
		t.Errorf("expected 1 remaining result, got %d, err %v", len(remaining), err)
	}
}
