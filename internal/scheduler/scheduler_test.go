package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/notify"
	"github.com/onbao165/webmonitor/internal/store"
	"github.com/onbao165/webmonitor/internal/store/sqlite"
	"github.com/onbao165/webmonitor/internal/types"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webmon.db")
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

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

func TestScheduleRunsImmediatelyAndMarksStatus(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	if err := st.SaveSpace(ctx, sp); err != nil {
		t.Fatalf("SaveSpace: %v", err)
	}
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: server.URL, ExpectedStatusCode: 200, TimeoutSeconds: 5})
	m.CheckIntervalSeconds = 3600
	if err := st.SaveMonitor(ctx, m); err != nil {
		t.Fatalf("SaveMonitor: %v", err)
	}

	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), Config{}, nil)
	if err := sched.Schedule(m); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		results, err := st.GetResultsByMonitorID(ctx, m.ID, 1)
		if err == nil && len(results) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	results, err := st.GetResultsByMonitorID(ctx, m.ID, 1)
	if err != nil {
		t.Fatalf("GetResultsByMonitorID: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the monitor to have run once immediately, got %d results", len(results))
	}
	if results[0].Status != types.StatusHealthy {
		t.Errorf("expected healthy result, got %s", results[0].Status)
	}

	if !sched.IsRunning(m.ID) {
		t.Error("expected monitor to be registered as running")
	}

	if err := sched.Stop(m.ID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sched.IsRunning(m.ID) {
		t.Error("expected monitor to be unregistered after Stop")
	}

	stored, err := st.GetMonitorByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMonitorByID: %v", err)
	}
	if stored.Status != types.StatusOffline {
		t.Errorf("expected OFFLINE after Stop, got %s", stored.Status)
	}
}

func TestScheduleRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	st.SaveSpace(ctx, sp)
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://127.0.0.1:1", TimeoutSeconds: 1})
	m.CheckIntervalSeconds = 3600
	st.SaveMonitor(ctx, m)

	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), Config{}, nil)
	if err := sched.Schedule(m); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := sched.Schedule(m); err == nil {
		t.Error("expected error scheduling an already-running monitor")
	}
}

func TestStopAllInSpace(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	st.SaveSpace(ctx, sp)

	var monitors []*types.Monitor
	for i := 0; i < 3; i++ {
		m := types.NewURLMonitor(sp.ID, "web"+string(rune('a'+i)), types.URLMonitorConfig{URL: "http://127.0.0.1:1", TimeoutSeconds: 1})
		m.CheckIntervalSeconds = 3600
		st.SaveMonitor(ctx, m)
		monitors = append(monitors, m)
	}

	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), Config{}, nil)
	for _, m := range monitors {
		if err := sched.Schedule(m); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	stopped := sched.StopAllInSpace(sp.ID)
	if stopped != 3 {
		t.Errorf("expected 3 stopped, got %d", stopped)
	}
	for _, m := range monitors {
		if sched.IsRunning(m.ID) {
			t.Errorf("expected %s to be stopped", m.Name)
		}
	}
}

func TestRunSystemJobManuallyUnknownJob(t *testing.T) {
	st := newTestStore(t)
	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), Config{}, nil)
	if _, err := sched.RunSystemJobManually("nonexistent"); err == nil {
		t.Error("expected error for unknown system job")
	}
}

func TestDataCleanupSystemJobAccounting(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sp := types.NewSpace("prod", "", nil)
	st.SaveSpace(ctx, sp)
	m := types.NewURLMonitor(sp.ID, "web", types.URLMonitorConfig{URL: "http://127.0.0.1:1"})
	st.SaveMonitor(ctx, m)

	cfg := Config{
		DataCleanupEnabled: true,
		CleanupInterval:    time.Hour,
		KeepHealthyDays:    7,
		KeepUnhealthyDays:  30,
	}
	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), cfg, nil)

	ok, err := sched.RunSystemJobManually("data_cleanup")
	if err != nil {
		t.Fatalf("RunSystemJobManually: %v", err)
	}
	if !ok {
		t.Error("expected data_cleanup to succeed with nothing to delete")
	}

	statuses := sched.GetSystemJobStatus()
	if len(statuses) != 1 || statuses[0].Name != "data_cleanup" || statuses[0].RunCount != 1 {
		t.Errorf("unexpected system job status: %+v", statuses)
	}
}

func TestGetCleanupPreview(t *testing.T) {
	st := newTestStore(t)
	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), Config{}, nil)
	preview, err := sched.GetCleanupPreview(7, 30)
	if err != nil {
		t.Fatalf("GetCleanupPreview: %v", err)
	}
	if preview.TotalToDelete != 0 {
		t.Errorf("expected nothing to delete on an empty store, got %+v", preview)
	}
}

func TestStopSchedulerReturnsAfterStart(t *testing.T) {
	st := newTestStore(t)
	sched := New(st, newTestBox(t), notify.NewSender(notify.SMTPConfig{}, nil), Config{}, nil)
	sched.Start()
	sched.StopScheduler()
}
