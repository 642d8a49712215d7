package control

import (
	"path/filepath"
	"testing"

	"github.com/onbao165/webmonitor/internal/configfile"
	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/notify"
	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/scheduler"
	"github.com/onbao165/webmonitor/internal/store/sqlite"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	path := filepath.Join(t.TempDir(), "webmon.db")
	st, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	key, err := cryptobox.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	box, err := cryptobox.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	cfg, err := configfile.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}

	sched := scheduler.New(st, box, notify.NewSender(notify.SMTPConfig{}, nil), scheduler.Config{
		DataCleanupEnabled: cfg.DataCleanup.Enabled,
		KeepHealthyDays:    cfg.DataCleanup.KeepHealthyResultsDays,
		KeepUnhealthyDays:  cfg.DataCleanup.KeepUnhealthyResultsDays,
	}, nil)
	sched.Start()
	t.Cleanup(sched.StopScheduler)

	return New(st, sched, box, cfg, t.TempDir(), nil)
}

func requireSuccess(t *testing.T, resp *rpc.Response) {
	t.Helper()
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got status %q message %q", resp.Status, resp.Message)
	}
}

func requireError(t *testing.T, resp *rpc.Response) {
	t.Helper()
	if resp.IsSuccess() {
		t.Fatalf("expected error response, got success: %+v", resp)
	}
}

func handle(r *Router, action string, payload map[string]interface{}) *rpc.Response {
	body, _ := rpc.NewRequestBody(action, payload)
	req, err := rpc.DecodeRequest(body)
	if err != nil {
		return rpc.ErrorResponse(err.Error())
	}
	return r.Handle(req)
}

func TestRouterUnknownAction(t *testing.T) {
	r := newTestRouter(t)
	resp := handle(r, "not_a_real_action", nil)
	requireError(t, resp)
}

func TestRouterSpaceLifecycle(t *testing.T) {
	r := newTestRouter(t)

	createResp := handle(r, rpc.ActionCreateSpace, map[string]interface{}{
		"space": map[string]interface{}{
			"name":                "prod",
			"description":         "production",
			"notification_emails": []string{"ops@example.com"},
		},
	})
	requireSuccess(t, createResp)

	var created map[string]interface{}
	if err := createResp.Decode("space", &created); err != nil {
		t.Fatalf("decode space: %v", err)
	}
	spaceID, _ := created["id"].(string)
	if spaceID == "" {
		t.Fatal("created space has no id")
	}

	// duplicate name is a conflict
	dupResp := handle(r, rpc.ActionCreateSpace, map[string]interface{}{
		"space": map[string]interface{}{"name": "prod"},
	})
	requireError(t, dupResp)

	getResp := handle(r, rpc.ActionGetSpace, map[string]interface{}{"space_id": spaceID})
	requireSuccess(t, getResp)

	listResp := handle(r, rpc.ActionListSpaces, nil)
	requireSuccess(t, listResp)
	var spaces []map[string]interface{}
	if err := listResp.Decode("spaces", &spaces); err != nil {
		t.Fatalf("decode spaces: %v", err)
	}
	if len(spaces) != 1 {
		t.Fatalf("expected 1 space, got %d", len(spaces))
	}

	updateResp := handle(r, rpc.ActionUpdateSpace, map[string]interface{}{
		"space": map[string]interface{}{"id": spaceID, "description": "prod environment"},
	})
	requireSuccess(t, updateResp)

	deleteResp := handle(r, rpc.ActionDeleteSpace, map[string]interface{}{"space_id": spaceID})
	requireSuccess(t, deleteResp)

	getAfterDelete := handle(r, rpc.ActionGetSpace, map[string]interface{}{"space_id": spaceID})
	requireError(t, getAfterDelete)
}

func TestRouterMonitorLifecycle(t *testing.T) {
	r := newTestRouter(t)

	spResp := handle(r, rpc.ActionCreateSpace, map[string]interface{}{
		"space": map[string]interface{}{"name": "prod"},
	})
	requireSuccess(t, spResp)
	var sp map[string]interface{}
	spResp.Decode("space", &sp)
	spaceID := sp["id"].(string)

	createResp := handle(r, rpc.ActionCreateMonitor, map[string]interface{}{
		"monitor": map[string]interface{}{
			"name":         "homepage",
			"space_id":     spaceID,
			"monitor_type": "url",
			"url":          "https://example.invalid",
		},
	})
	requireSuccess(t, createResp)
	var mon map[string]interface{}
	createResp.Decode("monitor", &mon)
	monitorID := mon["id"].(string)
	if mon["running"] != false {
		t.Errorf("newly created monitor should not be running yet")
	}

	// missing required fields is a validation error
	badResp := handle(r, rpc.ActionCreateMonitor, map[string]interface{}{
		"monitor": map[string]interface{}{"space_id": spaceID},
	})
	requireError(t, badResp)

	getResp := handle(r, rpc.ActionGetMonitor, map[string]interface{}{"monitor_id": monitorID})
	requireSuccess(t, getResp)

	listResp := handle(r, rpc.ActionListMonitors, map[string]interface{}{"space_id": spaceID})
	requireSuccess(t, listResp)
	var monitors []map[string]interface{}
	listResp.Decode("monitors", &monitors)
	if len(monitors) != 1 {
		t.Fatalf("expected 1 monitor, got %d", len(monitors))
	}

	startResp := handle(r, rpc.ActionStartMonitor, map[string]interface{}{"monitor_id": monitorID})
	requireSuccess(t, startResp)

	// starting twice is a conflict (already scheduled)
	startAgainResp := handle(r, rpc.ActionStartMonitor, map[string]interface{}{"monitor_id": monitorID})
	requireError(t, startAgainResp)

	updateResp := handle(r, rpc.ActionUpdateMonitor, map[string]interface{}{
		"monitor": map[string]interface{}{"id": monitorID, "check_interval_seconds": 120},
	})
	requireSuccess(t, updateResp)

	stopResp := handle(r, rpc.ActionStopMonitor, map[string]interface{}{"monitor_id": monitorID})
	requireSuccess(t, stopResp)

	deleteResp := handle(r, rpc.ActionDeleteMonitor, map[string]interface{}{"monitor_id": monitorID})
	requireSuccess(t, deleteResp)

	getAfterDelete := handle(r, rpc.ActionGetMonitor, map[string]interface{}{"monitor_id": monitorID})
	requireError(t, getAfterDelete)
}

func TestRouterResultsDefaultLimit(t *testing.T) {
	r := newTestRouter(t)

	spResp := handle(r, rpc.ActionCreateSpace, map[string]interface{}{
		"space": map[string]interface{}{"name": "prod"},
	})
	var sp map[string]interface{}
	spResp.Decode("space", &sp)
	spaceID := sp["id"].(string)

	monResp := handle(r, rpc.ActionCreateMonitor, map[string]interface{}{
		"monitor": map[string]interface{}{
			"name": "homepage", "space_id": spaceID, "monitor_type": "url",
			"url": "https://example.invalid",
		},
	})
	var mon map[string]interface{}
	monResp.Decode("monitor", &mon)

	// no results yet, should succeed with an empty list, not error
	resp := handle(r, rpc.ActionGetMonitorResults, map[string]interface{}{"monitor_id": mon["id"]})
	requireSuccess(t, resp)
	var results []map[string]interface{}
	resp.Decode("results", &results)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRouterSystemJobs(t *testing.T) {
	r := newTestRouter(t)

	statusResp := handle(r, rpc.ActionStatus, nil)
	requireSuccess(t, statusResp)
	if total, _ := statusResp.Payload["total_monitors"].(int); total != 0 {
		t.Errorf("expected 0 running monitors on a fresh router, got %v", statusResp.Payload["total_monitors"])
	}

	jobsResp := handle(r, rpc.ActionGetJobStatus, nil)
	requireSuccess(t, jobsResp)

	previewResp := handle(r, rpc.ActionGetCleanupPreview, nil)
	requireSuccess(t, previewResp)

	// data-cleanup is the CLI-facing alias for the scheduler's data_cleanup job
	runResp := handle(r, rpc.ActionRunJobManually, map[string]interface{}{"job_name": "data-cleanup"})
	requireSuccess(t, runResp)

	missingNameResp := handle(r, rpc.ActionRunJobManually, map[string]interface{}{})
	requireError(t, missingNameResp)
}
