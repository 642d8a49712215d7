// Package control implements the router behind the control protocol: one
// handler per action in spec §6.1, delegating to the store, scheduler, and
// notification layers and translating their errors into the envelope
// §7 describes (the connection boundary catches everything).
package control

import (
	"fmt"
	"sync"

	"github.com/onbao165/webmonitor/internal/configfile"
	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/notify"
	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/scheduler"
	"github.com/onbao165/webmonitor/internal/store"
	"github.com/onbao165/webmonitor/internal/types"
)

// Logger is the minimal logging hook the router needs.
type Logger func(format string, args ...interface{})

// Router dispatches a decoded rpc.Request to its action and implements
// rpc.Handler.
type Router struct {
	st      store.Store
	sched   *scheduler.Scheduler
	box     *cryptobox.Box
	dataDir string
	log     Logger

	cfgMu sync.RWMutex
	cfg   *configfile.Config

	routes map[string]func(*rpc.Request) *rpc.Response
}

// New builds a Router. cfg is the daemon's current on-disk config, held so
// reload_email_config can refresh it without a restart.
func New(st store.Store, sched *scheduler.Scheduler, box *cryptobox.Box, cfg *configfile.Config, dataDir string, log Logger) *Router {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	r := &Router{st: st, sched: sched, box: box, cfg: cfg, dataDir: dataDir, log: log}
	r.routes = map[string]func(*rpc.Request) *rpc.Response{
		rpc.ActionStartMonitor:      r.startMonitor,
		rpc.ActionStopMonitor:       r.stopMonitor,
		rpc.ActionListMonitors:      r.listMonitors,
		rpc.ActionGetMonitor:        r.getMonitor,
		rpc.ActionCreateMonitor:     r.createMonitor,
		rpc.ActionUpdateMonitor:     r.updateMonitor,
		rpc.ActionDeleteMonitor:     r.deleteMonitor,
		rpc.ActionStartSpace:        r.startSpace,
		rpc.ActionStopSpace:         r.stopSpace,
		rpc.ActionListSpaces:        r.listSpaces,
		rpc.ActionGetSpace:          r.getSpace,
		rpc.ActionCreateSpace:       r.createSpace,
		rpc.ActionUpdateSpace:       r.updateSpace,
		rpc.ActionDeleteSpace:       r.deleteSpace,
		rpc.ActionGetMonitorResults: r.getMonitorResults,
		rpc.ActionGetSpaceResults:   r.getSpaceResults,
		rpc.ActionStatus:            r.status,
		rpc.ActionGetJobStatus:      r.getJobStatus,
		rpc.ActionRunJobManually:    r.runJobManually,
		rpc.ActionGetCleanupPreview: r.getCleanupPreview,
		rpc.ActionReloadEmailConfig: r.reloadEmailConfig,
	}
	return r
}

// Handle implements rpc.Handler. It recovers from any panic a handler
// raises so a single bad request can never take the connection-accepting
// goroutine down with it (spec §7: "the control server catches all
// exceptions at the connection boundary").
func (r *Router) Handle(req *rpc.Request) (resp *rpc.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = rpc.ErrorResponse(fmt.Sprintf("internal error: %v", rec))
		}
	}()

	handler, ok := r.routes[req.Action]
	if !ok {
		return rpc.ErrorResponse("unknown action: " + req.Action)
	}
	return handler(req)
}

// errorResponse renders err as an {status: error} envelope. Every sentinel
// error type in internal/types carries a plain message, so no type
// switch is needed to pick the wording the client sees.
func errorResponse(err error) *rpc.Response {
	return rpc.ErrorResponse(err.Error())
}

func success(payload map[string]interface{}) *rpc.Response {
	return rpc.SuccessResponse(payload)
}

// currentConfig returns a snapshot of the router's held config.
func (r *Router) currentConfig() *configfile.Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg
}

func monitorToMap(m *types.Monitor, running bool) map[string]interface{} {
	out := map[string]interface{}{
		"id":                     m.ID,
		"space_id":               m.SpaceID,
		"name":                   m.Name,
		"monitor_type":           string(m.MonitorType),
		"status":                 string(m.Status),
		"check_interval_seconds": m.CheckIntervalSeconds,
		"created_at":             m.CreatedAt,
		"updated_at":             m.UpdatedAt,
		"running":                running,
	}
	if m.LastCheckedAt != nil {
		out["last_checked_at"] = *m.LastCheckedAt
	}
	if m.LastHealthyAt != nil {
		out["last_healthy_at"] = *m.LastHealthyAt
	}
	if m.URL != nil {
		out["url_config"] = m.URL
	}
	if m.DB != nil {
		out["db_config"] = m.DB
	}
	return out
}

func spaceToMap(sp *types.Space) map[string]interface{} {
	return map[string]interface{}{
		"id":                  sp.ID,
		"name":                sp.Name,
		"description":         sp.Description,
		"notification_emails": sp.NotificationEmails,
		"created_at":          sp.CreatedAt,
		"updated_at":          sp.UpdatedAt,
	}
}

func resultToMap(res *types.MonitorResult) map[string]interface{} {
	return map[string]interface{}{
		"id":               res.ID,
		"monitor_id":       res.MonitorID,
		"space_id":         res.SpaceID,
		"monitor_type":     string(res.MonitorType),
		"timestamp":        res.Timestamp,
		"status":           string(res.Status),
		"response_time_ms": res.ResponseTimeMs,
		"failed_checks":    res.FailedChecks,
		"check_list":       res.CheckList,
		"details":          res.Details,
	}
}
