package control

import (
	"context"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/types"
)

// monitorLookup is the payload shape shared by every action that resolves a
// monitor by id or by name (+ optional space scoping), grounded on
// monitor_handler.py's repeated monitor_id/monitor_name/space_id/space_name
// pattern.
type monitorLookup struct {
	MonitorID   string `json:"monitor_id"`
	MonitorName string `json:"monitor_name"`
	SpaceID     string `json:"space_id"`
	SpaceName   string `json:"space_name"`
}

// resolveMonitor finds a monitor by id, or by name scoped to a space (by id
// or name), mirroring the original handler's fallback chain.
func (r *Router) resolveMonitor(l monitorLookup) (*types.Monitor, error) {
	ctx := context.Background()

	if l.MonitorID != "" {
		m, err := r.st.GetMonitorByID(ctx, l.MonitorID)
		if err != nil {
			return nil, types.NewStoreError("get_monitor", err)
		}
		if m == nil {
			return nil, types.NewNotFoundError("monitor not found: %s", l.MonitorID)
		}
		return m, nil
	}

	if l.MonitorName == "" {
		return nil, types.NewValidationError("monitor_id or monitor_name required")
	}

	spaceID := l.SpaceID
	if spaceID == "" && l.SpaceName != "" {
		sp, err := r.st.GetSpaceByName(ctx, l.SpaceName)
		if err != nil {
			return nil, types.NewStoreError("get_space_by_name", err)
		}
		if sp == nil {
			return nil, types.NewNotFoundError("space not found: %s", l.SpaceName)
		}
		spaceID = sp.ID
	}

	m, err := r.st.GetMonitorByName(ctx, l.MonitorName, spaceID)
	if err != nil {
		return nil, types.NewStoreError("get_monitor_by_name", err)
	}
	if m == nil {
		return nil, types.NewNotFoundError("monitor with name %q not found", l.MonitorName)
	}
	return m, nil
}

func (r *Router) startMonitor(req *rpc.Request) *rpc.Response {
	var payload monitorLookup
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	m, err := r.resolveMonitor(payload)
	if err != nil {
		return errorResponse(err)
	}
	if err := r.sched.Schedule(m); err != nil {
		return errorResponse(types.NewConflictError("%v", err))
	}
	return success(map[string]interface{}{"message": "monitor " + m.Name + " started"})
}

func (r *Router) stopMonitor(req *rpc.Request) *rpc.Response {
	var payload monitorLookup
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	m, err := r.resolveMonitor(payload)
	if err != nil {
		return errorResponse(err)
	}
	if err := r.sched.Stop(m.ID); err != nil {
		return errorResponse(types.NewValidationError("%v", err))
	}
	return success(map[string]interface{}{"message": "monitor " + m.Name + " stopped"})
}

func (r *Router) listMonitors(req *rpc.Request) *rpc.Response {
	var payload struct {
		SpaceID string `json:"space_id"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}

	ctx := context.Background()
	monitors, err := r.st.ListMonitors(ctx, payload.SpaceID)
	if err != nil {
		return errorResponse(types.NewStoreError("list_monitors", err))
	}

	out := make([]map[string]interface{}, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, monitorToMap(m, r.sched.IsRunning(m.ID)))
	}
	return success(map[string]interface{}{"monitors": out})
}

func (r *Router) getMonitor(req *rpc.Request) *rpc.Response {
	var payload monitorLookup
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.MonitorID == "" {
		return errorResponse(types.NewValidationError("monitor_id required"))
	}
	m, err := r.resolveMonitor(payload)
	if err != nil {
		return errorResponse(err)
	}
	return success(map[string]interface{}{"monitor": monitorToMap(m, r.sched.IsRunning(m.ID))})
}

// monitorInput is the wire shape of the "monitor" field on create/update
// requests: a flat struct carrying both variants' fields, since the action
// payload doesn't tag which one is populated the way types.Monitor does.
type monitorInput struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	SpaceID              string `json:"space_id"`
	MonitorType          string `json:"monitor_type"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`

	URL                string `json:"url"`
	ExpectedStatusCode int    `json:"expected_status_code"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	CheckSSL           *bool  `json:"check_ssl"`
	FollowRedirects    *bool  `json:"follow_redirects"`
	CheckContent       string `json:"check_content"`

	DBType                   string `json:"db_type"`
	Host                     string `json:"host"`
	Port                     int    `json:"port"`
	Database                 string `json:"database"`
	Username                 string `json:"username"`
	Password                 string `json:"password"`
	ConnectionTimeoutSeconds int    `json:"connection_timeout_seconds"`
	QueryTimeoutSeconds      int    `json:"query_timeout_seconds"`
	TestQuery                string `json:"test_query"`
}

func (r *Router) createMonitor(req *rpc.Request) *rpc.Response {
	var payload struct {
		Monitor monitorInput `json:"monitor"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	in := payload.Monitor
	if in.Name == "" || in.SpaceID == "" {
		return errorResponse(types.NewValidationError("monitor name and space_id required"))
	}

	ctx := context.Background()
	space, err := r.st.GetSpaceByID(ctx, in.SpaceID)
	if err != nil {
		return errorResponse(types.NewStoreError("get_space", err))
	}
	if space == nil {
		return errorResponse(types.NewNotFoundError("space not found: %s", in.SpaceID))
	}
	existing, err := r.st.GetMonitorByName(ctx, in.Name, in.SpaceID)
	if err != nil {
		return errorResponse(types.NewStoreError("get_monitor_by_name", err))
	}
	if existing != nil {
		return errorResponse(types.NewConflictError("monitor name already exists in this space"))
	}

	var m *types.Monitor
	switch types.MonitorType(in.MonitorType) {
	case types.MonitorTypeURL:
		if in.URL == "" {
			return errorResponse(types.NewValidationError("url required for url monitor"))
		}
		cfg := types.URLMonitorConfig{
			URL:                in.URL,
			ExpectedStatusCode: in.ExpectedStatusCode,
			TimeoutSeconds:     in.TimeoutSeconds,
			CheckSSL:           boolOr(in.CheckSSL, true),
			FollowRedirects:    boolOr(in.FollowRedirects, true),
			CheckContent:       in.CheckContent,
		}
		m = types.NewURLMonitor(in.SpaceID, in.Name, cfg)
	case types.MonitorTypeDatabase:
		for field, val := range map[string]string{
			"db_type": in.DBType, "host": in.Host, "database": in.Database, "username": in.Username,
		} {
			if val == "" {
				return errorResponse(types.NewValidationError("%s required for database monitor", field))
			}
		}
		cfg := types.DBMonitorConfig{
			DBType:                   types.DBType(in.DBType),
			Host:                     in.Host,
			Port:                     in.Port,
			Database:                 in.Database,
			Username:                 in.Username,
			ConnectionTimeoutSeconds: in.ConnectionTimeoutSeconds,
			QueryTimeoutSeconds:      in.QueryTimeoutSeconds,
			TestQuery:                in.TestQuery,
		}
		m = types.NewDBMonitor(in.SpaceID, in.Name, cfg)
		if in.Password != "" {
			enc, err := r.box.Encrypt(in.Password)
			if err != nil {
				return errorResponse(&types.CryptoError{Op: "encrypt", Err: err})
			}
			m.DB.EncryptedPassword = enc
		}
	default:
		return errorResponse(types.NewValidationError("invalid monitor_type: %s", in.MonitorType))
	}

	if in.CheckIntervalSeconds > 0 {
		m.CheckIntervalSeconds = in.CheckIntervalSeconds
	}
	if err := m.Validate(); err != nil {
		return errorResponse(types.NewValidationError("%v", err))
	}
	if err := r.st.SaveMonitor(ctx, m); err != nil {
		return errorResponse(types.NewStoreError("save_monitor", err))
	}

	return success(map[string]interface{}{
		"message": "monitor " + m.Name + " created",
		"monitor": monitorToMap(m, false),
	})
}

func (r *Router) updateMonitor(req *rpc.Request) *rpc.Response {
	var payload struct {
		Monitor monitorInput `json:"monitor"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	in := payload.Monitor
	if in.ID == "" {
		return errorResponse(types.NewValidationError("monitor id required"))
	}

	ctx := context.Background()
	m, err := r.st.GetMonitorByID(ctx, in.ID)
	if err != nil {
		return errorResponse(types.NewStoreError("get_monitor", err))
	}
	if m == nil {
		return errorResponse(types.NewNotFoundError("monitor not found: %s", in.ID))
	}

	wasRunning := r.sched.IsRunning(m.ID)
	if wasRunning {
		r.sched.Stop(m.ID)
	}

	if in.Name != "" && in.Name != m.Name {
		existing, err := r.st.GetMonitorByName(ctx, in.Name, m.SpaceID)
		if err != nil {
			return errorResponse(types.NewStoreError("get_monitor_by_name", err))
		}
		if existing != nil && existing.ID != m.ID {
			return errorResponse(types.NewConflictError("monitor name already exists in this space"))
		}
		m.Name = in.Name
	}
	if in.CheckIntervalSeconds > 0 {
		m.CheckIntervalSeconds = in.CheckIntervalSeconds
	}

	switch m.MonitorType {
	case types.MonitorTypeURL:
		if m.URL == nil {
			m.URL = &types.URLMonitorConfig{}
		}
		if in.URL != "" {
			m.URL.URL = in.URL
		}
		if in.ExpectedStatusCode != 0 {
			m.URL.ExpectedStatusCode = in.ExpectedStatusCode
		}
		if in.TimeoutSeconds != 0 {
			m.URL.TimeoutSeconds = in.TimeoutSeconds
		}
		if in.CheckSSL != nil {
			m.URL.CheckSSL = *in.CheckSSL
		}
		if in.FollowRedirects != nil {
			m.URL.FollowRedirects = *in.FollowRedirects
		}
		if in.CheckContent != "" {
			m.URL.CheckContent = in.CheckContent
		}
	case types.MonitorTypeDatabase:
		if m.DB == nil {
			m.DB = &types.DBMonitorConfig{}
		}
		if in.Host != "" {
			m.DB.Host = in.Host
		}
		if in.Port != 0 {
			m.DB.Port = in.Port
		}
		if in.Database != "" {
			m.DB.Database = in.Database
		}
		if in.Username != "" {
			m.DB.Username = in.Username
		}
		if in.Password != "" {
			enc, err := r.box.Encrypt(in.Password)
			if err != nil {
				return errorResponse(&types.CryptoError{Op: "encrypt", Err: err})
			}
			m.DB.EncryptedPassword = enc
		}
		if in.ConnectionTimeoutSeconds != 0 {
			m.DB.ConnectionTimeoutSeconds = in.ConnectionTimeoutSeconds
		}
		if in.QueryTimeoutSeconds != 0 {
			m.DB.QueryTimeoutSeconds = in.QueryTimeoutSeconds
		}
		if in.TestQuery != "" {
			m.DB.TestQuery = in.TestQuery
		}
	}

	if err := m.Validate(); err != nil {
		return errorResponse(types.NewValidationError("%v", err))
	}
	if err := r.st.SaveMonitor(ctx, m); err != nil {
		return errorResponse(types.NewStoreError("save_monitor", err))
	}

	if wasRunning {
		if err := r.sched.Schedule(m); err != nil {
			r.log("failed to restart updated monitor %s: %v", m.Name, err)
		}
	}

	return success(map[string]interface{}{
		"message": "monitor " + m.Name + " updated",
		"monitor": monitorToMap(m, r.sched.IsRunning(m.ID)),
	})
}

func (r *Router) deleteMonitor(req *rpc.Request) *rpc.Response {
	var payload struct {
		MonitorID string `json:"monitor_id"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.MonitorID == "" {
		return errorResponse(types.NewValidationError("monitor_id required"))
	}

	r.sched.Stop(payload.MonitorID)

	if err := r.st.DeleteMonitor(context.Background(), payload.MonitorID); err != nil {
		return errorResponse(types.NewStoreError("delete_monitor", err))
	}
	return success(map[string]interface{}{"message": "monitor " + payload.MonitorID + " deleted"})
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
