package control

import (
	"context"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/types"
)

const defaultResultsLimit = 10

func (r *Router) getMonitorResults(req *rpc.Request) *rpc.Response {
	var payload struct {
		monitorLookup
		Limit int `json:"limit"`
	}
	payload.Limit = defaultResultsLimit
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.MonitorID == "" && payload.MonitorName == "" {
		return errorResponse(types.NewValidationError("monitor_id or monitor_name required"))
	}

	m, err := r.resolveMonitor(payload.monitorLookup)
	if err != nil {
		return errorResponse(err)
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = defaultResultsLimit
	}

	results, err := r.st.GetResultsByMonitorID(context.Background(), m.ID, limit)
	if err != nil {
		return errorResponse(types.NewStoreError("get_results_by_monitor_id", err))
	}
	out := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		out = append(out, resultToMap(res))
	}
	return success(map[string]interface{}{"results": out})
}

func (r *Router) getSpaceResults(req *rpc.Request) *rpc.Response {
	var payload struct {
		spaceLookup
		Limit int `json:"limit"`
	}
	payload.Limit = defaultResultsLimit
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.SpaceID == "" && payload.SpaceName == "" {
		return errorResponse(types.NewValidationError("space_id or space_name required"))
	}

	sp, err := r.resolveSpace(payload.spaceLookup)
	if err != nil {
		return errorResponse(err)
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = defaultResultsLimit
	}

	results, err := r.st.GetResultsBySpaceID(context.Background(), sp.ID, limit)
	if err != nil {
		return errorResponse(types.NewStoreError("get_results_by_space_id", err))
	}
	out := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		out = append(out, resultToMap(res))
	}
	return success(map[string]interface{}{"results": out})
}
