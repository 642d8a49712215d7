package control

import (
	"context"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/types"
)

type spaceLookup struct {
	SpaceID   string `json:"space_id"`
	SpaceName string `json:"space_name"`
}

func (r *Router) resolveSpace(l spaceLookup) (*types.Space, error) {
	ctx := context.Background()
	if l.SpaceID != "" {
		sp, err := r.st.GetSpaceByID(ctx, l.SpaceID)
		if err != nil {
			return nil, types.NewStoreError("get_space", err)
		}
		if sp == nil {
			return nil, types.NewNotFoundError("space not found: %s", l.SpaceID)
		}
		return sp, nil
	}
	if l.SpaceName == "" {
		return nil, types.NewValidationError("space_id or space_name required")
	}
	sp, err := r.st.GetSpaceByName(ctx, l.SpaceName)
	if err != nil {
		return nil, types.NewStoreError("get_space_by_name", err)
	}
	if sp == nil {
		return nil, types.NewNotFoundError("space with name %q not found", l.SpaceName)
	}
	return sp, nil
}

func (r *Router) startSpace(req *rpc.Request) *rpc.Response {
	var payload spaceLookup
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	sp, err := r.resolveSpace(payload)
	if err != nil {
		return errorResponse(err)
	}
	started, err := r.sched.StartAllInSpace(sp.ID)
	if err != nil {
		return errorResponse(types.NewStoreError("start_all_in_space", err))
	}
	return success(map[string]interface{}{
		"message": "all monitors in space " + sp.Name + " started",
		"started": started,
	})
}

func (r *Router) stopSpace(req *rpc.Request) *rpc.Response {
	var payload spaceLookup
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	sp, err := r.resolveSpace(payload)
	if err != nil {
		return errorResponse(err)
	}
	stopped := r.sched.StopAllInSpace(sp.ID)
	return success(map[string]interface{}{
		"message": "all monitors in space " + sp.Name + " stopped",
		"stopped": stopped,
	})
}

func (r *Router) listSpaces(req *rpc.Request) *rpc.Response {
	spaces, err := r.st.ListSpaces(context.Background())
	if err != nil {
		return errorResponse(types.NewStoreError("list_spaces", err))
	}
	out := make([]map[string]interface{}, 0, len(spaces))
	for _, sp := range spaces {
		out = append(out, spaceToMap(sp))
	}
	return success(map[string]interface{}{"spaces": out})
}

func (r *Router) getSpace(req *rpc.Request) *rpc.Response {
	var payload spaceLookup
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.SpaceID == "" {
		return errorResponse(types.NewValidationError("space_id required"))
	}
	sp, err := r.resolveSpace(payload)
	if err != nil {
		return errorResponse(err)
	}
	return success(map[string]interface{}{"space": spaceToMap(sp)})
}

type spaceInput struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	NotificationEmails []string `json:"notification_emails"`
}

func (r *Router) createSpace(req *rpc.Request) *rpc.Response {
	var payload struct {
		Space spaceInput `json:"space"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	in := payload.Space
	if in.Name == "" {
		return errorResponse(types.NewValidationError("space name required"))
	}

	ctx := context.Background()
	existing, err := r.st.GetSpaceByName(ctx, in.Name)
	if err != nil {
		return errorResponse(types.NewStoreError("get_space_by_name", err))
	}
	if existing != nil {
		return errorResponse(types.NewConflictError("space name already exists"))
	}

	sp := types.NewSpace(in.Name, in.Description, in.NotificationEmails)
	if in.ID != "" {
		sp.ID = in.ID
	}
	if err := sp.Validate(); err != nil {
		return errorResponse(types.NewValidationError("%v", err))
	}
	if err := r.st.SaveSpace(ctx, sp); err != nil {
		return errorResponse(types.NewStoreError("save_space", err))
	}
	return success(map[string]interface{}{
		"message": "space " + sp.Name + " created",
		"space":   spaceToMap(sp),
	})
}

func (r *Router) updateSpace(req *rpc.Request) *rpc.Response {
	var payload struct {
		Space spaceInput `json:"space"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	in := payload.Space
	if in.ID == "" {
		return errorResponse(types.NewValidationError("space id required"))
	}

	ctx := context.Background()
	sp, err := r.st.GetSpaceByID(ctx, in.ID)
	if err != nil {
		return errorResponse(types.NewStoreError("get_space", err))
	}
	if sp == nil {
		return errorResponse(types.NewNotFoundError("space not found: %s", in.ID))
	}

	if in.Name != "" && in.Name != sp.Name {
		existing, err := r.st.GetSpaceByName(ctx, in.Name)
		if err != nil {
			return errorResponse(types.NewStoreError("get_space_by_name", err))
		}
		if existing != nil && existing.ID != sp.ID {
			return errorResponse(types.NewConflictError("space name already exists"))
		}
		sp.Name = in.Name
	}
	if in.Description != "" {
		sp.Description = in.Description
	}
	if in.NotificationEmails != nil {
		sp.NotificationEmails = in.NotificationEmails
	}

	if err := sp.Validate(); err != nil {
		return errorResponse(types.NewValidationError("%v", err))
	}
	if err := r.st.SaveSpace(ctx, sp); err != nil {
		return errorResponse(types.NewStoreError("save_space", err))
	}
	return success(map[string]interface{}{
		"message": "space " + sp.Name + " updated",
		"space":   spaceToMap(sp),
	})
}

func (r *Router) deleteSpace(req *rpc.Request) *rpc.Response {
	var payload struct {
		SpaceID string `json:"space_id"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.SpaceID == "" {
		return errorResponse(types.NewValidationError("space_id required"))
	}

	r.sched.StopAllInSpace(payload.SpaceID)

	if err := r.st.DeleteSpace(context.Background(), payload.SpaceID); err != nil {
		return errorResponse(types.NewStoreError("delete_space", err))
	}
	return success(map[string]interface{}{"message": "space " + payload.SpaceID + " deleted"})
}
