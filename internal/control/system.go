package control

import (
	"fmt"

	"github.com/onbao165/webmonitor/internal/configfile"
	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/notify"
	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/types"
)

// status reports the running monitors known to the scheduler (spec §6.1).
func (r *Router) status(req *rpc.Request) *rpc.Response {
	running := r.sched.ListRunning("", "")
	monitors := make([]map[string]interface{}, 0, len(running))
	for _, m := range running {
		monitors = append(monitors, monitorToMap(m, true))
	}
	return success(map[string]interface{}{
		"running":        true,
		"total_monitors": len(running),
		"monitors":       monitors,
	})
}

func (r *Router) getJobStatus(req *rpc.Request) *rpc.Response {
	jobs := r.sched.GetSystemJobStatus()
	return success(map[string]interface{}{"jobs": jobs})
}

// jobNameAliases maps CLI-facing job names to the scheduler's internal
// names, matching SystemCommandHandler._convert_job_name.
var jobNameAliases = map[string]string{
	"health-alerts": "health_alert",
	"health_alert":  "health_alert",
	"data-cleanup":  "data_cleanup",
	"data_cleanup":  "data_cleanup",
}

func convertJobName(cliName string) string {
	if internal, ok := jobNameAliases[cliName]; ok {
		return internal
	}
	return cliName
}

func (r *Router) runJobManually(req *rpc.Request) *rpc.Response {
	var payload struct {
		JobName string `json:"job_name"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}
	if payload.JobName == "" {
		return errorResponse(types.NewValidationError("job name required"))
	}

	internalName := convertJobName(payload.JobName)
	ok, err := r.sched.RunSystemJobManually(internalName)
	if err != nil {
		return errorResponse(types.NewNotFoundError("%v", err))
	}
	if !ok {
		return errorResponse(types.NewValidationError("job %s failed or not found", payload.JobName))
	}
	return success(map[string]interface{}{"message": "job " + payload.JobName + " completed successfully"})
}

func (r *Router) getCleanupPreview(req *rpc.Request) *rpc.Response {
	var payload struct {
		KeepHealthyDays   int `json:"keep_healthy_days"`
		KeepUnhealthyDays int `json:"keep_unhealthy_days"`
	}
	if err := req.Unmarshal(&payload); err != nil {
		return errorResponse(types.NewValidationError("invalid request: %v", err))
	}

	cfg := r.currentConfig()
	keepHealthy := payload.KeepHealthyDays
	if keepHealthy <= 0 {
		keepHealthy = cfg.DataCleanup.KeepHealthyResultsDays
	}
	keepUnhealthy := payload.KeepUnhealthyDays
	if keepUnhealthy <= 0 {
		keepUnhealthy = cfg.DataCleanup.KeepUnhealthyResultsDays
	}

	preview, err := r.sched.GetCleanupPreview(keepHealthy, keepUnhealthy)
	if err != nil {
		return errorResponse(types.NewStoreError("get_cleanup_preview", err))
	}
	return success(map[string]interface{}{"preview": preview})
}

// reloadEmailConfig re-reads config.json from disk and rebuilds the
// scheduler's SMTP sender from it, matching command_handler.py's
// reload_email_config (and the daemon's SIGHUP handler, spec §7).
func (r *Router) reloadEmailConfig(req *rpc.Request) *rpc.Response {
	if err := r.ReloadConfig(); err != nil {
		return errorResponse(types.NewValidationError("failed to reload config: %v", err))
	}
	return success(map[string]interface{}{"message": "Email configuration reloaded successfully"})
}

// ReloadConfig re-reads config.json from r.dataDir and swaps a freshly built
// SMTP sender into the scheduler. Exported so the daemon's SIGHUP handler
// can share this path with the reload_email_config action.
func (r *Router) ReloadConfig() error {
	cfg, err := configfile.Load(r.dataDir)
	if err != nil {
		return err
	}

	box := r.box
	if cfg.Security.EncryptionKey != "" {
		if key, err := cryptobox.DecodeKey(cfg.Security.EncryptionKey); err == nil {
			if b, err := cryptobox.NewBox(key); err == nil {
				box = b
			}
		}
	}

	password, err := cfg.DecryptedPassword(box)
	if err != nil {
		return fmt.Errorf("decrypting smtp password: %w", err)
	}

	sender := notify.NewSender(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: password,
		FromName: cfg.Email.FromName,
	}, r.log)
	r.sched.SetSender(sender)

	r.cfgMu.Lock()
	r.cfg = cfg
	r.cfgMu.Unlock()

	return nil
}
