// Package scheduler owns the daemon's single tick loop: one job per running
// monitor plus the health_alert and data_cleanup system jobs, dispatched to
// a bounded worker pool so a slow probe never blocks the ticker.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/metrics"
	"github.com/onbao165/webmonitor/internal/notify"
	"github.com/onbao165/webmonitor/internal/probe/dbprobe"
	"github.com/onbao165/webmonitor/internal/probe/httpprobe"
	"github.com/onbao165/webmonitor/internal/retention"
	"github.com/onbao165/webmonitor/internal/store"
	"github.com/onbao165/webmonitor/internal/types"
)

const tickInterval = 1 * time.Second

// Logger is the minimal logging hook the scheduler needs.
type Logger func(format string, args ...interface{})

// SystemJobStatus mirrors the original BaseJob accounting: name, last run,
// run count, error count, derived success rate.
type SystemJobStatus struct {
	Name        string     `json:"name"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	RunCount    int64      `json:"run_count"`
	ErrorCount  int64      `json:"error_count"`
	SuccessRate float64    `json:"success_rate"`
	Enabled     bool       `json:"enabled"`
}

type systemJob struct {
	name     string
	interval time.Duration
	enabled  bool
	execute  func() bool

	mu         sync.Mutex
	lastRun    *time.Time
	nextFire   time.Time
	runCount   int64
	errorCount int64
	running    atomic.Bool
}

func (j *systemJob) run(log Logger) bool {
	if !j.running.CompareAndSwap(false, true) {
		return false
	}
	defer j.running.Store(false)

	log("starting job: %s", j.name)
	start := time.Now()
	success := j.execute()
	duration := time.Since(start)

	j.mu.Lock()
	now := time.Now()
	j.lastRun = &now
	j.runCount++
	if !success {
		j.errorCount++
	}
	j.mu.Unlock()

	if success {
		log("job %s completed successfully in %.2fs", j.name, duration.Seconds())
	} else {
		log("job %s completed with errors in %.2fs", j.name, duration.Seconds())
	}
	return success
}

func (j *systemJob) status() SystemJobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	var rate float64
	if j.runCount > 0 {
		rate = float64(j.runCount-j.errorCount) / float64(j.runCount)
	}
	return SystemJobStatus{
		Name:        j.name,
		LastRun:     j.lastRun,
		RunCount:    j.runCount,
		ErrorCount:  j.errorCount,
		SuccessRate: rate,
		Enabled:     j.enabled,
	}
}

type monitorJob struct {
	monitor  *types.Monitor
	interval time.Duration
	nextFire time.Time
	running  atomic.Bool
}

// Config configures the system jobs' cadence and enablement, mirroring the
// on-disk health_alerts/data_cleanup sections (spec §6.2).
type Config struct {
	HealthAlertsEnabled      bool
	HealthAlertCheckInterval time.Duration
	UnhealthyThresholdHours  float64

	DataCleanupEnabled bool
	CleanupInterval    time.Duration
	KeepHealthyDays    int
	KeepUnhealthyDays  int

	WorkerCount int
}

// Scheduler owns the tick loop, the monitor job table, and the system jobs.
type Scheduler struct {
	st  store.Store
	box *cryptobox.Box
	log Logger

	senderMu sync.RWMutex
	sender   *notify.Sender

	workers chan struct{}

	mu          sync.RWMutex
	monitorJobs map[string]*monitorJob
	systemJobs  map[string]*systemJob

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds a Scheduler with the system jobs registered per cfg. Call
// Start to begin the tick loop.
func New(st store.Store, box *cryptobox.Box, sender *notify.Sender, cfg Config, log Logger) *Scheduler {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 20
	}
	s := &Scheduler{
		st:          st,
		box:         box,
		sender:      sender,
		log:         log,
		workers:     make(chan struct{}, workers),
		monitorJobs: make(map[string]*monitorJob),
		systemJobs:  make(map[string]*systemJob),
		stopChan:    make(chan struct{}),
	}
	s.registerSystemJobs(cfg)
	return s
}

func (s *Scheduler) registerSystemJobs(cfg Config) {
	if cfg.HealthAlertsEnabled {
		interval := cfg.HealthAlertCheckInterval
		if interval <= 0 {
			interval = 60 * time.Minute
		}
		s.systemJobs["health_alert"] = &systemJob{
			name:     "health_alert",
			interval: interval,
			enabled:  true,
			nextFire: time.Now().Add(interval),
			execute:  func() bool { return s.runHealthAlert(cfg.UnhealthyThresholdHours) },
		}
		s.log("health alert job scheduled to run every %s", interval)
	}
	if cfg.DataCleanupEnabled {
		interval := cfg.CleanupInterval
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		s.systemJobs["data_cleanup"] = &systemJob{
			name:     "data_cleanup",
			interval: interval,
			enabled:  true,
			nextFire: time.Now().Add(interval),
			execute:  func() bool { return s.runDataCleanup(cfg.KeepHealthyDays, cfg.KeepUnhealthyDays) },
		}
		s.log("data cleanup job scheduled to run every %s", interval)
	}
}

// SetSender hot-swaps the SMTP sender, used by the reload_email_config
// control action to pick up on-disk config changes without a restart.
func (s *Scheduler) SetSender(sender *notify.Sender) {
	s.senderMu.Lock()
	s.sender = sender
	s.senderMu.Unlock()
}

func (s *Scheduler) currentSender() *notify.Sender {
	s.senderMu.RLock()
	defer s.senderMu.RUnlock()
	return s.sender
}

// Start launches the tick loop in the background.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.tickLoop()
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := time.Now()

	s.mu.RLock()
	dueMonitors := make([]*monitorJob, 0)
	for _, job := range s.monitorJobs {
		if !now.Before(job.nextFire) && !job.running.Load() {
			dueMonitors = append(dueMonitors, job)
		}
	}
	dueSystem := make([]*systemJob, 0)
	for _, job := range s.systemJobs {
		job.mu.Lock()
		due := !now.Before(job.nextFire)
		job.mu.Unlock()
		if due && !job.running.Load() {
			dueSystem = append(dueSystem, job)
		}
	}
	s.mu.RUnlock()

	for _, job := range dueMonitors {
		job.nextFire = now.Add(job.interval)
		j := job
		s.dispatch(func() { s.runMonitor(j) })
	}
	for _, job := range dueSystem {
		job.mu.Lock()
		job.nextFire = now.Add(job.interval)
		job.mu.Unlock()
		j := job
		s.dispatch(func() { j.run(s.log) })
	}
}

// dispatch runs fn on the bounded worker pool, blocking until a slot frees
// if the pool is saturated.
func (s *Scheduler) dispatch(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.workers <- struct{}{}
		defer func() { <-s.workers }()
		fn()
	}()
}

// runMonitor executes one probe-and-persist cycle for a monitor job,
// non-reentrant per monitor (spec §4.5 firing policy).
func (s *Scheduler) runMonitor(job *monitorJob) {
	if !job.running.CompareAndSwap(false, true) {
		return
	}
	defer job.running.Store(false)

	ctx := context.Background()
	m := job.monitor
	s.log("running monitor check: %s (%s)", m.Name, m.ID)

	var result *types.MonitorResult
	switch m.MonitorType {
	case types.MonitorTypeURL:
		result = httpprobe.Check(m)
	case types.MonitorTypeDatabase:
		result = dbprobe.Check(m, s.box)
	default:
		s.log("unknown monitor type for %s: %s", m.Name, m.MonitorType)
		return
	}

	now := time.Now()
	m.MarkChecked(now, result.Status == types.StatusHealthy)
	m.Status = result.Status
	metrics.RecordProbe(string(result.Status))

	previous, err := s.st.GetLatestResult(ctx, m.ID)
	if err != nil {
		s.log("failed to fetch previous result for %s: %v", m.Name, err)
		previous = nil
	}

	if err := s.st.SaveResult(ctx, result); err != nil {
		s.log("failed to save result for %s: %v", m.Name, err)
	}
	if err := s.st.SaveMonitor(ctx, m); err != nil {
		s.log("failed to save monitor %s: %v", m.Name, err)
	}

	s.log("monitor check completed: %s (%s) - status: %s", m.Name, m.ID, result.Status)

	if notify.ShouldNotify(result, previous) {
		space, err := s.st.GetSpaceByID(ctx, m.SpaceID)
		if err != nil {
			s.log("failed to load space for notification: %v", err)
			return
		}
		if space != nil && len(space.NotificationEmails) > 0 {
			if sender := s.currentSender(); sender != nil {
				sent := sender.SendResultEmail(space, result)
				metrics.RecordNotification("transition", sent)
				if sent {
					s.log("status change notification sent for monitor: %s", m.Name)
				}
			}
		}
	}
}

// Schedule registers monitor for periodic execution, running it once
// immediately (spec §4.5 contract).
func (s *Scheduler) Schedule(m *types.Monitor) error {
	s.mu.Lock()
	if _, exists := s.monitorJobs[m.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("monitor %s is already scheduled", m.ID)
	}
	interval := time.Duration(m.CheckIntervalSeconds) * time.Second
	job := &monitorJob{
		monitor:  m,
		interval: interval,
		nextFire: time.Now().Add(interval),
	}
	s.monitorJobs[m.ID] = job
	s.mu.Unlock()

	m.Status = types.StatusUnknown
	m.UpdatedAt = time.Now()
	if err := s.st.SaveMonitor(context.Background(), m); err != nil {
		s.log("failed to save monitor %s: %v", m.Name, err)
	}

	s.log("scheduled monitor: %s (%s) - interval: %ds", m.Name, m.ID, m.CheckIntervalSeconds)
	s.dispatch(func() { s.runMonitor(job) })
	return nil
}

// Stop unregisters a monitor job and marks the monitor OFFLINE.
func (s *Scheduler) Stop(monitorID string) error {
	s.mu.Lock()
	if _, exists := s.monitorJobs[monitorID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("monitor %s is not scheduled", monitorID)
	}
	delete(s.monitorJobs, monitorID)
	s.mu.Unlock()

	s.markOffline(monitorID)
	s.log("stopped monitor: %s", monitorID)
	return nil
}

func (s *Scheduler) markOffline(monitorID string) {
	ctx := context.Background()
	m, err := s.st.GetMonitorByID(ctx, monitorID)
	if err != nil || m == nil {
		return
	}
	m.Status = types.StatusOffline
	m.UpdatedAt = time.Now()
	if err := s.st.SaveMonitor(ctx, m); err != nil {
		s.log("failed to save monitor %s: %v", monitorID, err)
	}
}

// Reschedule cancels and re-adds a monitor job at its current interval,
// picking up any change to check_interval_seconds.
func (s *Scheduler) Reschedule(m *types.Monitor) error {
	s.mu.Lock()
	if _, exists := s.monitorJobs[m.ID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("monitor %s is not scheduled", m.ID)
	}
	interval := time.Duration(m.CheckIntervalSeconds) * time.Second
	job := &monitorJob{
		monitor:  m,
		interval: interval,
		nextFire: time.Now().Add(interval),
	}
	s.monitorJobs[m.ID] = job
	s.mu.Unlock()

	m.Status = types.StatusUnknown
	m.UpdatedAt = time.Now()
	if err := s.st.SaveMonitor(context.Background(), m); err != nil {
		s.log("failed to save monitor %s: %v", m.Name, err)
	}
	s.log("rescheduled monitor: %s (%s) - interval: %ds", m.Name, m.ID, m.CheckIntervalSeconds)
	return nil
}

// ListRunning returns a snapshot of registered monitors, optionally filtered
// by space and/or monitor type.
func (s *Scheduler) ListRunning(spaceID string, monitorType types.MonitorType) []*types.Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Monitor, 0, len(s.monitorJobs))
	for _, job := range s.monitorJobs {
		if spaceID != "" && job.monitor.SpaceID != spaceID {
			continue
		}
		if monitorType != "" && job.monitor.MonitorType != monitorType {
			continue
		}
		out = append(out, job.monitor)
	}
	return out
}

// IsRunning reports whether monitorID currently has a registered job.
func (s *Scheduler) IsRunning(monitorID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.monitorJobs[monitorID]
	return ok
}

// StartAllInSpace schedules every monitor in spaceID not already running.
func (s *Scheduler) StartAllInSpace(spaceID string) (int, error) {
	monitors, err := s.st.GetMonitorsBySpaceID(context.Background(), spaceID)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, m := range monitors {
		if s.IsRunning(m.ID) {
			continue
		}
		if err := s.Schedule(m); err != nil {
			s.log("failed to start monitor %s: %v", m.Name, err)
			continue
		}
		started++
	}
	s.log("started %d monitors in space: %s", started, spaceID)
	return started, nil
}

// StopAllInSpace unregisters every running monitor job in spaceID.
func (s *Scheduler) StopAllInSpace(spaceID string) int {
	s.mu.Lock()
	var ids []string
	for id, job := range s.monitorJobs {
		if job.monitor.SpaceID == spaceID {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(s.monitorJobs, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.markOffline(id)
	}
	s.log("stopped all monitors in space: %s", spaceID)
	return len(ids)
}

// StopAll unregisters every running monitor job.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.monitorJobs))
	for id := range s.monitorJobs {
		ids = append(ids, id)
	}
	s.monitorJobs = make(map[string]*monitorJob)
	s.mu.Unlock()

	for _, id := range ids {
		s.markOffline(id)
	}
	s.log("stopped all monitors")
	return len(ids)
}

// GetSystemJobStatus returns run-count/error-count/success-rate accounting
// for every registered system job.
func (s *Scheduler) GetSystemJobStatus() []SystemJobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SystemJobStatus, 0, len(s.systemJobs))
	for _, job := range s.systemJobs {
		out = append(out, job.status())
	}
	return out
}

// RunSystemJobManually runs name (health_alert or data_cleanup) synchronously
// and returns its success flag, matching the control channel contract.
func (s *Scheduler) RunSystemJobManually(name string) (bool, error) {
	s.mu.RLock()
	job, ok := s.systemJobs[name]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("system job not found: %s", name)
	}
	s.log("manually running system job: %s", name)
	return job.run(s.log), nil
}

// GetCleanupPreview exposes the retention dry-run as a read-only query.
func (s *Scheduler) GetCleanupPreview(keepHealthyDays, keepUnhealthyDays int) (*store.CleanupPreview, error) {
	return retention.Preview(context.Background(), s.st, keepHealthyDays, keepUnhealthyDays, retention.Logger(s.log))
}

func (s *Scheduler) runHealthAlert(thresholdHours float64) bool {
	sender := s.currentSender()
	if sender == nil || !sender.IsConfigured() {
		s.log("email not configured, skipping health alerts")
		metrics.RecordSystemJob("health_alert", true)
		return true
	}

	ctx := context.Background()
	monitors, err := s.st.GetUnhealthyMonitors(ctx, thresholdHours)
	if err != nil {
		s.log("health alert job failed: %v", err)
		metrics.RecordSystemJob("health_alert", false)
		return false
	}
	if len(monitors) == 0 {
		s.log("no monitors found that have been unhealthy for extended periods")
		metrics.RecordSystemJob("health_alert", true)
		return true
	}

	bySpace := make(map[string][]*types.Monitor)
	for _, m := range monitors {
		bySpace[m.SpaceID] = append(bySpace[m.SpaceID], m)
	}

	alertsSent := 0
	for spaceID, ms := range bySpace {
		space, err := s.st.GetSpaceByID(ctx, spaceID)
		if err != nil || space == nil || len(space.NotificationEmails) == 0 {
			continue
		}
		sent := sender.SendHealthAlert(space, ms, thresholdHours)
		metrics.RecordNotification("health_alert", sent)
		if sent {
			alertsSent++
		} else {
			s.log("failed to send health alert for space: %s", space.Name)
		}
	}
	s.log("health alert job completed, sent %d alerts for %d unhealthy monitors", alertsSent, len(monitors))
	metrics.RecordSystemJob("health_alert", true)
	return true
}

func (s *Scheduler) runDataCleanup(keepHealthyDays, keepUnhealthyDays int) bool {
	preview, previewErr := retention.Preview(context.Background(), s.st, keepHealthyDays, keepUnhealthyDays, retention.Logger(s.log))
	ok := retention.Run(context.Background(), s.st, keepHealthyDays, keepUnhealthyDays, retention.Logger(s.log))
	metrics.RecordSystemJob("data_cleanup", ok)
	if ok && previewErr == nil && preview != nil {
		metrics.RecordRetentionDeleted(preview.HealthyToDelete + preview.UnhealthyToDelete)
	}
	return ok
}

// StopScheduler signals the tick loop to exit and waits for every in-flight
// job dispatch to drain before returning. Named distinctly from Stop(id) so
// shutting down the whole scheduler can never be confused with unscheduling
// a single monitor.
func (s *Scheduler) StopScheduler() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
