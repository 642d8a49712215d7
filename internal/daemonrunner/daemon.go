package daemonrunner

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/onbao165/webmonitor/internal/configfile"
	"github.com/onbao165/webmonitor/internal/control"
	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/lockfile"
	"github.com/onbao165/webmonitor/internal/metrics"
	"github.com/onbao165/webmonitor/internal/notify"
	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/onbao165/webmonitor/internal/scheduler"
	"github.com/onbao165/webmonitor/internal/store/sqlite"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Daemon is the long-running webmond process: it owns the sqlite store, the
// monitor scheduler, and the control-protocol socket (spec §4.8/§9).
type Daemon struct {
	cfg  Config
	log  *logger
	logF *lumberjack.Logger
	lock *lockfile.Lock

	router        *control.Router
	sched         *scheduler.Scheduler
	server        *rpc.Server
	metricsServer *http.Server

	// Version is the daemon's build version, compared against client
	// versions over the control protocol (internal/rpc/version.go).
	Version string
}

// New creates a Daemon from cfg, filling in any unset paths from DataDir.
func New(cfg Config, version string) *Daemon {
	return &Daemon{cfg: cfg.withDefaults(), Version: version}
}

// Start acquires the daemon lock, opens the store, wires the scheduler and
// control router, and blocks serving the control socket until a shutdown
// signal arrives or Stop is called.
func (d *Daemon) Start() error {
	if err := os.MkdirAll(d.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	d.logF, d.log = d.setupLogger()
	defer func() { _ = d.logF.Close() }()

	lockfile.RemoveStalePIDFile(d.cfg.PIDFile)
	lock, err := lockfile.Acquire(d.cfg.LockFile, lockfile.Info{
		PID:       os.Getpid(),
		Version:   d.Version,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		if err == lockfile.ErrLocked {
			d.log.log("daemon already running (lock held), exiting")
		} else {
			d.log.log("error acquiring daemon lock: %v", err)
		}
		return err
	}
	d.lock = lock
	defer func() { _ = d.lock.Close() }()
	defer func() { _ = os.Remove(d.cfg.PIDFile) }()

	if err := lockfile.EnsurePIDFileCorrect(d.cfg.PIDFile); err != nil {
		d.log.log("warning: failed to write PID file: %v", err)
	}

	d.log.log("webmond %s starting, data dir %s", d.Version, d.cfg.DataDir)

	cfg, err := configfile.Load(d.cfg.DataDir)
	if err != nil {
		d.log.log("error: cannot load config: %v", err)
		return fmt.Errorf("loading config: %w", err)
	}

	box, err := openBox(cfg)
	if err != nil {
		d.log.log("error: cannot open encryption box: %v", err)
		return fmt.Errorf("opening encryption box: %w", err)
	}

	dbPath := filepath.Join(d.cfg.DataDir, "webmond.db")
	st, err := sqlite.New(dbPath)
	if err != nil {
		d.log.log("error: cannot open database: %v", err)
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = st.Close() }()
	d.log.log("database opened: %s", dbPath)

	password, err := cfg.DecryptedPassword(box)
	if err != nil {
		d.log.log("warning: cannot decrypt smtp password: %v", err)
	}
	sender := notify.NewSender(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: password,
		FromName: cfg.Email.FromName,
	}, d.log.log)

	d.sched = scheduler.New(st, box, sender, scheduler.Config{
		HealthAlertsEnabled:      cfg.HealthAlerts.Enabled,
		HealthAlertCheckInterval: intervalOr(d.cfg.HealthAlertCheckInterval, time.Duration(cfg.HealthAlerts.CheckIntervalMinutes)*time.Minute),
		UnhealthyThresholdHours:  cfg.HealthAlerts.UnhealthyThresholdHours,
		DataCleanupEnabled:       cfg.DataCleanup.Enabled,
		CleanupInterval:          intervalOr(d.cfg.CleanupInterval, time.Duration(cfg.DataCleanup.CleanupIntervalHours)*time.Hour),
		KeepHealthyDays:          cfg.DataCleanup.KeepHealthyResultsDays,
		KeepUnhealthyDays:        cfg.DataCleanup.KeepUnhealthyResultsDays,
	}, d.log.log)
	d.sched.Start()
	defer d.sched.StopScheduler()

	d.router = control.New(st, d.sched, box, cfg, d.cfg.DataDir, d.log.log)

	if d.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		d.metricsServer = &http.Server{Addr: d.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.log.log("metrics server error: %v", err)
			}
		}()
		d.log.log("metrics server listening: %s", d.cfg.MetricsAddr)
	}

	rpc.DaemonVersion = d.Version
	d.server = rpc.NewServer(d.cfg.SocketPath, d.router.Handle)

	serverErrChan := make(chan error, 1)
	go func() {
		d.log.log("starting control server: %s", d.cfg.SocketPath)
		serverErrChan <- d.server.Start()
	}()

	select {
	case err := <-serverErrChan:
		d.log.log("control server failed to start: %v", err)
		return err
	case <-waitReady(d.server, 5*time.Second):
		d.log.log("control server ready")
	}

	return d.runSignalLoop(serverErrChan)
}

// waitReady adapts Server.WaitReady's blocking bool return into a channel
// so it composes with the server's error channel in a select.
func waitReady(server *rpc.Server, timeout time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		server.WaitReady(timeout)
		close(ch)
	}()
	return ch
}

func (d *Daemon) runSignalLoop(serverErrChan chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, daemonSignals...)
	defer signal.Stop(sigChan)

	for {
		select {
		case err := <-serverErrChan:
			if err != nil {
				d.log.log("control server error: %v", err)
			}
			return err
		case sig := <-sigChan:
			if isReloadSignal(sig) {
				d.log.log("received SIGHUP, reloading configuration")
				if err := d.router.ReloadConfig(); err != nil {
					d.log.log("error reloading configuration: %v", err)
				} else {
					d.log.log("configuration reloaded")
				}
				continue
			}
			d.log.log("received signal: %v, shutting down", sig)
			return d.Stop()
		}
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	if d.metricsServer != nil {
		_ = d.metricsServer.Close()
	}
	if d.server != nil {
		return d.server.Stop()
	}
	return nil
}

func openBox(cfg *configfile.Config) (*cryptobox.Box, error) {
	key, err := cryptobox.DecodeKey(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	return cryptobox.NewBox(key)
}

func intervalOr(override, fallback time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return fallback
}
