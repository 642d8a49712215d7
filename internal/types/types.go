// Package types defines the core data structures for the web monitor daemon.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MonitorType distinguishes the two monitor variants.
type MonitorType string

const (
	MonitorTypeURL      MonitorType = "url"
	MonitorTypeDatabase MonitorType = "database"
)

// IsValid reports whether t is a known monitor type.
func (t MonitorType) IsValid() bool {
	switch t {
	case MonitorTypeURL, MonitorTypeDatabase:
		return true
	}
	return false
}

// MonitorStatus is the current health of a monitor.
type MonitorStatus string

const (
	StatusHealthy   MonitorStatus = "healthy"
	StatusUnhealthy MonitorStatus = "unhealthy"
	StatusUnknown   MonitorStatus = "unknown"
	StatusOffline   MonitorStatus = "offline"
)

// IsValid reports whether s is a known monitor status.
func (s MonitorStatus) IsValid() bool {
	switch s {
	case StatusHealthy, StatusUnhealthy, StatusUnknown, StatusOffline:
		return true
	}
	return false
}

// DBType enumerates the database dialects the DB probe understands.
type DBType string

const (
	DBTypePostgres  DBType = "postgresql"
	DBTypeMySQL     DBType = "mysql"
	DBTypeSQLServer DBType = "sqlserver"
)

// IsValid reports whether t is a dialect the DB probe can dial.
func (t DBType) IsValid() bool {
	switch t {
	case DBTypePostgres, DBTypeMySQL, DBTypeSQLServer:
		return true
	}
	return false
}

// Space is a logical grouping of monitors sharing a notification list.
type Space struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	NotificationEmails []string  `json:"notification_emails,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewSpace builds a Space with a fresh ID and creation timestamp.
func NewSpace(name, description string, notificationEmails []string) *Space {
	now := time.Now()
	return &Space{
		ID:                 uuid.NewString(),
		Name:               name,
		Description:        description,
		NotificationEmails: notificationEmails,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Validate checks required Space fields.
func (s *Space) Validate() error {
	if len(s.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	for _, e := range s.NotificationEmails {
		if len(e) == 0 {
			return fmt.Errorf("notification_emails entries must not be empty")
		}
	}
	return nil
}

// MonitorHeader carries the fields common to every monitor variant.
type MonitorHeader struct {
	ID                   string        `json:"id"`
	SpaceID              string        `json:"space_id"`
	Name                 string        `json:"name"`
	MonitorType          MonitorType   `json:"monitor_type"`
	Status               MonitorStatus `json:"status"`
	CheckIntervalSeconds int           `json:"check_interval_seconds"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	LastCheckedAt        *time.Time    `json:"last_checked_at,omitempty"`
	LastHealthyAt        *time.Time    `json:"last_healthy_at,omitempty"`
}

// Validate checks the fields common to every monitor variant.
func (h *MonitorHeader) Validate() error {
	if len(h.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	if len(h.SpaceID) == 0 {
		return fmt.Errorf("space_id is required")
	}
	if !h.MonitorType.IsValid() {
		return fmt.Errorf("invalid monitor_type: %s", h.MonitorType)
	}
	if h.Status != "" && !h.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", h.Status)
	}
	if h.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be positive (got %d)", h.CheckIntervalSeconds)
	}
	return nil
}

// MarkChecked updates last_checked_at (and, on a healthy outcome,
// last_healthy_at) the way the scheduler does after every completed probe.
func (h *MonitorHeader) MarkChecked(at time.Time, healthy bool) {
	h.LastCheckedAt = &at
	if healthy {
		h.LastHealthyAt = &at
	}
	h.UpdatedAt = at
}

// Monitor is a tagged union over the URL and DATABASE variants, represented
// as a shared header plus at most one populated variant pointer rather than
// class inheritance (see design note on sum types vs. duck-typed subclasses).
type Monitor struct {
	MonitorHeader
	URL *URLMonitorConfig `json:"url_config,omitempty"`
	DB  *DBMonitorConfig  `json:"db_config,omitempty"`
}

// URLMonitorConfig holds the URL-variant-specific fields.
type URLMonitorConfig struct {
	URL                 string `json:"url"`
	ExpectedStatusCode  int    `json:"expected_status_code"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
	CheckSSL            bool   `json:"check_ssl"`
	FollowRedirects     bool   `json:"follow_redirects"`
	CheckContent        string `json:"check_content,omitempty"`
}

// DBMonitorConfig holds the DATABASE-variant-specific fields. The password is
// held only in encrypted form; plaintext never crosses this boundary.
type DBMonitorConfig struct {
	DBType                   DBType `json:"db_type"`
	Host                     string `json:"host"`
	Port                     int    `json:"port"`
	Database                 string `json:"database"`
	Username                 string `json:"username"`
	EncryptedPassword        string `json:"encrypted_password,omitempty"`
	ConnectionTimeoutSeconds int    `json:"connection_timeout_seconds"`
	QueryTimeoutSeconds      int    `json:"query_timeout_seconds"`
	TestQuery                string `json:"test_query"`
}

// NewURLMonitor builds a URL monitor with defaults applied per spec.
func NewURLMonitor(spaceID, name string, cfg URLMonitorConfig) *Monitor {
	if cfg.ExpectedStatusCode == 0 {
		cfg.ExpectedStatusCode = 200
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 30
	}
	now := time.Now()
	return &Monitor{
		MonitorHeader: MonitorHeader{
			ID:                   uuid.NewString(),
			SpaceID:              spaceID,
			Name:                 name,
			MonitorType:          MonitorTypeURL,
			Status:               StatusOffline,
			CheckIntervalSeconds: 300,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
		URL: &cfg,
	}
}

// NewDBMonitor builds a DATABASE monitor with defaults applied per spec.
func NewDBMonitor(spaceID, name string, cfg DBMonitorConfig) *Monitor {
	if cfg.ConnectionTimeoutSeconds == 0 {
		cfg.ConnectionTimeoutSeconds = 10
	}
	if cfg.QueryTimeoutSeconds == 0 {
		cfg.QueryTimeoutSeconds = 30
	}
	if cfg.TestQuery == "" {
		cfg.TestQuery = "SELECT 1"
	}
	now := time.Now()
	return &Monitor{
		MonitorHeader: MonitorHeader{
			ID:                   uuid.NewString(),
			SpaceID:              spaceID,
			Name:                 name,
			MonitorType:          MonitorTypeDatabase,
			Status:               StatusOffline,
			CheckIntervalSeconds: 300,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
		DB: &cfg,
	}
}

// Validate checks the header plus whichever variant is populated, and
// rejects a monitor whose tag doesn't match its populated variant.
func (m *Monitor) Validate() error {
	if err := m.MonitorHeader.Validate(); err != nil {
		return err
	}
	switch m.MonitorType {
	case MonitorTypeURL:
		if m.URL == nil {
			return fmt.Errorf("url monitor missing url_config")
		}
		if m.DB != nil {
			return fmt.Errorf("url monitor must not carry db_config")
		}
		if len(m.URL.URL) == 0 {
			return fmt.Errorf("url is required")
		}
		if m.URL.ExpectedStatusCode <= 0 {
			return fmt.Errorf("expected_status_code must be positive")
		}
		if m.URL.TimeoutSeconds <= 0 {
			return fmt.Errorf("timeout_seconds must be positive")
		}
	case MonitorTypeDatabase:
		if m.DB == nil {
			return fmt.Errorf("database monitor missing db_config")
		}
		if m.URL != nil {
			return fmt.Errorf("database monitor must not carry url_config")
		}
		if !m.DB.DBType.IsValid() {
			return fmt.Errorf("invalid db_type: %s", m.DB.DBType)
		}
		if len(m.DB.Host) == 0 {
			return fmt.Errorf("host is required")
		}
		if len(m.DB.Database) == 0 {
			return fmt.Errorf("database is required")
		}
	default:
		return fmt.Errorf("invalid monitor_type: %s", m.MonitorType)
	}
	return nil
}

// MonitorResult is the append-only outcome of one probe execution.
type MonitorResult struct {
	ID              string                 `json:"id"`
	MonitorID       string                 `json:"monitor_id"`
	SpaceID         string                 `json:"space_id"`
	MonitorType     MonitorType            `json:"monitor_type"`
	Timestamp       time.Time              `json:"timestamp"`
	Status          MonitorStatus          `json:"status"`
	ResponseTimeMs  float64                `json:"response_time_ms"`
	FailedChecks    int                    `json:"failed_checks"`
	CheckList       []string               `json:"check_list"`
	Details         map[string]interface{} `json:"details"`
}

// NewMonitorResult builds a zero-value result ready to be filled in by a
// probe engine.
func NewMonitorResult(monitorID, spaceID string, monitorType MonitorType) *MonitorResult {
	return &MonitorResult{
		ID:          uuid.NewString(),
		MonitorID:   monitorID,
		SpaceID:     spaceID,
		MonitorType: monitorType,
		Timestamp:   time.Now(),
		Status:      StatusUnknown,
		Details:     make(map[string]interface{}),
	}
}

// Finish computes Status from FailedChecks: healthy iff zero checks failed.
func (r *MonitorResult) Finish() {
	if r.FailedChecks == 0 {
		r.Status = StatusHealthy
	} else {
		r.Status = StatusUnhealthy
	}
}
