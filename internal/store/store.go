// Package store defines the persistence interface for spaces, monitors,
// and results, and the replaceable backends that implement it.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/onbao165/webmonitor/internal/types"
)

// Store is the transactional persistence contract every backend must
// provide. Any engine offering transactional upsert/query/cascade-delete
// is acceptable (spec §6.4); the default backend is sqlite.
type Store interface {
	// Spaces
	SaveSpace(ctx context.Context, space *types.Space) error
	GetSpaceByID(ctx context.Context, id string) (*types.Space, error)
	GetSpaceByName(ctx context.Context, name string) (*types.Space, error)
	ListSpaces(ctx context.Context) ([]*types.Space, error)
	DeleteSpace(ctx context.Context, id string) error

	// Monitors
	SaveMonitor(ctx context.Context, monitor *types.Monitor) error
	GetMonitorByID(ctx context.Context, id string) (*types.Monitor, error)
	GetMonitorByName(ctx context.Context, name, spaceID string) (*types.Monitor, error)
	ListMonitors(ctx context.Context, spaceID string) ([]*types.Monitor, error)
	GetMonitorsBySpaceID(ctx context.Context, spaceID string) ([]*types.Monitor, error)
	DeleteMonitor(ctx context.Context, id string) error
	GetUnhealthyMonitors(ctx context.Context, thresholdHours float64) ([]*types.Monitor, error)

	// Results
	SaveResult(ctx context.Context, result *types.MonitorResult) error
	GetResultsByMonitorID(ctx context.Context, monitorID string, limit int) ([]*types.MonitorResult, error)
	GetResultsBySpaceID(ctx context.Context, spaceID string, limit int) ([]*types.MonitorResult, error)
	GetLatestResult(ctx context.Context, monitorID string) (*types.MonitorResult, error)

	// Retention
	CleanupPreview(ctx context.Context, keepHealthyDays, keepUnhealthyDays int) (*CleanupPreview, error)
	CleanupOldResults(ctx context.Context, keepHealthyDays, keepUnhealthyDays, batchSize int) (*CleanupStats, error)

	// Lifecycle
	Close() error
	Path() string
	UnderlyingDB() *sql.DB
}

// CleanupPreview is the dry-run shape for the retention engine (§4.7) and
// the get_cleanup_preview control action (§6.1).
type CleanupPreview struct {
	HealthyToDelete        int `json:"healthy_to_delete"`
	UnhealthyToDelete      int `json:"unhealthy_to_delete"`
	TotalToDelete          int `json:"total_to_delete"`
	TotalResults           int `json:"total_results"`
	RetentionAfterCleanup  int `json:"retention_after_cleanup"`
}

// CleanupStats is the outcome of an applied cleanup run.
type CleanupStats struct {
	HealthyDeleted    int           `json:"healthy_deleted"`
	UnhealthyDeleted  int           `json:"unhealthy_deleted"`
	TotalDeleted      int           `json:"total_deleted"`
	BatchesProcessed  int           `json:"batches_processed"`
	Duration          time.Duration `json:"-"`
	DurationSeconds   float64       `json:"duration_seconds"`
	Errors            []string      `json:"errors,omitempty"`
}

// Config holds the backend selection and connection parameters (spec §6.4
// is backend-agnostic; sqlite is the only backend this repo ships).
type Config struct {
	Backend string // "sqlite"
	Path    string
}
