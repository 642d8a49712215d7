// Package sqlite implements the store interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/onbao165/webmonitor/internal/store"
	"github.com/onbao165/webmonitor/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements store.Store using modernc.org/sqlite (pure Go,
// no cgo), matching the teacher's embedded-database choice exactly.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

// New opens (creating if necessary) the sqlite database at path and
// initializes the schema.
func New(path string) (*SQLiteStore, error) {
	dbPath := path
	if path == ":memory:" {
		dbPath = "file::memory:?cache=shared"
	}

	if !strings.Contains(dbPath, ":memory:") {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	connStr := dbPath
	if strings.Contains(dbPath, "?") {
		connStr += "&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	} else {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

func (s *SQLiteStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Path() string           { return s.dbPath }
func (s *SQLiteStore) UnderlyingDB() *sql.DB   { return s.db }

// --- Spaces ---

func (s *SQLiteStore) SaveSpace(ctx context.Context, sp *types.Space) error {
	emails, err := json.Marshal(sp.NotificationEmails)
	if err != nil {
		return types.NewStoreError("save_space", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, description, notification_emails, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			notification_emails = excluded.notification_emails,
			updated_at = excluded.updated_at
	`, sp.ID, sp.Name, sp.Description, string(emails), sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return types.NewStoreError("save_space", err)
	}
	return nil
}

func scanSpace(row interface{ Scan(...interface{}) error }) (*types.Space, error) {
	var sp types.Space
	var emails string
	if err := row.Scan(&sp.ID, &sp.Name, &sp.Description, &emails, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return nil, err
	}
	if emails != "" {
		if err := json.Unmarshal([]byte(emails), &sp.NotificationEmails); err != nil {
			return nil, fmt.Errorf("corrupt notification_emails: %w", err)
		}
	}
	return &sp, nil
}

func (s *SQLiteStore) GetSpaceByID(ctx context.Context, id string) (*types.Space, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, notification_emails, created_at, updated_at FROM spaces WHERE id = ?`, id)
	sp, err := scanSpace(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("space %q not found", id)
	}
	if err != nil {
		return nil, types.NewStoreError("get_space_by_id", err)
	}
	return sp, nil
}

func (s *SQLiteStore) GetSpaceByName(ctx context.Context, name string) (*types.Space, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, notification_emails, created_at, updated_at FROM spaces WHERE name = ?`, name)
	sp, err := scanSpace(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("space %q not found", name)
	}
	if err != nil {
		return nil, types.NewStoreError("get_space_by_name", err)
	}
	return sp, nil
}

func (s *SQLiteStore) ListSpaces(ctx context.Context) ([]*types.Space, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, notification_emails, created_at, updated_at FROM spaces ORDER BY name`)
	if err != nil {
		return nil, types.NewStoreError("list_spaces", err)
	}
	defer rows.Close()
	var out []*types.Space
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, types.NewStoreError("list_spaces", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSpace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return types.NewStoreError("delete_space", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.NewNotFoundError("space %q not found", id)
	}
	return nil
}

// --- Monitors ---

func (s *SQLiteStore) SaveMonitor(ctx context.Context, m *types.Monitor) error {
	var (
		url, dbType, host, database, username, encPwd, testQuery     sql.NullString
		expectedCode, timeoutSec, port, connTimeout, queryTimeout     sql.NullInt64
		checkSSL, followRedirects                                    sql.NullInt64
		checkContent                                                 sql.NullString
	)
	if m.URL != nil {
		url = sql.NullString{String: m.URL.URL, Valid: true}
		expectedCode = sql.NullInt64{Int64: int64(m.URL.ExpectedStatusCode), Valid: true}
		timeoutSec = sql.NullInt64{Int64: int64(m.URL.TimeoutSeconds), Valid: true}
		checkSSL = sql.NullInt64{Int64: boolToInt(m.URL.CheckSSL), Valid: true}
		followRedirects = sql.NullInt64{Int64: boolToInt(m.URL.FollowRedirects), Valid: true}
		if m.URL.CheckContent != "" {
			checkContent = sql.NullString{String: m.URL.CheckContent, Valid: true}
		}
	}
	if m.DB != nil {
		dbType = sql.NullString{String: string(m.DB.DBType), Valid: true}
		host = sql.NullString{String: m.DB.Host, Valid: true}
		database = sql.NullString{String: m.DB.Database, Valid: true}
		username = sql.NullString{String: m.DB.Username, Valid: true}
		encPwd = sql.NullString{String: m.DB.EncryptedPassword, Valid: true}
		testQuery = sql.NullString{String: m.DB.TestQuery, Valid: true}
		port = sql.NullInt64{Int64: int64(m.DB.Port), Valid: true}
		connTimeout = sql.NullInt64{Int64: int64(m.DB.ConnectionTimeoutSeconds), Valid: true}
		queryTimeout = sql.NullInt64{Int64: int64(m.DB.QueryTimeoutSeconds), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitors (
			id, space_id, name, monitor_type, status, check_interval_seconds,
			created_at, updated_at, last_checked_at, last_healthy_at,
			url, expected_status_code, timeout_seconds, check_ssl, follow_redirects, check_content,
			db_type, host, port, database_name, username, encrypted_password,
			connection_timeout_seconds, query_timeout_seconds, test_query
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			space_id = excluded.space_id,
			name = excluded.name,
			monitor_type = excluded.monitor_type,
			status = excluded.status,
			check_interval_seconds = excluded.check_interval_seconds,
			updated_at = excluded.updated_at,
			last_checked_at = excluded.last_checked_at,
			last_healthy_at = excluded.last_healthy_at,
			url = excluded.url,
			expected_status_code = excluded.expected_status_code,
			timeout_seconds = excluded.timeout_seconds,
			check_ssl = excluded.check_ssl,
			follow_redirects = excluded.follow_redirects,
			check_content = excluded.check_content,
			db_type = excluded.db_type,
			host = excluded.host,
			port = excluded.port,
			database_name = excluded.database_name,
			username = excluded.username,
			encrypted_password = excluded.encrypted_password,
			connection_timeout_seconds = excluded.connection_timeout_seconds,
			query_timeout_seconds = excluded.query_timeout_seconds,
			test_query = excluded.test_query
	`,
		m.ID, m.SpaceID, m.Name, string(m.MonitorType), string(m.Status), m.CheckIntervalSeconds,
		m.CreatedAt, m.UpdatedAt, nullTime(m.LastCheckedAt), nullTime(m.LastHealthyAt),
		url, expectedCode, timeoutSec, checkSSL, followRedirects, checkContent,
		dbType, host, port, database, username, encPwd,
		connTimeout, queryTimeout, testQuery,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewConflictError("monitor name %q already exists in space %q", m.Name, m.SpaceID)
		}
		return types.NewStoreError("save_monitor", err)
	}
	return nil
}

const monitorColumns = `id, space_id, name, monitor_type, status, check_interval_seconds,
	created_at, updated_at, last_checked_at, last_healthy_at,
	url, expected_status_code, timeout_seconds, check_ssl, follow_redirects, check_content,
	db_type, host, port, database_name, username, encrypted_password,
	connection_timeout_seconds, query_timeout_seconds, test_query`

func scanMonitor(row interface{ Scan(...interface{}) error }) (*types.Monitor, error) {
	var m types.Monitor
	var (
		url, dbType, host, database, username, encPwd, testQuery sql.NullString
		checkContent                                              sql.NullString
		expectedCode, timeoutSec, port, connTimeout, queryTimeout sql.NullInt64
		checkSSL, followRedirects                                 sql.NullInt64
		lastChecked, lastHealthy                                  sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.SpaceID, &m.Name, &m.MonitorType, &m.Status, &m.CheckIntervalSeconds,
		&m.CreatedAt, &m.UpdatedAt, &lastChecked, &lastHealthy,
		&url, &expectedCode, &timeoutSec, &checkSSL, &followRedirects, &checkContent,
		&dbType, &host, &port, &database, &username, &encPwd,
		&connTimeout, &queryTimeout, &testQuery,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		m.LastCheckedAt = &t
	}
	if lastHealthy.Valid {
		t := lastHealthy.Time
		m.LastHealthyAt = &t
	}
	switch m.MonitorType {
	case types.MonitorTypeURL:
		m.URL = &types.URLMonitorConfig{
			URL:                url.String,
			ExpectedStatusCode: int(expectedCode.Int64),
			TimeoutSeconds:     int(timeoutSec.Int64),
			CheckSSL:           checkSSL.Int64 != 0,
			FollowRedirects:    followRedirects.Int64 != 0,
			CheckContent:       checkContent.String,
		}
	case types.MonitorTypeDatabase:
		m.DB = &types.DBMonitorConfig{
			DBType:                   types.DBType(dbType.String),
			Host:                     host.String,
			Port:                     int(port.Int64),
			Database:                 database.String,
			Username:                 username.String,
			EncryptedPassword:        encPwd.String,
			ConnectionTimeoutSeconds: int(connTimeout.Int64),
			QueryTimeoutSeconds:      int(queryTimeout.Int64),
			TestQuery:                testQuery.String,
		}
	}
	return &m, nil
}

func (s *SQLiteStore) GetMonitorByID(ctx context.Context, id string) (*types.Monitor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, id)
	m, err := scanMonitor(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("monitor %q not found", id)
	}
	if err != nil {
		return nil, types.NewStoreError("get_monitor_by_id", err)
	}
	return m, nil
}

func (s *SQLiteStore) GetMonitorByName(ctx context.Context, name, spaceID string) (*types.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE name = ?`
	args := []interface{}{name}
	if spaceID != "" {
		query += ` AND space_id = ?`
		args = append(args, spaceID)
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	m, err := scanMonitor(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("monitor %q not found", name)
	}
	if err != nil {
		return nil, types.NewStoreError("get_monitor_by_name", err)
	}
	return m, nil
}

func (s *SQLiteStore) ListMonitors(ctx context.Context, spaceID string) ([]*types.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors`
	var args []interface{}
	if spaceID != "" {
		query += ` WHERE space_id = ?`
		args = append(args, spaceID)
	}
	query += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewStoreError("list_monitors", err)
	}
	defer rows.Close()
	var out []*types.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, types.NewStoreError("list_monitors", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetMonitorsBySpaceID(ctx context.Context, spaceID string) ([]*types.Monitor, error) {
	return s.ListMonitors(ctx, spaceID)
}

func (s *SQLiteStore) DeleteMonitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return types.NewStoreError("delete_monitor", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.NewNotFoundError("monitor %q not found", id)
	}
	return nil
}

// GetUnhealthyMonitors matches the original's get_unhealthy_monitors: checked
// at least once, not OFFLINE, and either never healthy or stale-healthy.
func (s *SQLiteStore) GetUnhealthyMonitors(ctx context.Context, thresholdHours float64) ([]*types.Monitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+monitorColumns+` FROM monitors
		WHERE last_checked_at IS NOT NULL
		  AND status != 'offline'
		  AND (last_healthy_at IS NULL OR last_healthy_at < datetime('now', printf('-%f hours', ?)))
		ORDER BY space_id, name
	`, thresholdHours)
	if err != nil {
		return nil, types.NewStoreError("get_unhealthy_monitors", err)
	}
	defer rows.Close()
	var out []*types.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, types.NewStoreError("get_unhealthy_monitors", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Results ---

func (s *SQLiteStore) SaveResult(ctx context.Context, r *types.MonitorResult) error {
	checkList, err := json.Marshal(r.CheckList)
	if err != nil {
		return types.NewStoreError("save_result", err)
	}
	details, err := json.Marshal(r.Details)
	if err != nil {
		return types.NewStoreError("save_result", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monitor_results (id, monitor_id, space_id, monitor_type, timestamp, status, response_time_ms, failed_checks, check_list, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.MonitorID, r.SpaceID, string(r.MonitorType), r.Timestamp, string(r.Status), r.ResponseTimeMs, r.FailedChecks, string(checkList), string(details))
	if err != nil {
		return types.NewStoreError("save_result", err)
	}
	return nil
}

func scanResult(row interface{ Scan(...interface{}) error }) (*types.MonitorResult, error) {
	var r types.MonitorResult
	var checkList, details string
	if err := row.Scan(&r.ID, &r.MonitorID, &r.SpaceID, &r.MonitorType, &r.Timestamp, &r.Status, &r.ResponseTimeMs, &r.FailedChecks, &checkList, &details); err != nil {
		return nil, err
	}
	if checkList != "" {
		if err := json.Unmarshal([]byte(checkList), &r.CheckList); err != nil {
			return nil, fmt.Errorf("corrupt check_list: %w", err)
		}
	}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &r.Details); err != nil {
			return nil, fmt.Errorf("corrupt details: %w", err)
		}
	}
	return &r, nil
}

const resultColumns = `id, monitor_id, space_id, monitor_type, timestamp, status, response_time_ms, failed_checks, check_list, details`

func (s *SQLiteStore) GetResultsByMonitorID(ctx context.Context, monitorID string, limit int) ([]*types.MonitorResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM monitor_results WHERE monitor_id = ? ORDER BY timestamp DESC LIMIT ?`, monitorID, limit)
	if err != nil {
		return nil, types.NewStoreError("get_results_by_monitor_id", err)
	}
	defer rows.Close()
	var out []*types.MonitorResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, types.NewStoreError("get_results_by_monitor_id", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetResultsBySpaceID(ctx context.Context, spaceID string, limit int) ([]*types.MonitorResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM monitor_results WHERE space_id = ? ORDER BY timestamp DESC LIMIT ?`, spaceID, limit)
	if err != nil {
		return nil, types.NewStoreError("get_results_by_space_id", err)
	}
	defer rows.Close()
	var out []*types.MonitorResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, types.NewStoreError("get_results_by_space_id", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetLatestResult(ctx context.Context, monitorID string) (*types.MonitorResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM monitor_results WHERE monitor_id = ? ORDER BY timestamp DESC LIMIT 1`, monitorID)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewStoreError("get_latest_result", err)
	}
	return r, nil
}

// --- Retention ---

func (s *SQLiteStore) CleanupPreview(ctx context.Context, keepHealthyDays, keepUnhealthyDays int) (*store.CleanupPreview, error) {
	var healthyCount, unhealthyCount, totalCount int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM monitor_results
		WHERE timestamp < datetime('now', printf('-%d days', ?)) AND status = 'healthy'
	`, keepHealthyDays)
	if err := row.Scan(&healthyCount); err != nil {
		return nil, types.NewStoreError("cleanup_preview", err)
	}
	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM monitor_results
		WHERE timestamp < datetime('now', printf('-%d days', ?)) AND status IN ('unhealthy', 'unknown')
	`, keepUnhealthyDays)
	if err := row.Scan(&unhealthyCount); err != nil {
		return nil, types.NewStoreError("cleanup_preview", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitor_results`)
	if err := row.Scan(&totalCount); err != nil {
		return nil, types.NewStoreError("cleanup_preview", err)
	}
	toDelete := healthyCount + unhealthyCount
	return &store.CleanupPreview{
		HealthyToDelete:       healthyCount,
		UnhealthyToDelete:     unhealthyCount,
		TotalToDelete:         toDelete,
		TotalResults:          totalCount,
		RetentionAfterCleanup: totalCount - toDelete,
	}, nil
}

func (s *SQLiteStore) CleanupOldResults(ctx context.Context, keepHealthyDays, keepUnhealthyDays, batchSize int) (*store.CleanupStats, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	stats := &store.CleanupStats{}

	healthyDeleted, err := s.cleanupByStatusCutoff(ctx, keepHealthyDays, []string{"healthy"}, batchSize)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return stats, types.NewStoreError("cleanup_old_results", err)
	}
	stats.HealthyDeleted = healthyDeleted

	unhealthyDeleted, err := s.cleanupByStatusCutoff(ctx, keepUnhealthyDays, []string{"unhealthy", "unknown"}, batchSize)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return stats, types.NewStoreError("cleanup_old_results", err)
	}
	stats.UnhealthyDeleted = unhealthyDeleted
	stats.TotalDeleted = healthyDeleted + unhealthyDeleted
	stats.BatchesProcessed = (healthyDeleted + batchSize - 1) / batchSize
	if unhealthyDeleted > 0 {
		stats.BatchesProcessed += (unhealthyDeleted + batchSize - 1) / batchSize
	}
	return stats, nil
}

// cleanupByStatusCutoff repeatedly deletes up to batchSize rows older than
// the cutoff for the given statuses, stopping when a batch comes back
// short — the same loop-until-short-batch shape as the original's
// _cleanup_results_by_status.
func (s *SQLiteStore) cleanupByStatusCutoff(ctx context.Context, keepDays int, statuses []string, batchSize int) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	selectQuery := fmt.Sprintf(`
		SELECT id FROM monitor_results
		WHERE timestamp < datetime('now', printf('-%%d days', ?)) AND status IN (%s)
		LIMIT ?
	`, placeholders)

	total := 0
	for {
		args := make([]interface{}, 0, len(statuses)+2)
		args = append(args, keepDays)
		for _, st := range statuses {
			args = append(args, st)
		}
		args = append(args, batchSize)

		rows, err := s.db.QueryContext(ctx, selectQuery, args...)
		if err != nil {
			return total, err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return total, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		delPlaceholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		delArgs := make([]interface{}, len(ids))
		for i, id := range ids {
			delArgs[i] = id
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM monitor_results WHERE id IN (%s)`, delPlaceholders), delArgs...); err != nil {
			return total, err
		}
		total += len(ids)
		if len(ids) < batchSize {
			break
		}
	}
	return total, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
