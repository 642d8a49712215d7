// Package dbprobe implements the database probe engine (reachability and
// test-query checks) for the postgresql, mysql, and sqlserver dialects.
package dbprobe

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/onbao165/webmonitor/internal/cryptobox"
	"github.com/onbao165/webmonitor/internal/types"
)

const (
	errConnection         = "Failed to establish connection"
	errQueryConnection    = "Failed to execute query due to connection error"
	errQueryExecution     = "Failed to execute query"
)

// Check runs the connection and test-query checks for a DATABASE monitor.
// It always returns a MonitorResult; probe failures never propagate as
// errors (spec §7).
func Check(m *types.Monitor, box *cryptobox.Box) *types.MonitorResult {
	cfg := m.DB
	result := types.NewMonitorResult(m.ID, m.SpaceID, types.MonitorTypeDatabase)
	result.CheckList = []string{"connection", "query"}

	start := time.Now()

	if !cfg.DBType.IsValid() {
		result.FailedChecks = 2
		result.Details["connection"] = map[string]interface{}{"connected": false, "message": fmt.Sprintf("unsupported database type: %s", cfg.DBType)}
		result.Details["query"] = map[string]interface{}{"executed": false, "message": "UNSUPPORTED_DIALECT"}
		result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
		result.Finish()
		return result
	}

	password := ""
	if cfg.EncryptedPassword != "" {
		var err error
		password, err = box.Decrypt(cfg.EncryptedPassword)
		if err != nil {
			password = ""
		}
	}

	driverName, dsn, err := buildDSN(cfg, password)
	if err != nil {
		result.FailedChecks = 2
		result.Details["connection"] = map[string]interface{}{"connected": false, "message": err.Error()}
		result.Details["query"] = map[string]interface{}{"executed": false, "message": errQueryConnection}
		result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
		result.Finish()
		return result
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		result.FailedChecks = 2
		result.Details["connection"] = map[string]interface{}{"connected": false, "message": errConnection}
		result.Details["query"] = map[string]interface{}{"executed": false, "message": errQueryConnection}
		result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
		result.Finish()
		return result
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectionTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		result.FailedChecks = 2
		result.Details["connection"] = map[string]interface{}{"connected": false, "message": errConnection}
		result.Details["query"] = map[string]interface{}{"executed": false, "message": errQueryConnection}
		result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
		result.Finish()
		return result
	}
	defer conn.Close()

	result.Details["connection"] = map[string]interface{}{"connected": true}

	if testQuery := cfg.TestQuery; len(strings.TrimSpace(testQuery)) > 0 {
		queryCtx, queryCancel := context.WithTimeout(context.Background(), time.Duration(cfg.QueryTimeoutSeconds)*time.Second)
		defer queryCancel()

		if stmt := timeoutStatement(cfg.DBType, cfg.QueryTimeoutSeconds); stmt != "" {
			_, _ = conn.ExecContext(queryCtx, stmt)
		}

		res, err := conn.ExecContext(queryCtx, testQuery)
		if err != nil {
			result.FailedChecks++
			result.Details["query"] = map[string]interface{}{"executed": false, "message": errQueryExecution}
		} else {
			rows, _ := res.RowsAffected()
			result.Details["query"] = map[string]interface{}{
				"executed": true,
				"message":  fmt.Sprintf("Query %q executed successfully. Rows affected: %d", testQuery, rows),
			}
		}
	}

	result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
	result.Finish()
	return result
}

// timeoutStatement returns the dialect-specific server-side statement
// timeout for queryTimeoutSeconds, matching check_db's per-dialect SET.
func timeoutStatement(dbType types.DBType, queryTimeoutSeconds int) string {
	ms := queryTimeoutSeconds * 1000
	switch dbType {
	case types.DBTypePostgres:
		return fmt.Sprintf("SET statement_timeout = %d", ms)
	case types.DBTypeMySQL:
		return fmt.Sprintf("SET max_execution_time = %d", ms)
	case types.DBTypeSQLServer:
		return fmt.Sprintf("SET LOCK_TIMEOUT %d", ms)
	}
	return ""
}

// buildDSN composes a dialect-specific connection string, matching
// test_connection_string's DSN shape. The password is percent-encoded in the
// URL-style postgresql and sqlserver DSNs; the mysql driver DSN carries it
// unencoded.
func buildDSN(cfg *types.DBMonitorConfig, password string) (driverName, dsn string, err error) {
	encodedPassword := url.QueryEscape(password)
	switch cfg.DBType {
	case types.DBTypePostgres:
		return "pgx", fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d",
			cfg.Username, encodedPassword, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectionTimeoutSeconds), nil
	case types.DBTypeMySQL:
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=%ds",
			cfg.Username, password, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectionTimeoutSeconds), nil
	case types.DBTypeSQLServer:
		return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&connection+timeout=%d",
			cfg.Username, encodedPassword, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectionTimeoutSeconds), nil
	default:
		return "", "", fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}
