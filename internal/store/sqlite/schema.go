package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS spaces (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    notification_emails TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS monitors (
    id TEXT PRIMARY KEY,
    space_id TEXT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    monitor_type TEXT NOT NULL CHECK(monitor_type IN ('url', 'database')),
    status TEXT NOT NULL DEFAULT 'offline' CHECK(status IN ('healthy', 'unhealthy', 'unknown', 'offline')),
    check_interval_seconds INTEGER NOT NULL DEFAULT 300 CHECK(check_interval_seconds > 0),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_checked_at DATETIME,
    last_healthy_at DATETIME,

    -- URL variant
    url TEXT,
    expected_status_code INTEGER,
    timeout_seconds INTEGER,
    check_ssl INTEGER,
    follow_redirects INTEGER,
    check_content TEXT,

    -- DATABASE variant
    db_type TEXT,
    host TEXT,
    port INTEGER,
    database_name TEXT,
    username TEXT,
    encrypted_password TEXT,
    connection_timeout_seconds INTEGER,
    query_timeout_seconds INTEGER,
    test_query TEXT,

    UNIQUE(space_id, name)
);

CREATE INDEX IF NOT EXISTS idx_monitors_space ON monitors(space_id);
CREATE INDEX IF NOT EXISTS idx_monitors_status ON monitors(status);

CREATE TABLE IF NOT EXISTS monitor_results (
    id TEXT PRIMARY KEY,
    monitor_id TEXT NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
    space_id TEXT NOT NULL,
    monitor_type TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    status TEXT NOT NULL,
    response_time_ms REAL NOT NULL DEFAULT 0,
    failed_checks INTEGER NOT NULL DEFAULT 0,
    check_list TEXT NOT NULL DEFAULT '[]',
    details TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_results_monitor_ts ON monitor_results(monitor_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_results_space_ts ON monitor_results(space_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_results_status_ts ON monitor_results(status, timestamp);
`
