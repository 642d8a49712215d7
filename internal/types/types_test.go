package types

import "testing"

func TestNewURLMonitorDefaults(t *testing.T) {
	m := NewURLMonitor("space-1", "web", URLMonitorConfig{URL: "http://example.com"})
	if m.URL.ExpectedStatusCode != 200 {
		t.Errorf("expected default status code 200, got %d", m.URL.ExpectedStatusCode)
	}
	if m.URL.TimeoutSeconds != 30 {
		t.Errorf("expected default timeout 30, got %d", m.URL.TimeoutSeconds)
	}
	if m.CheckIntervalSeconds != 300 {
		t.Errorf("expected default interval 300, got %d", m.CheckIntervalSeconds)
	}
	if m.Status != StatusOffline {
		t.Errorf("expected initial status offline, got %s", m.Status)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("expected valid monitor, got %v", err)
	}
}

func TestNewDBMonitorDefaults(t *testing.T) {
	m := NewDBMonitor("space-1", "db", DBMonitorConfig{DBType: DBTypePostgres, Host: "localhost", Database: "app"})
	if m.DB.TestQuery != "SELECT 1" {
		t.Errorf("expected default test query, got %q", m.DB.TestQuery)
	}
	if m.DB.ConnectionTimeoutSeconds != 10 {
		t.Errorf("expected default connection timeout 10, got %d", m.DB.ConnectionTimeoutSeconds)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("expected valid monitor, got %v", err)
	}
}

func TestMonitorValidateRejectsMismatchedVariant(t *testing.T) {
	m := NewURLMonitor("space-1", "web", URLMonitorConfig{URL: "http://example.com"})
	m.DB = &DBMonitorConfig{DBType: DBTypePostgres, Host: "h", Database: "d"}
	if err := m.Validate(); err == nil {
		t.Error("expected validation error for url monitor carrying db_config")
	}
}

func TestMonitorValidateRejectsBadInterval(t *testing.T) {
	m := NewURLMonitor("space-1", "web", URLMonitorConfig{URL: "http://example.com"})
	m.CheckIntervalSeconds = 0
	if err := m.Validate(); err == nil {
		t.Error("expected validation error for non-positive check_interval_seconds")
	}
}

func TestMonitorResultFinish(t *testing.T) {
	r := NewMonitorResult("m1", "s1", MonitorTypeURL)
	r.FailedChecks = 0
	r.Finish()
	if r.Status != StatusHealthy {
		t.Errorf("expected healthy with zero failed checks, got %s", r.Status)
	}
	r.FailedChecks = 1
	r.Finish()
	if r.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy with nonzero failed checks, got %s", r.Status)
	}
}

func TestSpaceValidateRequiresName(t *testing.T) {
	s := NewSpace("", "", nil)
	if err := s.Validate(); err == nil {
		t.Error("expected validation error for empty name")
	}
}
