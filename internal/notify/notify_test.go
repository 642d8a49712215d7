package notify

import (
	"testing"
	"time"

	"github.com/onbao165/webmonitor/internal/types"
)

func TestShouldNotifyFirstResultOnlyWhenUnhealthy(t *testing.T) {
	healthy := &types.MonitorResult{Status: types.StatusHealthy}
	unhealthy := &types.MonitorResult{Status: types.StatusUnhealthy}

	if ShouldNotify(healthy, nil) {
		t.Errorf("first healthy result should not notify")
	}
	if !ShouldNotify(unhealthy, nil) {
		t.Errorf("first unhealthy result should notify")
	}
}

func TestShouldNotifyOnTransition(t *testing.T) {
	prevHealthy := &types.MonitorResult{Status: types.StatusHealthy}
	prevUnhealthy := &types.MonitorResult{Status: types.StatusUnhealthy}
	nowHealthy := &types.MonitorResult{Status: types.StatusHealthy}
	nowUnhealthy := &types.MonitorResult{Status: types.StatusUnhealthy}

	if !ShouldNotify(nowUnhealthy, prevHealthy) {
		t.Errorf("healthy -> unhealthy should notify")
	}
	if !ShouldNotify(nowHealthy, prevUnhealthy) {
		t.Errorf("unhealthy -> healthy should notify")
	}
	if ShouldNotify(nowHealthy, prevHealthy) {
		t.Errorf("healthy -> healthy should not notify")
	}
	if ShouldNotify(nowUnhealthy, prevUnhealthy) {
		t.Errorf("unhealthy -> unhealthy should not notify")
	}
}

func TestSMTPConfigIsConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"empty", SMTPConfig{}, false},
		{"missing password", SMTPConfig{Username: "u"}, false},
		{"missing username", SMTPConfig{Password: "p"}, false},
		{"complete", SMTPConfig{Username: "u", Password: "p"}, true},
	}
	for _, c := range cases {
		if got := c.cfg.IsConfigured(); got != c.want {
			t.Errorf("%s: IsConfigured() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSendSkipsWhenNotConfigured(t *testing.T) {
	s := NewSender(SMTPConfig{}, nil)
	if s.Send([]string{"a@example.com"}, "subj", "body", false) {
		t.Errorf("Send should return false when SMTP is not configured")
	}
}

func TestSendSkipsWhenNoRecipients(t *testing.T) {
	s := NewSender(SMTPConfig{Username: "u", Password: "p"}, nil)
	if s.Send(nil, "subj", "body", false) {
		t.Errorf("Send should return false with no recipients")
	}
}

func TestFormatDetailsEmpty(t *testing.T) {
	if got := formatDetails(nil); got != "No details available" {
		t.Errorf("formatDetails(nil) = %q", got)
	}
}

func TestFormatDetailsRendersSortedChecks(t *testing.T) {
	details := map[string]interface{}{
		"status_code": map[string]interface{}{"expected": 200, "actual": 500},
		"connection":  map[string]interface{}{"connected": false},
	}
	out := formatDetails(details)
	connIdx := indexOf(out, "Check: connection")
	statusIdx := indexOf(out, "Check: status_code")
	if connIdx < 0 || statusIdx < 0 || connIdx > statusIdx {
		t.Errorf("expected connection before status_code in sorted output, got:\n%s", out)
	}
}

func TestReadableKey(t *testing.T) {
	if got := readableKey("expected_status_code"); got != "Expected status code" {
		t.Errorf("readableKey = %q", got)
	}
	if got := readableKey(""); got != "" {
		t.Errorf("readableKey(\"\") = %q", got)
	}
}

func TestSendHealthAlertSkipsWhenNotConfigured(t *testing.T) {
	s := NewSender(SMTPConfig{}, nil)
	space := &types.Space{Name: "prod", NotificationEmails: []string{"a@example.com"}}
	m := &types.Monitor{MonitorHeader: types.MonitorHeader{Name: "web", MonitorType: types.MonitorTypeURL, Status: types.StatusUnhealthy}}
	if s.SendHealthAlert(space, []*types.Monitor{m}, 2) {
		t.Errorf("SendHealthAlert should return false when SMTP is not configured")
	}
}

func TestSendResultEmailSkipsWhenNotConfigured(t *testing.T) {
	s := NewSender(SMTPConfig{}, nil)
	space := &types.Space{Name: "prod", NotificationEmails: []string{"a@example.com"}}
	result := types.NewMonitorResult("mon-1", space.ID, types.MonitorTypeURL)
	result.Timestamp = time.Now()
	if s.SendResultEmail(space, result) {
		t.Errorf("SendResultEmail should return false when SMTP is not configured")
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
