// Package notify implements the notification decision layer (edge-triggered
// per-check emails, level-triggered unhealthy digests) and the SMTP sender.
package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/onbao165/webmonitor/internal/types"
)

// SMTPConfig holds the settings needed to send mail, mirroring the on-disk
// email section of the domain config (spec §6.2).
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

// IsConfigured reports whether enough credentials are present to send mail,
// matching EmailService.is_configured.
func (c SMTPConfig) IsConfigured() bool {
	return c.Username != "" && c.Password != ""
}

// Sender sends notification emails over SMTP with STARTTLS, logging
// failures rather than propagating them (spec §7 TransportError).
type Sender struct {
	cfg SMTPConfig
	log func(format string, args ...interface{})
}

// NewSender builds a Sender bound to cfg. log may be nil, in which case
// failures are silently swallowed.
func NewSender(cfg SMTPConfig, log func(format string, args ...interface{})) *Sender {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Sender{cfg: cfg, log: log}
}

// IsConfigured reports whether this Sender has enough credentials to send.
func (s *Sender) IsConfigured() bool {
	return s.cfg.IsConfigured()
}

// Send delivers one email to recipients. It never returns an error to the
// caller — failures are logged and false is returned, matching
// EmailService.send_email's swallow-and-log contract.
func (s *Sender) Send(recipients []string, subject, body string, isHTML bool) bool {
	if len(recipients) == 0 || !s.cfg.IsConfigured() {
		s.log("email sending skipped: missing recipients or credentials")
		return false
	}

	from := s.cfg.Username
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.Username)
	}

	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := s.sendSTARTTLS(recipients, []byte(msg.String())); err != nil {
		s.log("failed to send email: %v", err)
		return false
	}
	s.log("email sent successfully to %d recipients", len(recipients))
	return true
}

// sendSTARTTLS dials smtp_host:smtp_port, upgrades with STARTTLS, and
// LOGIN-authenticates, matching smtplib.SMTP(...).starttls()+login().
func (s *Sender) sendSTARTTLS(recipients []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.cfg.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := client.Mail(s.cfg.Username); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %q: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

// TestConnection attempts the STARTTLS+LOGIN handshake without sending a
// message, matching EmailService.test_connection.
func (s *Sender) TestConnection() (bool, string) {
	if !s.cfg.IsConfigured() {
		return false, "Missing username or password"
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return false, fmt.Sprintf("Connection failed: %v", err)
	}
	defer client.Close()
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return false, fmt.Sprintf("Connection failed: %v", err)
		}
	}
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return false, fmt.Sprintf("Connection failed: %v", err)
	}
	return true, "Connection successful"
}

// ShouldNotify implements the per-check, edge-triggered decision (§4.6):
// notify on the first-ever unhealthy result, or on any status transition.
func ShouldNotify(result *types.MonitorResult, previous *types.MonitorResult) bool {
	if previous == nil {
		return result.Status == types.StatusUnhealthy
	}
	return previous.Status != result.Status
}

// SendResultEmail sends the per-check transition email for result, grounded
// on send_monitor_result_email's subject/body shape.
func (s *Sender) SendResultEmail(space *types.Space, result *types.MonitorResult) bool {
	subject := fmt.Sprintf("Update on Space %s: %s is %s", space.Name, result.MonitorType, result.Status)
	var body strings.Builder
	fmt.Fprintf(&body, "<h2>Monitor Update for %s</h2>\n", space.Name)
	fmt.Fprintf(&body, "<p><strong>Monitor ID:</strong> %s</p>\n", result.MonitorID)
	fmt.Fprintf(&body, "<p><strong>Status:</strong> %s</p>\n", result.Status)
	fmt.Fprintf(&body, "<p><strong>Type:</strong> %s</p>\n", result.MonitorType)
	fmt.Fprintf(&body, "<p><strong>Time:</strong> %s</p>\n", result.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&body, "<p><strong>Response Time:</strong> %.2f ms</p>\n", result.ResponseTimeMs)
	fmt.Fprintf(&body, "<p><strong>Results:</strong> %d/%d checks failed</p>\n", result.FailedChecks, len(result.CheckList))
	body.WriteString("<h3>Details:</h3>\n<pre>")
	body.WriteString(formatDetails(result.Details))
	body.WriteString("</pre>\n")
	return s.Send(space.NotificationEmails, subject, body.String(), true)
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return "No details available"
	}
	checks := make([]string, 0, len(details))
	for k := range details {
		checks = append(checks, k)
	}
	sort.Strings(checks)

	var out strings.Builder
	for _, check := range checks {
		fmt.Fprintf(&out, "Check: %s\n", check)
		if data, ok := details[check].(map[string]interface{}); ok {
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&out, "  %s: %v\n", readableKey(k), data[k])
			}
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

func readableKey(key string) string {
	words := strings.ReplaceAll(key, "_", " ")
	if words == "" {
		return words
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

// SendHealthAlert sends the level-triggered digest email for a space's
// unhealthy monitors, grounded on HealthAlertJob._create_alert_email_body.
func (s *Sender) SendHealthAlert(space *types.Space, monitors []*types.Monitor, thresholdHours float64) bool {
	subject := fmt.Sprintf("Health Alert: %d monitor(s) unhealthy in %s", len(monitors), space.Name)

	now := time.Now()
	var body strings.Builder
	fmt.Fprintf(&body, "<h2>Health Alert for Space: %s</h2>\n", space.Name)
	fmt.Fprintf(&body, "<p>The following monitors have been unhealthy for more than %.0f hours:</p>\n", thresholdHours)

	for _, m := range monitors {
		lastHealthy := "Never been healthy"
		if m.LastHealthyAt != nil {
			hours := int(now.Sub(*m.LastHealthyAt).Hours())
			lastHealthy = fmt.Sprintf("%d hours ago (%s)", hours, m.LastHealthyAt.Format("2006-01-02 15:04:05"))
		}
		lastChecked := "Never checked"
		if m.LastCheckedAt != nil {
			lastChecked = m.LastCheckedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&body, `<div><strong>%s</strong><br>Type: %s<br>Status: %s<br>Last Healthy: %s<br>Last Checked: %s</div>`+"\n",
			m.Name, m.MonitorType, m.Status, lastHealthy, lastChecked)
	}
	fmt.Fprintf(&body, "<p>Generated at %s.</p>\n", now.Format("2006-01-02 15:04:05"))

	return s.Send(space.NotificationEmails, subject, body.String(), true)
}
