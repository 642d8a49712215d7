// Package httpprobe implements the HTTP/HTTPS probe engine (reachability,
// status code, content, and SSL-expiry checks) for URL monitors.
package httpprobe

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onbao165/webmonitor/internal/types"
)

const (
	errBase             = "An unexpected error occurred during monitoring"
	errConnection       = "Failed to establish connection"
	errTimeoutFmt       = "Request timed out after %d seconds"
	errStatusCodeFmt    = "Expected status code %d, got %d"
	errContent          = "Required content not found in response"
	errSSL              = "SSL/TLS verification failed"
)

// Check runs the full check sequence for a URL monitor and always returns a
// MonitorResult — probe failures never propagate as errors (spec §7).
func Check(m *types.Monitor) *types.MonitorResult {
	cfg := m.URL
	result := types.NewMonitorResult(m.ID, m.SpaceID, types.MonitorTypeURL)

	checkList := []string{"connection", "status_code"}
	if cfg.CheckContent != "" {
		checkList = append(checkList, "content")
	}
	if cfg.CheckSSL {
		checkList = append(checkList, "ssl")
	}
	result.CheckList = checkList

	start := time.Now()
	client := newClient(cfg)

	resp, err := client.Get(cfg.URL)
	if err != nil {
		result.Details["connection"] = connectionFailure(err, cfg.TimeoutSeconds)
		result.FailedChecks++
		result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
		result.Finish()
		return result
	}
	defer resp.Body.Close()

	result.Details["connection"] = map[string]interface{}{"connected": true}

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != cfg.ExpectedStatusCode {
		result.FailedChecks++
		result.Details["status_code"] = map[string]interface{}{
			"expected": cfg.ExpectedStatusCode,
			"actual":   resp.StatusCode,
			"message":  fmt.Sprintf(errStatusCodeFmt, cfg.ExpectedStatusCode, resp.StatusCode),
		}
	} else {
		result.Details["status_code"] = map[string]interface{}{
			"expected": cfg.ExpectedStatusCode,
			"actual":   resp.StatusCode,
		}
	}

	if cfg.CheckContent != "" {
		if !strings.Contains(string(body), cfg.CheckContent) {
			result.FailedChecks++
			result.Details["content"] = map[string]interface{}{
				"expected": cfg.CheckContent,
				"found":    false,
				"message":  errContent,
			}
		} else {
			result.Details["content"] = map[string]interface{}{
				"expected": cfg.CheckContent,
				"found":    true,
			}
		}
	}

	if cfg.CheckSSL {
		sslInfo, err := checkSSLExpiry(cfg.URL)
		if err != nil {
			result.FailedChecks++
			result.Details["ssl"] = map[string]interface{}{
				"message": errSSL,
				"error":   err.Error(),
			}
		} else {
			result.Details["ssl"] = sslInfo
		}
	}

	result.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
	result.Finish()
	return result
}

func newClient(cfg *types.URLMonitorConfig) *http.Client {
	transport := &http.Transport{}
	if !cfg.CheckSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	client := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		Transport: transport,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

func connectionFailure(err error, timeoutSeconds int) map[string]interface{} {
	var netErr net.Error
	if ok := asNetError(err, &netErr); ok && netErr.Timeout() {
		return map[string]interface{}{
			"connected": false,
			"message":   fmt.Sprintf(errTimeoutFmt, timeoutSeconds),
		}
	}
	if isConnectionError(err) {
		return map[string]interface{}{
			"connected": false,
			"message":   errConnection,
		}
	}
	return map[string]interface{}{
		"connected": false,
		"message":   errBase,
	}
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	for e := err; e != nil; {
		if oe, ok := e.(*net.OpError); ok {
			opErr = oe
			break
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = unwrapper.Unwrap()
	}
	return opErr != nil
}

// checkSSLExpiry performs an independent TLS handshake to the URL's host
// (port extracted from the URL, defaulting to 443) to read the peer certificate's
// expiry, mirroring get_ssl_expiry's direct-socket approach rather than
// reusing the GET response's TLS state.
func checkSSLExpiry(rawURL string) (map[string]interface{}, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("url has no host")
	}

	port := u.Port()
	if port == "" {
		port = "443"
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, port), &tls.Config{ServerName: host}) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("no peer certificate presented")
	}
	cert := state.PeerCertificates[0]

	issuer := map[string]string{
		"commonName":   cert.Issuer.CommonName,
		"organization": strings.Join(cert.Issuer.Organization, ","),
		"country":      strings.Join(cert.Issuer.Country, ","),
	}

	return map[string]interface{}{
		"expiry_date":        cert.NotAfter.Format(time.RFC3339),
		"days_until_expiry":  int(time.Until(cert.NotAfter).Hours() / 24),
		"issuer":             issuer,
	}, nil
}
