package rpc

import (
	"bufio"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"
)

// ClientVersion is this client's version string, sent with every request
// so the daemon can enforce major-version compatibility (spec §4.8 note on
// protocol versioning).
var ClientVersion = "0.0.0"

// Client is a control-protocol client that communicates with the webmond
// daemon over its local stream socket.
type Client struct {
	sockPath string
	mu       sync.Mutex
	conn     net.Conn
}

// TryConnect attempts to connect to the daemon and returns a client if
// successful. Returns nil if the daemon is not running or the socket
// doesn't exist.
func TryConnect(sockPath string) *Client {
	if !endpointExists(sockPath) {
		return nil
	}

	conn, err := dialRPC(sockPath, 2*time.Second)
	if err != nil {
		return nil
	}

	client := &Client{
		sockPath: sockPath,
		conn:     conn,
	}

	if !client.ping() {
		conn.Close()
		return nil
	}

	return client
}

// ping sends a status request to verify the daemon is responsive.
func (c *Client) ping() bool {
	resp, err := c.Execute(ActionStatus, nil)
	return err == nil && resp.IsSuccess()
}

// Execute sends action plus payload to the daemon and returns its response.
func (c *Client) Execute(action string, payload map[string]interface{}) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := dialRPC(c.sockPath, 2*time.Second)
		if err != nil {
			return nil, fmt.Errorf("client not connected: %w", err)
		}
		c.conn = conn
	}

	merged := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		merged[k] = v
	}
	merged["client_version"] = ClientVersion

	body, err := NewRequestBody(action, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	body = append(body, '\n')

	if _, err := c.conn.Write(body); err != nil {
		c.reconnect()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	scanner := bufio.NewScanner(c.conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			c.reconnect()
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		c.reconnect()
		return nil, fmt.Errorf("connection closed")
	}

	// The server closes each connection after one response, so the next
	// Execute dials a fresh one.
	c.conn.Close()
	c.conn = nil

	var resp Response
	if err := resp.UnmarshalJSON(scanner.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// reconnect attempts to reconnect to the daemon with exponential backoff.
func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var err error
	backoff := 100 * time.Millisecond

	for i := 0; i < 3; i++ {
		c.conn, err = dialRPC(c.sockPath, 2*time.Second)
		if err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	return fmt.Errorf("failed to reconnect after 3 attempts: %w", err)
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// DefaultSocketPath returns the conventional control socket location under
// runtimeDir (e.g. the daemon's configured data directory).
func DefaultSocketPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "webmond.sock")
}
