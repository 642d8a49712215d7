package rpc

import (
	"path/filepath"
	"testing"
	"time"
)

// echoHandler returns a Handler that always answers success, echoing the
// action name back so tests can assert a round trip occurred.
func echoHandler() Handler {
	return func(req *Request) *Response {
		if req.Action == ActionStatus {
			return SuccessResponse(map[string]interface{}{"total_monitors": 0})
		}
		return SuccessResponse(map[string]interface{}{"echo": req.Action})
	}
}

func startTestServer(t *testing.T, handler Handler) (*Server, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	server := NewServer(sockPath, handler)
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !server.WaitReady(2 * time.Second) {
		t.Fatal("server never became ready")
	}
	t.Cleanup(func() { server.Stop() })
	return server, sockPath
}

func TestTryConnectNoSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "nonexistent.sock")

	client := TryConnect(sockPath)
	if client != nil {
		t.Error("expected nil client when socket doesn't exist")
	}
}

func TestTryConnectSuccess(t *testing.T) {
	_, sockPath := startTestServer(t, echoHandler())

	client := TryConnect(sockPath)
	if client == nil {
		t.Fatal("expected client to connect successfully")
	}
	defer client.Close()

	if client.sockPath != sockPath {
		t.Errorf("sockPath = %q, want %q", client.sockPath, sockPath)
	}
}

func TestClientExecute(t *testing.T) {
	_, sockPath := startTestServer(t, echoHandler())

	client := TryConnect(sockPath)
	if client == nil {
		t.Fatal("failed to connect to server")
	}
	defer client.Close()

	resp, err := client.Execute(ActionListMonitors, map[string]interface{}{"space_id": "abc"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Fatalf("expected success response, got status %q", resp.Status)
	}
	if resp.Payload["echo"] != ActionListMonitors {
		t.Errorf("echo = %v, want %v", resp.Payload["echo"], ActionListMonitors)
	}
}

func TestClientExecuteSendsClientVersion(t *testing.T) {
	var seenVersion string
	_, sockPath := startTestServer(t, func(req *Request) *Response {
		seenVersion = req.ClientVersion
		return SuccessResponse(nil)
	})

	old := ClientVersion
	ClientVersion = "9.9.9"
	defer func() { ClientVersion = old }()

	client := TryConnect(sockPath)
	if client == nil {
		t.Fatal("failed to connect to server")
	}
	defer client.Close()

	if _, err := client.Execute(ActionStatus, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if seenVersion != "9.9.9" {
		t.Errorf("server saw client_version %q, want %q", seenVersion, "9.9.9")
	}
}

func TestClientMultipleRequests(t *testing.T) {
	_, sockPath := startTestServer(t, echoHandler())

	client := TryConnect(sockPath)
	if client == nil {
		t.Fatal("failed to connect to server")
	}
	defer client.Close()

	for i := 0; i < 5; i++ {
		resp, err := client.Execute(ActionStatus, nil)
		if err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
		if resp == nil || !resp.IsSuccess() {
			t.Fatalf("Execute %d returned non-success response: %+v", i, resp)
		}
	}
}

func TestDefaultSocketPath(t *testing.T) {
	dataDir := "/home/user/.webmond"
	expected := "/home/user/.webmond/webmond.sock"

	if got := DefaultSocketPath(dataDir); got != expected {
		t.Errorf("DefaultSocketPath(%q) = %q, want %q", dataDir, got, expected)
	}
}
