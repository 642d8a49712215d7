package rpc

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Handler dispatches a decoded Request to its action and returns a Response.
// Implemented by internal/control's Router and wired in at construction so
// the transport stays independent of the action set it carries.
type Handler func(req *Request) *Response

// Server is the control-protocol listener that runs inside webmond,
// accepting one JSON request per connection on a local stream socket and
// dispatching it to Handler (spec §4.8).
type Server struct {
	socketPath string
	handler    Handler

	listener net.Listener
	mu       sync.RWMutex
	shutdown bool

	shutdownChan chan struct{}
	stopOnce     sync.Once
	doneChan     chan struct{} // closed when Start's accept loop returns

	// Health and metrics
	startTime        time.Time
	lastActivityTime atomic.Value // time.Time - last request timestamp
	metrics          *Metrics

	// Connection limiting: bounded worker pool (spec §4.8/§9, default 10)
	maxConns      int
	activeConns   int32 // atomic counter
	connSemaphore chan struct{}

	// Per-connection read+send deadline
	requestTimeout time.Duration

	// Ready channel signals when the server is listening
	readyChan chan struct{}
}

// NewServer creates a control server bound to socketPath that dispatches
// every decoded request to handler.
func NewServer(socketPath string, handler Handler) *Server {
	maxConns := 10
	if env := os.Getenv("WEBMOND_MAX_CONNS"); env != "" {
		var conns int
		if _, err := fmt.Sscanf(env, "%d", &conns); err == nil && conns > 0 {
			maxConns = conns
		}
	}

	requestTimeout := 30 * time.Second
	if env := os.Getenv("WEBMOND_REQUEST_TIMEOUT"); env != "" {
		if timeout, err := time.ParseDuration(env); err == nil && timeout > 0 {
			requestTimeout = timeout
		}
	}

	s := &Server{
		socketPath:     socketPath,
		handler:        handler,
		shutdownChan:   make(chan struct{}),
		doneChan:       make(chan struct{}),
		startTime:      time.Now(),
		metrics:        NewMetrics(),
		maxConns:       maxConns,
		connSemaphore:  make(chan struct{}, maxConns),
		requestTimeout: requestTimeout,
		readyChan:      make(chan struct{}),
	}
	s.lastActivityTime.Store(time.Now())
	return s
}

// Metrics returns a point-in-time snapshot of server telemetry.
func (s *Server) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot(int(atomic.LoadInt32(&s.activeConns)))
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// LastActivity returns the timestamp of the most recently handled request.
func (s *Server) LastActivity() time.Time {
	return s.lastActivityTime.Load().(time.Time)
}
