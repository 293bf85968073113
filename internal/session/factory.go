package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"pgrollback/internal/metrics"
	"pgrollback/pkg/logger"
)

// Factory is the proxy factory: it lazily dials the real
// backend on the first client connection, reuses that dial for every
// subsequent client while it is alive, and serializes concurrent dial
// attempts so only one connection is ever made at a time.
type Factory struct {
	backendAddr string
	dialTimeout time.Duration
	log         *logger.Logger
	metrics     *metrics.Collector

	mu      sync.Mutex
	current *BackendSession
	dialing chan struct{} // non-nil while a dial is in flight; closed when it resolves
}

// NewFactory constructs a Factory dialing host:port for every fresh
// backend session.
func NewFactory(host string, port int, dialTimeout time.Duration, log *logger.Logger, m *metrics.Collector) *Factory {
	return &Factory{
		backendAddr: net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		dialTimeout: dialTimeout,
		log:         log,
		metrics:     m,
	}
}

// HandleConn takes ownership of a freshly accepted client connection: it
// acquires (dialing if necessary) the shared backend session, attaches the
// client, and starts relaying its bytes. It returns once the client
// disconnects.
func (f *Factory) HandleConn(conn net.Conn) {
	// acquireSession blocks until any in-flight dial resolves, which is
	// what pauses this client's reads while the backend connection is
	// first established: its read loop below doesn't start
	// until this call returns.
	sess, err := f.acquireSession()
	if err != nil {
		f.log.Warn("factory: %v", err)
		conn.Close()
		return
	}

	c := newClient(conn, sess)
	if err := sess.Attach(c); err != nil {
		f.log.Warn("factory: attach failed: %v", err)
		conn.Close()
		return
	}

	c.readLoop()
}

// acquireSession returns the current live backend session, dialing a new
// one if none is live. Concurrent callers racing to dial serialize on
// f.dialing: the loser waits for the winner's dial to finish instead of
// opening a second backend connection.
func (f *Factory) acquireSession() (*BackendSession, error) {
	f.mu.Lock()
	if f.current != nil {
		sess := f.current
		f.mu.Unlock()
		return sess, nil
	}
	if f.dialing != nil {
		waiting := f.dialing
		f.mu.Unlock()
		<-waiting
		return f.acquireSession()
	}

	f.dialing = make(chan struct{})
	dialing := f.dialing
	f.mu.Unlock()

	sess, err := f.dial()

	f.mu.Lock()
	if err == nil {
		f.current = sess
	}
	close(dialing)
	f.dialing = nil
	f.mu.Unlock()

	return sess, err
}

func (f *Factory) dial() (*BackendSession, error) {
	conn, err := net.DialTimeout("tcp", f.backendAddr, f.dialTimeout)
	if err != nil {
		if f.metrics != nil {
			f.metrics.BackendDialed("error")
		}
		return nil, fmt.Errorf("dial backend %s: %w", f.backendAddr, err)
	}
	if f.metrics != nil {
		f.metrics.BackendDialed("ok")
	}

	sess := NewBackendSession(conn, f.log, f.metrics, func() {
		f.mu.Lock()
		if f.current != nil {
			f.current = nil
		}
		f.mu.Unlock()
	})
	go sess.Run()
	return sess, nil
}

// Stop tears down the current backend session, if any, sending a synthetic
// Terminate first.
func (f *Factory) Stop() {
	f.mu.Lock()
	sess := f.current
	f.current = nil
	f.mu.Unlock()

	if sess != nil {
		sess.Stop()
	}
}

// Snapshot reports the backend address, whether a live session currently
// exists, and how many clients are attached to it — for the status page.
func (f *Factory) Snapshot() (addr string, up bool, clientCount int) {
	f.mu.Lock()
	sess := f.current
	f.mu.Unlock()

	if sess == nil {
		return f.backendAddr, false, 0
	}
	return f.backendAddr, true, sess.ClientCount()
}
