// Package session implements the Backend Session actor, the Client Session
// wrapper, and the Proxy Factory that ties accepted connections to a
// lazily-dialed, shared backend connection.
package session

import (
	"fmt"
	"net"

	"pgrollback/internal/filter"
	"pgrollback/internal/metrics"
	"pgrollback/internal/wire"
	"pgrollback/pkg/logger"
	"pgrollback/pkg/sqlclass"
)

// BackendSession is the single actor goroutine owning one dialed backend
// connection and every client currently sharing it. All of its mutable
// state (state.clientStack, authResponse, transactionStatus, inTest,
// dropList) is touched exclusively by the goroutine started in run():
// every other goroutine communicates with it only by channel.
type BackendSession struct {
	conn   net.Conn
	framer wire.Framer
	filter *filter.BackendFilter
	state  state

	log     *logger.Logger
	metrics *metrics.Collector

	attachCh     chan attachRequest
	detachCh     chan *client
	clientDataCh chan clientData
	backendDataCh chan []byte
	backendErrCh  chan error
	statCh        chan chan int
	stopCh        chan struct{}
	stoppedCh     chan struct{}

	onInvalidate func() // called once, from the actor goroutine, on fatal backend loss
}

type attachRequest struct {
	client *client
	result chan error
}

// NewBackendSession wraps an already-dialed backend connection in an actor.
// Call Run to start it.
func NewBackendSession(conn net.Conn, log *logger.Logger, m *metrics.Collector, onInvalidate func()) *BackendSession {
	return &BackendSession{
		conn:          conn,
		filter:        filter.NewBackendFilter(),
		log:           log,
		metrics:       m,
		attachCh:      make(chan attachRequest),
		detachCh:      make(chan *client, 8),
		clientDataCh:  make(chan clientData, 64),
		backendDataCh: make(chan []byte, 64),
		backendErrCh:  make(chan error, 1),
		statCh:        make(chan chan int),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
		onInvalidate:  onInvalidate,
	}
}

// Run starts the actor's backend reader goroutine and its own select loop.
// It blocks until the session stops, so callers run it in its own
// goroutine.
func (s *BackendSession) Run() {
	go s.readBackend()
	s.loop()
}

func (s *BackendSession) readBackend() {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.backendDataCh <- data:
			case <-s.stoppedCh:
				return
			}
		}
		if err != nil {
			select {
			case s.backendErrCh <- err:
			case <-s.stoppedCh:
			}
			return
		}
	}
}

func (s *BackendSession) loop() {
	defer close(s.stoppedCh)
	defer s.conn.Close()

	for {
		select {
		case req := <-s.attachCh:
			if s.framer.Parsing() {
				req.result <- ErrAttachWhileParsing
				continue
			}
			s.state.attach(req.client)
			if s.metrics != nil {
				s.metrics.ClientAttached()
			}
			req.result <- nil

		case c := <-s.detachCh:
			if s.framer.Parsing() {
				s.framer.Discard()
			}
			s.state.detach(c)
			if s.metrics != nil {
				s.metrics.ClientDetached()
			}

		case cd := <-s.clientDataCh:
			s.handleClientData(cd)

		case data := <-s.backendDataCh:
			if s.handleBackendData(data) {
				s.invalidate()
				return
			}

		case <-s.backendErrCh:
			s.invalidate()
			return

		case reply := <-s.statCh:
			reply <- len(s.state.clientStack)

		case <-s.stopCh:
			s.conn.Write(wire.Terminate().Serialize())
			return
		}
	}
}

// Attach registers a new client with this session. It must be called
// before the client's own read loop starts.
func (s *BackendSession) Attach(c *client) error {
	result := make(chan error, 1)
	select {
	case s.attachCh <- attachRequest{c, result}:
		return <-result
	case <-s.stoppedCh:
		return ErrBackendClosed
	}
}

// Detach removes a client, e.g. once its connection closes.
func (s *BackendSession) Detach(c *client) {
	select {
	case s.detachCh <- c:
	case <-s.stoppedCh:
	}
}

// detach is the method client.readLoop calls on disconnect.
func (s *BackendSession) detach(c *client) { s.Detach(c) }

// ClientCount returns the number of clients currently attached, for the
// status page. Safe to call from any goroutine: it round-trips through the
// actor's own loop rather than reading state.clientStack directly.
func (s *BackendSession) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case s.statCh <- reply:
		return <-reply
	case <-s.stoppedCh:
		return 0
	}
}

// Stop terminates the backend session, sending a synthetic Terminate to
// the real backend first.
func (s *BackendSession) Stop() {
	select {
	case <-s.stoppedCh:
	default:
		close(s.stopCh)
	}
	<-s.stoppedCh
}

// Stopped reports whether the session has finished running.
func (s *BackendSession) Stopped() <-chan struct{} { return s.stoppedCh }

// invalidate tears down every attached client: a backend disconnect
// invalidates the whole shared session, so each client simply
// observes its transport close rather than being silently left stranded.
func (s *BackendSession) invalidate() {
	for _, c := range s.state.clientStack {
		c.conn.Close()
	}
	if s.metrics != nil {
		s.metrics.BackendLost()
	}
	if s.onInvalidate != nil {
		s.onInvalidate()
	}
}

func (s *BackendSession) handleClientData(cd clientData) {
	msgs, err := cd.client.framer.Feed(cd.data)
	if err != nil {
		s.log.Warn("session: malformed message from client %d: %v", cd.client.id, err)
		cd.client.conn.Close()
		s.state.detach(cd.client)
		return
	}

	for _, msg := range msgs {
		s.state.activate(cd.client)
		verdict := cd.client.filter.Filter(msg, &s.state)
		s.log.Dump(fmt.Sprintf("client %d verdict", cd.client.id), verdict)

		if s.metrics != nil {
			total := 0
			for _, c := range s.state.clientStack {
				total += len(c.filter.Savepoints())
			}
			s.metrics.SavepointsActive(total)
			s.metrics.MessageFiltered("frontend", verdictLabel(verdict))
			if msg.Type == "Q" {
				s.metrics.QueryObserved(sqlclass.Classify(msg.QueryText))
			}
		}

		for _, out := range verdict.Transmit {
			raw := out.Serialize()
			if _, err := s.conn.Write(raw); err != nil {
				s.log.Warn("session: write to backend failed: %v", err)
				s.invalidate()
				return
			}
			if s.metrics != nil {
				s.metrics.BytesToBackend(len(raw))
			}
		}
		for _, out := range verdict.Spoof {
			raw := out.Serialize()
			if _, err := cd.client.conn.Write(raw); err != nil {
				s.log.Warn("session: write to client %d failed: %v", cd.client.id, err)
				s.state.detach(cd.client)
				return
			}
			if s.metrics != nil {
				s.metrics.BytesToClient(len(raw))
			}
		}
	}
}

// handleBackendData returns true if backend framing failed fatally.
func (s *BackendSession) handleBackendData(data []byte) bool {
	msgs, err := s.framer.Feed(data)
	if err != nil {
		s.log.Error("session: malformed message from backend: %v", err)
		return true
	}

	for _, msg := range msgs {
		verdict, err := s.filter.Filter(msg, &s.state)
		if err != nil {
			s.log.Error("session: %v", err)
			return true
		}

		if s.metrics != nil {
			s.metrics.MessageFiltered("backend", verdictLabel(verdict))
		}

		active := s.state.current()
		for _, out := range verdict.Transmit {
			if active == nil {
				continue
			}
			raw := out.Serialize()
			if _, err := active.conn.Write(raw); err != nil {
				s.log.Warn("session: write to active client failed: %v", err)
				s.state.detach(active)
				continue
			}
			if s.metrics != nil {
				s.metrics.BytesToClient(len(raw))
			}
		}
	}
	return false
}

func verdictLabel(v filter.Verdict) string {
	switch {
	case len(v.Transmit) > 1:
		return "translate"
	case len(v.Transmit) == 1 && len(v.Spoof) == 0:
		return "transmit"
	case len(v.Transmit) == 0 && len(v.Spoof) > 0:
		return "spoof"
	case len(v.Transmit) == 0 && len(v.Spoof) == 0:
		return "drop"
	default:
		return fmt.Sprintf("mixed(%d,%d)", len(v.Transmit), len(v.Spoof))
	}
}
