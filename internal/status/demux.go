// Package status multiplexes a tiny HTTP status surface onto the same
// listening port the proxy accepts PostgreSQL connections on, the way the
// told HTTP and PostgreSQL traffic apart: by
// peeking the first bytes of each new connection.
package status

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

const peekSize = 8

// isHTTPPeek reports whether the first bytes of a connection look like the
// start of an HTTP request line.
func isHTTPPeek(peek []byte) bool {
	if len(peek) < 4 {
		return false
	}
	for _, method := range [][]byte{
		[]byte("GET "), []byte("POST "), []byte("HEAD "),
		[]byte("PUT "), []byte("DELETE "), []byte("OPTIONS "), []byte("PATCH "),
	} {
		if bytes.HasPrefix(peek, method) {
			return true
		}
	}
	return false
}

// peekedConn replays the bytes already read off the wire before handing
// off to the normal Read path.
type peekedConn struct {
	net.Conn
	peek *bytes.Reader
}

func newPeekedConn(conn net.Conn, peeked []byte) *peekedConn {
	return &peekedConn{Conn: conn, peek: bytes.NewReader(peeked)}
}

func (p *peekedConn) Read(b []byte) (int, error) {
	if p.peek != nil && p.peek.Len() > 0 {
		n, err := p.peek.Read(b)
		if err == io.EOF {
			p.peek = nil
			err = nil
		}
		if n > 0 {
			return n, err
		}
	}
	return p.Conn.Read(b)
}

// injectListener is a net.Listener whose Accept returns connections pushed
// into it from elsewhere, used to feed peeled-off HTTP connections to an
// http.Server.
type injectListener struct {
	ch   chan net.Conn
	done chan struct{}
	once sync.Once
}

func newInjectListener() *injectListener {
	return &injectListener{ch: make(chan net.Conn, 32), done: make(chan struct{})}
}

func (l *injectListener) Accept() (net.Conn, error) {
	select {
	case conn, ok := <-l.ch:
		if !ok {
			return nil, io.EOF
		}
		return conn, nil
	case <-l.done:
		return nil, io.EOF
	}
}

func (l *injectListener) push(conn net.Conn) {
	select {
	case l.ch <- conn:
	default:
		conn.Close()
	}
}

func (l *injectListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *injectListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4zero, Port: 0}
}

// Demux wraps a real listener and splits accepted connections into
// PostgreSQL-protocol connections (returned from Accept, same as a plain
// listener) and HTTP connections (fed to an injectListener an http.Server
// can Serve on).
type Demux struct {
	net.Listener
	http *injectListener
}

// NewDemux wraps listener. Callers should http.Serve(demux.HTTPListener(), ...)
// in a separate goroutine and Accept() on the Demux itself for PG traffic.
func NewDemux(listener net.Listener) *Demux {
	return &Demux{Listener: listener, http: newInjectListener()}
}

// HTTPListener returns the listener an http.Server should Serve on.
func (d *Demux) HTTPListener() net.Listener { return d.http }

// Accept blocks until a PostgreSQL connection arrives, silently routing any
// HTTP connection to the HTTP listener instead of returning it here.
func (d *Demux) Accept() (net.Conn, error) {
	for {
		conn, err := d.Listener.Accept()
		if err != nil {
			return nil, err
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		peek := make([]byte, peekSize)
		n, peekErr := conn.Read(peek)
		conn.SetReadDeadline(time.Time{})

		if peekErr != nil && n == 0 {
			conn.Close()
			continue
		}
		peek = peek[:n]
		wrapped := newPeekedConn(conn, peek)

		if isHTTPPeek(peek) {
			d.http.push(wrapped)
			continue
		}
		return wrapped, nil
	}
}

// Close closes both the underlying listener and the injected HTTP listener.
func (d *Demux) Close() error {
	d.http.Close()
	return d.Listener.Close()
}
