package session

import (
	"net"
	"sync/atomic"

	"pgrollback/internal/filter"
	"pgrollback/internal/wire"
)

var nextClientID uint64

// client is one accepted client connection's Client Session: its own
// frontend filter and wire framer, wired to the shared Backend Session it
// was attached to.
type client struct {
	id     uint64
	conn   net.Conn
	framer wire.Framer
	filter *filter.FrontendFilter

	session *BackendSession
}

func newClient(conn net.Conn, session *BackendSession) *client {
	return &client{
		id:      atomic.AddUint64(&nextClientID, 1),
		conn:    conn,
		filter:  filter.NewFrontendFilter(nil),
		session: session,
	}
}

// readLoop feeds bytes read off the client's transport into the Backend
// Session actor until the connection closes or the actor stops. It must
// only be started once attach has completed — the Proxy Factory delays
// starting it for the first client on a freshly dialed backend until the
// dial itself finishes, which is how pausing/resuming that client's reads
// is implemented here.
func (c *client) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case c.session.clientDataCh <- clientData{c, data}:
			case <-c.session.stoppedCh:
				return
			}
		}
		if err != nil {
			c.session.detach(c)
			return
		}
	}
}

type clientData struct {
	client *client
	data   []byte
}
