// Package filter implements the two message filters that sit between the
// wire framer and the peer transports: FrontendFilter inspects messages
// flowing from a client toward the shared backend, BackendFilter inspects
// messages flowing from the backend back to whichever client is active.
//
// A filter never touches a transport directly. It returns transmit/spoof
// message lists; the caller (the backend session actor) is responsible for
// actually writing bytes, which keeps all mutation of shared state
// (clientStack, authResponse, dropList, transactionStatus) on that one
// goroutine.
package filter

import "pgrollback/internal/wire"

// Verdict is the result of filtering one message.
type Verdict struct {
	// Transmit holds the message(s) to write to the peer (the backend, for
	// a FrontendFilter; the active client, for a BackendFilter). A nil or
	// empty slice means "drop": nothing is written.
	Transmit []*wire.Message

	// Spoof holds message(s) to write back to the filter's own connection
	// (the client that sent the inbound message), without waiting on the
	// peer. Delivered after Transmit's effects, ordered ahead of any later
	// message on this same connection.
	Spoof []*wire.Message
}

func transmit(m *wire.Message) Verdict { return Verdict{Transmit: []*wire.Message{m}} }
func translate(ms ...*wire.Message) Verdict { return Verdict{Transmit: ms} }
func drop() Verdict { return Verdict{} }

// BackendState is the subset of Backend Session state
// that the filters read and mutate. It is implemented by the backend
// session actor and must only ever be called from that actor's own
// goroutine — the filters perform no synchronization of their own.
type BackendState interface {
	InTest() bool
	SetInTest(bool)

	TransactionStatus() wire.TransactionStatus
	SetTransactionStatus(wire.TransactionStatus)

	AuthenticationComplete() bool
	AuthResponse() []*wire.Message
	AppendAuthMessage(*wire.Message)
	OverwriteParameterStatus(*wire.Message)

	IgnoreMessages(codes string)
	// PopDropListIfMatches reports whether msgType is at the head of the
	// drop-list, popping it if so.
	PopDropListIfMatches(msgType string) bool
}
