package filter

import (
	"errors"
	"fmt"

	"pgrollback/internal/wire"
)

// ErrUnexpectedAuthMessage is returned when an R or K message arrives after
// the authentication handshake has already been captured as complete
// only a ParameterStatus is legitimate at that point.
var ErrUnexpectedAuthMessage = errors.New("filter: unexpected auth-class message after handshake complete")

// BackendFilter inspects messages coming from the shared backend toward
// whichever client is currently active. It is stateless
// itself; all the state it reads and mutates lives on the BackendState it
// is given.
type BackendFilter struct{}

// NewBackendFilter constructs a BackendFilter.
func NewBackendFilter() *BackendFilter { return &BackendFilter{} }

// Filter applies the backend-side rules to one message arriving from the
// backend. The drop-list is honored before any type-specific handling: a
// message whose type matches the head of the drop-list is swallowed
// unconditionally, even if it would otherwise be an R/S/K/Z message.
func (f *BackendFilter) Filter(msg *wire.Message, backend BackendState) (Verdict, error) {
	if backend.PopDropListIfMatches(msg.Type) {
		return drop(), nil
	}

	switch msg.Type {
	case "R", "K":
		if err := f.saveAuth(msg, backend); err != nil {
			return Verdict{}, err
		}
		return transmit(msg), nil
	case "S":
		if err := f.saveAuth(msg, backend); err != nil {
			return Verdict{}, err
		}
		return transmit(msg), nil
	case "Z":
		backend.SetTransactionStatus(msg.TxStatus)
		if !backend.AuthenticationComplete() {
			backend.AppendAuthMessage(msg)
		}
		return transmit(msg), nil
	default:
		return transmit(msg), nil
	}
}

// saveAuth appends R/S/K messages to the authentication response while the
// handshake is still in flight. Once complete, a later ParameterStatus
// ('S') instead overwrites the matching entry in place so cached replies to
// future clients stay an accurate snapshot of server settings; any other
// auth-class message arriving after completion is a server protocol bug.
func (f *BackendFilter) saveAuth(msg *wire.Message, backend BackendState) error {
	if !backend.AuthenticationComplete() {
		backend.AppendAuthMessage(msg)
		return nil
	}
	if msg.Type != "S" {
		return fmt.Errorf("%w: got %q", ErrUnexpectedAuthMessage, msg.Type)
	}
	backend.OverwriteParameterStatus(msg)
	return nil
}
