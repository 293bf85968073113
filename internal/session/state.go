package session

import "pgrollback/internal/wire"

// state is the Backend Session's mutable state (clientStack, cached auth
// response, transaction status, test flag, drop-list). Every field here is
// touched only from the actor's own run loop goroutine — see actor.go — so
// none of it is guarded by a mutex.
type state struct {
	clientStack []*client

	authResponse       []*wire.Message
	transactionStatus  wire.TransactionStatus
	inTest             bool
	dropList           []byte
}

// InTest implements filter.BackendState.
func (s *state) InTest() bool { return s.inTest }

// SetInTest implements filter.BackendState.
func (s *state) SetInTest(v bool) { s.inTest = v }

// TransactionStatus implements filter.BackendState.
func (s *state) TransactionStatus() wire.TransactionStatus { return s.transactionStatus }

// SetTransactionStatus implements filter.BackendState.
func (s *state) SetTransactionStatus(v wire.TransactionStatus) { s.transactionStatus = v }

// AuthenticationComplete implements filter.BackendState. The handshake is
// complete once a ReadyForQuery has been observed and cached.
func (s *state) AuthenticationComplete() bool {
	n := len(s.authResponse)
	return n > 0 && s.authResponse[n-1].Type == "Z"
}

// AuthResponse implements filter.BackendState.
func (s *state) AuthResponse() []*wire.Message { return s.authResponse }

// AppendAuthMessage implements filter.BackendState.
func (s *state) AppendAuthMessage(m *wire.Message) {
	s.authResponse = append(s.authResponse, m)
}

// OverwriteParameterStatus implements filter.BackendState: replaces the
// first cached ParameterStatus with a matching name in place, preserving
// its index, instead of appending a second entry. A name not cached yet is
// inserted just before the trailing ReadyForQuery, so the cached response
// still ends with it and stays complete.
func (s *state) OverwriteParameterStatus(m *wire.Message) {
	for i, cached := range s.authResponse {
		if cached.Type == "S" && cached.ParamName == m.ParamName {
			s.authResponse[i] = m
			return
		}
	}
	n := len(s.authResponse)
	if n == 0 {
		s.authResponse = append(s.authResponse, m)
		return
	}
	last := s.authResponse[n-1]
	s.authResponse = append(s.authResponse[:n-1], m, last)
}

// IgnoreMessages implements filter.BackendState.
func (s *state) IgnoreMessages(codes string) {
	s.dropList = append(s.dropList, []byte(codes)...)
}

// PopDropListIfMatches implements filter.BackendState.
func (s *state) PopDropListIfMatches(msgType string) bool {
	if len(s.dropList) == 0 || string(s.dropList[0]) != msgType {
		return false
	}
	s.dropList = s.dropList[1:]
	return true
}

// activate moves c to the top of the client stack, attaching it if it isn't
// already present: the client that most
// recently sent a message is the one backend replies are routed to.
func (s *state) activate(c *client) {
	s.detach(c)
	s.clientStack = append(s.clientStack, c)
}

// attach adds a newly connected client to the top of the stack, making it
// the active one that the next backend reply is routed to.
func (s *state) attach(c *client) {
	s.clientStack = append(s.clientStack, c)
}

// detach removes c from the stack, wherever it is.
func (s *state) detach(c *client) {
	for i, cur := range s.clientStack {
		if cur == c {
			s.clientStack = append(s.clientStack[:i], s.clientStack[i+1:]...)
			return
		}
	}
}

// current returns the client currently on top of the stack, or nil if none
// are attached.
func (s *state) current() *client {
	if len(s.clientStack) == 0 {
		return nil
	}
	return s.clientStack[len(s.clientStack)-1]
}
