package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"pgrollback/internal/wire"
)

var (
	beginTestRe    = regexp.MustCompile(`^begin test '([^']*)';?$`)
	rollbackTestRe = regexp.MustCompile(`^rollback test '([^']*)';?$`)
)

// canonical spoofed reply sets.
var (
	spoofedBegin = []*wire.Message{
		wire.CommandComplete("BEGIN"),
		wire.ReadyForQuery(wire.InTransaction),
	}
	psycoSpoofedBegin = []*wire.Message{
		wire.CommandComplete("BEGIN"),
		wire.CommandComplete("SET"),
		wire.ReadyForQuery(wire.InTransaction),
	}
	spoofedCommit = []*wire.Message{
		wire.CommandComplete("COMMIT"),
		wire.ReadyForQuery(wire.InTransaction),
	}
	spoofedEnd = []*wire.Message{
		wire.CommandComplete("END WORK"),
		wire.ReadyForQuery(wire.InTransaction),
	}
	spoofedRollback = []*wire.Message{
		wire.CommandComplete("ROLLBACK"),
		wire.ReadyForQuery(wire.InTransaction),
	}
)

func transactionAborted() []*wire.Message {
	return []*wire.Message{
		wire.ErrorResponse(
			wire.ErrorField{Tag: 'S', Value: "ERROR"},
			wire.ErrorField{Tag: 'C', Value: "25P02"},
			wire.ErrorField{Tag: 'M', Value: "current transaction is aborted, commands ignored until end of transaction block"},
			wire.ErrorField{Tag: 'F', Value: "postgres.c"},
			wire.ErrorField{Tag: 'L', Value: "906"},
			wire.ErrorField{Tag: 'R', Value: "exec_simple_query"},
		),
		wire.ReadyForQuery(wire.Failed),
	}
}

// savepointClock supplies unique savepoint name suffixes. A naive
// wall-clock-fractional-seconds name is not collision-safe under fast test
// loops, so this implementation keeps the textual shape
// ("sp_<digits>_<digits>") but drives the second half from a monotonic
// counter instead (see NewCounterClock).
type savepointClock interface {
	next() string
}

type counterClock struct {
	n uint64
}

func (c *counterClock) next() string {
	c.n++
	return fmt.Sprintf("sp_%d_%d", time.Now().Unix(), c.n)
}

// NewCounterClock returns a savepointClock that names savepoints
// "sp_<unix-seconds>_<monotonic-counter>", keeping the familiar naming
// shape without the collision risk of a pure wall-clock suffix.
func NewCounterClock() savepointClock { return &counterClock{} }

// FrontendFilter inspects messages coming from one client toward the
// shared backend. One instance is owned per Client Session;
// its savepoint stack is private to that connection.
type FrontendFilter struct {
	savepoints []string
	clock      savepointClock
}

// NewFrontendFilter constructs a filter with its own private savepoint
// stack and naming clock.
func NewFrontendFilter(clock savepointClock) *FrontendFilter {
	if clock == nil {
		clock = NewCounterClock()
	}
	return &FrontendFilter{clock: clock}
}

// Savepoints returns a copy of the current savepoint stack (innermost
// last), mainly for tests and diagnostics.
func (f *FrontendFilter) Savepoints() []string {
	out := make([]string, len(f.savepoints))
	copy(out, f.savepoints)
	return out
}

// Filter applies the frontend-side rules to one inbound message.
func (f *FrontendFilter) Filter(msg *wire.Message, backend BackendState) Verdict {
	switch msg.Type {
	case wire.KindStartup:
		return f.filterStartup(msg, backend)
	case "X":
		return drop()
	case "Q":
		return f.filterQuery(msg, backend)
	default:
		return transmit(msg)
	}
}

// filterStartup drops every Startup beyond the first once the backend's
// handshake has already been captured, instead spoofing the cached
// authentication response straight back to the new client.
func (f *FrontendFilter) filterStartup(msg *wire.Message, backend BackendState) Verdict {
	if backend.AuthenticationComplete() {
		return Verdict{Spoof: backend.AuthResponse()}
	}
	return transmit(msg)
}

func (f *FrontendFilter) filterQuery(msg *wire.Message, backend BackendState) Verdict {
	// Lower-case for prefix matching; translations below reuse matched
	// substrings from this same lower-cased text, so an uppercase test
	// name is normalized to lowercase as a side effect.
	sql := strings.ToLower(strings.TrimSuffix(msg.QueryText, "\x00"))

	if v, ok := f.matchTestSyntax(sql, backend); ok {
		return v
	}
	if v, ok := f.matchBegin(sql, msg, backend); ok {
		return v
	}
	if v, ok := f.matchCommit(sql, msg, backend); ok {
		return v
	}
	if v, ok := f.matchEndWork(sql, msg, backend); ok {
		return v
	}
	if v, ok := f.matchRollback(sql, msg, backend); ok {
		return v
	}
	return transmit(msg)
}

func (f *FrontendFilter) matchTestSyntax(sql string, backend BackendState) (Verdict, bool) {
	if m := beginTestRe.FindStringSubmatch(sql); m != nil {
		backend.SetInTest(true)
		return translate(wire.Query("BEGIN; -- " + m[1])), true
	}
	if m := rollbackTestRe.FindStringSubmatch(sql); m != nil {
		backend.SetInTest(false)
		return translate(wire.Query("ROLLBACK; -- " + m[1])), true
	}
	return Verdict{}, false
}

func (f *FrontendFilter) matchBegin(sql string, msg *wire.Message, backend BackendState) (Verdict, bool) {
	if !strings.HasPrefix(sql, "begin") {
		return Verdict{}, false
	}

	var spoof []*wire.Message
	if strings.Contains(sql, "set transaction") {
		spoof = psycoSpoofedBegin
	} else {
		spoof = spoofedBegin
	}

	if backend.InTest() {
		name := f.clock.next()
		f.savepoints = append(f.savepoints, name)
		backend.IgnoreMessages("CZ")
		return Verdict{Transmit: []*wire.Message{wire.Query("SAVEPOINT " + name)}, Spoof: spoof}, true
	}
	return Verdict{Spoof: spoof}, true
}

func (f *FrontendFilter) matchCommit(sql string, msg *wire.Message, backend BackendState) (Verdict, bool) {
	if !strings.HasPrefix(sql, "commit") {
		return Verdict{}, false
	}
	return f.releaseSavepoint(backend, spoofedCommit), true
}

func (f *FrontendFilter) matchEndWork(sql string, msg *wire.Message, backend BackendState) (Verdict, bool) {
	if !strings.HasPrefix(sql, "end work") && !strings.HasPrefix(sql, "end transaction") {
		return Verdict{}, false
	}
	return f.releaseSavepoint(backend, spoofedEnd), true
}

func (f *FrontendFilter) matchRollback(sql string, msg *wire.Message, backend BackendState) (Verdict, bool) {
	if !strings.HasPrefix(sql, "rollback") {
		return Verdict{}, false
	}
	v := f.translateSavepoint(backend, "ROLLBACK TO SAVEPOINT %s")
	v.Spoof = spoofedRollback
	return v, true
}

// releaseSavepoint implements the shared COMMIT/END WORK handling: if the
// backend's last known transaction status is "failed", the client is told
// its commit failed instead of being given a false success.
func (f *FrontendFilter) releaseSavepoint(backend BackendState, successSpoof []*wire.Message) Verdict {
	if backend.TransactionStatus() == wire.Failed {
		return Verdict{Spoof: transactionAborted()}
	}
	v := f.translateSavepoint(backend, "RELEASE SAVEPOINT %s")
	v.Spoof = successSpoof
	return v
}

func (f *FrontendFilter) translateSavepoint(backend BackendState, sqlFormat string) Verdict {
	if backend.InTest() && len(f.savepoints) > 0 {
		name := f.savepoints[len(f.savepoints)-1]
		f.savepoints = f.savepoints[:len(f.savepoints)-1]
		backend.IgnoreMessages("CZ")
		return translate(wire.Query(fmt.Sprintf(sqlFormat, name)))
	}
	return drop()
}
