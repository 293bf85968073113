package filter

import (
	"testing"

	"pgrollback/internal/wire"
)

// fakeBackend is a minimal BackendState for exercising the filters in
// isolation, without a real backend session actor.
type fakeBackend struct {
	inTest     bool
	txStatus   wire.TransactionStatus
	authDone   bool
	authResp   []*wire.Message
	dropList   []byte
}

func (b *fakeBackend) InTest() bool                      { return b.inTest }
func (b *fakeBackend) SetInTest(v bool)                  { b.inTest = v }
func (b *fakeBackend) TransactionStatus() wire.TransactionStatus { return b.txStatus }
func (b *fakeBackend) SetTransactionStatus(s wire.TransactionStatus) { b.txStatus = s }
func (b *fakeBackend) AuthenticationComplete() bool       { return b.authDone }
func (b *fakeBackend) AuthResponse() []*wire.Message      { return b.authResp }
func (b *fakeBackend) AppendAuthMessage(m *wire.Message) {
	b.authResp = append(b.authResp, m)
	if m.Type == "Z" {
		b.authDone = true
	}
}
func (b *fakeBackend) OverwriteParameterStatus(m *wire.Message) {
	for i, x := range b.authResp {
		if x.Type == "S" && x.ParamName == m.ParamName {
			b.authResp[i] = m
		}
	}
}
func (b *fakeBackend) IgnoreMessages(codes string) {
	b.dropList = append(b.dropList, []byte(codes)...)
}
func (b *fakeBackend) PopDropListIfMatches(t string) bool {
	if len(b.dropList) == 0 || string(b.dropList[0]) != t {
		return false
	}
	b.dropList = b.dropList[1:]
	return true
}

func serializeAll(msgs []*wire.Message) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.Serialize()...)
	}
	return out
}

func TestDropTerminate(t *testing.T) {
	f := NewFrontendFilter(nil)
	v := f.Filter(wire.Terminate(), &fakeBackend{})
	if len(v.Transmit) != 0 || len(v.Spoof) != 0 {
		t.Fatalf("expected terminate to be dropped, got %#v", v)
	}
}

func TestCommitOutsideTest(t *testing.T) {
	f := NewFrontendFilter(nil)
	v := f.Filter(wire.Query("commit;"), &fakeBackend{})
	if len(v.Transmit) != 0 {
		t.Fatalf("expected nothing sent to backend, got %d messages", len(v.Transmit))
	}
	want := serializeAll([]*wire.Message{wire.CommandComplete("COMMIT"), wire.ReadyForQuery(wire.InTransaction)})
	got := serializeAll(v.Spoof)
	if string(got) != string(want) {
		t.Fatalf("spoofed reply mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestBeginInsideTest(t *testing.T) {
	f := NewFrontendFilter(&counterClock{n: 0})
	backend := &fakeBackend{inTest: true}
	v := f.Filter(wire.Query("BEGIN;"), backend)

	if len(v.Transmit) != 1 || v.Transmit[0].Type != "Q" {
		t.Fatalf("expected one Query to backend, got %#v", v.Transmit)
	}
	if got := v.Transmit[0].QueryText; len(got) < len("SAVEPOINT sp_") || got[:13] != "SAVEPOINT sp_" {
		t.Fatalf("expected a SAVEPOINT query, got %q", got)
	}
	if got := f.Savepoints(); len(got) != 1 {
		t.Fatalf("expected savepoint stack length 1, got %d", len(got))
	}
	if string(backend.dropList) != "CZ" {
		t.Fatalf("expected drop-list CZ, got %q", backend.dropList)
	}
}

func TestCommitWhileTransactionFailed(t *testing.T) {
	f := NewFrontendFilter(nil)
	backend := &fakeBackend{txStatus: wire.Failed}
	v := f.Filter(wire.Query("end work;"), backend)

	if len(v.Transmit) != 0 {
		t.Fatalf("expected zero bytes to backend, got %d messages", len(v.Transmit))
	}
	if len(v.Spoof) != 2 || v.Spoof[1].TxStatus != wire.Failed {
		t.Fatalf("expected transaction_aborted + ReadyForQuery(failed), got %#v", v.Spoof)
	}
}

func TestBackendFilterDropList(t *testing.T) {
	bf := NewBackendFilter()
	backend := &fakeBackend{dropList: []byte("CZ")}

	v, err := bf.Filter(wire.CommandComplete("SAVEPOINT"), backend)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Transmit) != 0 {
		t.Fatalf("expected C to be dropped, got %#v", v)
	}

	v, err = bf.Filter(wire.ReadyForQuery(wire.InTransaction), backend)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Transmit) != 0 {
		t.Fatalf("expected Z to be dropped, got %#v", v)
	}
	if len(backend.dropList) != 0 {
		t.Fatalf("expected drop-list drained, got %q", backend.dropList)
	}
}

func TestBackendFilterAuthReplay(t *testing.T) {
	bf := NewBackendFilter()
	backend := &fakeBackend{}

	seq := []*wire.Message{
		wire.AuthenticationOK(),
		wire.ParameterStatus("server_version", "14.0"),
		wire.ParameterStatus("client_encoding", "UTF8"),
		wire.ReadyForQuery(wire.Idle),
	}
	for _, m := range seq {
		if _, err := bf.Filter(m, backend); err != nil {
			t.Fatal(err)
		}
	}
	if !backend.authDone {
		t.Fatal("expected authentication complete after first Z")
	}
	if len(backend.authResp) != 4 {
		t.Fatalf("expected 4 cached auth messages, got %d", len(backend.authResp))
	}

	override := wire.ParameterStatus("server_version", "14.1")
	if _, err := bf.Filter(override, backend); err != nil {
		t.Fatal(err)
	}
	if backend.authResp[1].ParamValue != "14.1" {
		t.Fatalf("expected in-place override, got %q at index 1", backend.authResp[1].ParamValue)
	}
	if len(backend.authResp) != 4 {
		t.Fatalf("override must not grow authResponse, got len %d", len(backend.authResp))
	}
}

func TestStartupSpoofedWhenAuthComplete(t *testing.T) {
	f := NewFrontendFilter(nil)
	backend := &fakeBackend{authDone: true, authResp: []*wire.Message{wire.AuthenticationOK(), wire.ReadyForQuery(wire.Idle)}}

	startup := wire.Startup([]string{"user"}, map[string]string{"user": "postgres"})
	v := f.Filter(startup, backend)
	if len(v.Transmit) != 0 {
		t.Fatalf("expected Startup dropped from backend, got %#v", v.Transmit)
	}
	if string(serializeAll(v.Spoof)) != string(serializeAll(backend.authResp)) {
		t.Fatalf("expected cached auth response spoofed verbatim")
	}
}
