package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripCodec(t *testing.T) {
	msgs := []*Message{
		Query("select 1"),
		AuthenticationOK(),
		ReadyForQuery(InTransaction),
		ParameterStatus("server_version", "14.0"),
		CommandComplete("SELECT 1"),
		Terminate(),
		ErrorResponse(ErrorField{'S', "ERROR"}, ErrorField{'C', "25P02"}),
	}

	for _, want := range msgs {
		wire := want.Serialize()
		got := &Message{}
		done, leftover, err := got.Consume(wire)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if !done {
			t.Fatalf("expected message to be fully parsed from its own serialized bytes")
		}
		if len(leftover) != 0 {
			t.Fatalf("unexpected leftover: %q", leftover)
		}
		if got.Type != want.Type {
			t.Fatalf("type mismatch: got %q want %q", got.Type, want.Type)
		}
		if !bytes.Equal(got.Serialize(), wire) {
			t.Fatalf("serialize not stable across reparse")
		}
	}
}

func TestFramerSplitAcrossChunks(t *testing.T) {
	var f Framer

	msgs, err := f.Feed([]byte("Q\x00"))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no complete messages yet, got %d", len(msgs))
	}
	if !f.Parsing() {
		t.Fatal("expected a message to be pending")
	}

	msgs, err = f.Feed([]byte("\x00\x00\x05Nfoo"))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Type != "Q" || m.Length != 6 {
		t.Fatalf("got type=%q length=%d", m.Type, m.Length)
	}
	if string(m.Data) != "N" {
		t.Fatalf("got data=%q", m.Data)
	}
	if f.Parsing() {
		t.Fatal("framer should have no pending message after completing this one")
	}
}

func TestStartupParse(t *testing.T) {
	input := append([]byte{}, "\x00\x00\x00\x26"...)
	input = append(input, "\x00\x03\x00\x00"...)
	input = append(input, "user\x00postgres\x00"...)
	input = append(input, "database\x00master\x00"...)
	input = append(input, "extra"...)

	var f Framer
	msgs, err := f.Feed(input)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Type != KindStartup {
		t.Fatalf("expected Startup, got %q", m.Type)
	}
	if m.StartupParameters["user"] != "postgres" || m.StartupParameters["database"] != "master" {
		t.Fatalf("unexpected parameters: %#v", m.StartupParameters)
	}
}

func TestUnknownSpecialCode(t *testing.T) {
	input := []byte{0, 0, 0, 8, 0x12, 0x34, 0x56, 0x78}

	var f Framer
	_, err := f.Feed(input)
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestStreamingEquivalence(t *testing.T) {
	whole := Query("select 1").Serialize()
	whole = append(whole, CommandComplete("SELECT 1").Serialize()...)

	var whole_framer Framer
	wantMsgs, err := whole_framer.Feed(whole)
	if err != nil {
		t.Fatal(err)
	}

	var chunked Framer
	var gotMsgs []*Message
	for i := 0; i < len(whole); i++ {
		out, err := chunked.Feed(whole[i : i+1])
		if err != nil {
			t.Fatal(err)
		}
		gotMsgs = append(gotMsgs, out...)
	}

	if len(gotMsgs) != len(wantMsgs) {
		t.Fatalf("got %d messages chunked byte-by-byte, want %d", len(gotMsgs), len(wantMsgs))
	}
	for i := range gotMsgs {
		if gotMsgs[i].Type != wantMsgs[i].Type {
			t.Fatalf("message %d: got type %q want %q", i, gotMsgs[i].Type, wantMsgs[i].Type)
		}
	}
}
