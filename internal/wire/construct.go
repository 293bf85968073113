package wire

import (
	"encoding/binary"
)

// newFromBytes builds a fully-parsed Message out of exactly the wire bytes
// it should serialize as. Every constructor below produces a round-trippable
// message: Parse(m.Serialize()) reproduces the same typed fields.
func newFromBytes(raw []byte) *Message {
	m := &Message{}
	done, _, err := m.Consume(raw)
	if err != nil || !done {
		// constructors only ever build well-formed messages; a failure
		// here means a bug in one of the functions below.
		panic("wire: malformed synthetic message")
	}
	return m
}

func put32(n int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

func stringMessage(t byte, s string) *Message {
	raw := append([]byte{t}, put32(len(s)+5)...)
	raw = append(raw, []byte(s)...)
	raw = append(raw, 0)
	return newFromBytes(raw)
}

// Query constructs a new Query ('Q') message carrying the given SQL text.
func Query(sql string) *Message {
	return stringMessage('Q', sql)
}

// AuthenticationOK constructs the AuthenticationOk ('R') reply.
func AuthenticationOK() *Message {
	raw := append([]byte{'R'}, put32(8)...)
	raw = append(raw, put32(0)...)
	return newFromBytes(raw)
}

// ReadyForQuery constructs a ReadyForQuery ('Z') message for the given status.
func ReadyForQuery(status TransactionStatus) *Message {
	raw := append([]byte{'Z'}, put32(5)...)
	raw = append(raw, transactionStatusChar[status])
	return newFromBytes(raw)
}

// ParameterStatus constructs a ParameterStatus ('S') message.
func ParameterStatus(name, value string) *Message {
	raw := append([]byte{'S'}, put32(len(name)+len(value)+2+4)...)
	raw = append(raw, []byte(name)...)
	raw = append(raw, 0)
	raw = append(raw, []byte(value)...)
	raw = append(raw, 0)
	return newFromBytes(raw)
}

// CommandComplete constructs a CommandComplete ('C') message with the given tag.
func CommandComplete(tag string) *Message {
	return stringMessage('C', tag)
}

// Terminate constructs a Terminate ('X') message.
func Terminate() *Message {
	return newFromBytes([]byte{'X', 0, 0, 0, 4})
}

// ErrorResponse constructs an ErrorResponse ('E') message from an ordered
// list of (field tag byte, value) pairs, using pgproto3's own wire encoding
// (type byte, length prefix, and all) rather than hand-assembling it here.
func ErrorResponse(fields ...ErrorField) *Message {
	raw := pgFromErrorFields(fields).Encode(nil)
	return newFromBytes(raw)
}

// Startup constructs a v3 Startup message for the given parameters. Keys are
// written in the order given by keys, so callers that need deterministic
// output (e.g. tests) should pass an explicit order.
func Startup(keys []string, params map[string]string) *Message {
	payload := []byte{0, 3, 0, 0}
	for _, k := range keys {
		payload = append(payload, []byte(k)...)
		payload = append(payload, 0)
		payload = append(payload, []byte(params[k])...)
		payload = append(payload, 0)
	}
	payload = append(payload, 0)
	raw := append(put32(len(payload)+4), payload...)
	return newFromBytes(raw)
}
