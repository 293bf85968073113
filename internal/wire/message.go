package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"
)

// ErrUnknownMessage is returned when a typeless header's code doesn't match
// Cancel, SSLRequest, or any supported Startup protocol version.
var ErrUnknownMessage = errors.New("wire: unknown special message code")

// Special (typeless) message kinds, distinguished by a 4-byte code instead
// of a leading type byte. Cancel/SSLRequest/Startup mirror the protocol's
// own pre-handshake framing; ordinary messages use their single-byte type
// code (e.g. "Q", "R", "Z") as Type.
const (
	KindCancel     = "Cancel"
	KindSSLRequest = "SSLRequest"
	KindStartup    = "Startup"
)

const (
	cancelCode     = 0x80877102
	sslRequestCode = 0x80877103
)

// TransactionStatus is the decoded value of a ReadyForQuery ('Z') message.
type TransactionStatus string

const (
	Idle        TransactionStatus = "idle"
	Failed      TransactionStatus = "failed"
	InTransaction TransactionStatus = "transaction"
)

var transactionStatusByte = map[byte]TransactionStatus{
	'I': Idle,
	'E': Failed,
	'T': InTransaction,
}

var transactionStatusChar = map[TransactionStatus]byte{
	Idle:          'I',
	Failed:        'E',
	InTransaction: 'T',
}

// ErrorField is one (tag byte, string) pair inside an ErrorResponse.
type ErrorField struct {
	Tag   byte
	Value string
}

// Message is a tagged record for one PostgreSQL v3 protocol frame. Fields
// beyond Type/Length/Data are populated only for the message kinds that are
// actually inspected by the filters;
// everything else is carried as opaque Data and passed through unchanged.
type Message struct {
	buf          Buffer
	parsedHeader bool

	Type   string
	Length int // total bytes of the message, including the leading type byte
	Data   []byte

	// type-specific accessors, populated by parseBody.
	QueryText         string            // Q
	AuthStatus        int32             // R
	AuthSuccess       bool              // R
	TxStatus          TransactionStatus // Z
	ParamName         string            // S
	ParamValue        string            // S
	ErrorFields       []ErrorField      // E
	CommandTag        string            // C
	StartupParameters map[string]string // Startup
	CancelPID         uint32            // Cancel
	CancelSecret      uint32            // Cancel
}

// Consume appends data to the message's internal buffer and attempts to
// finish parsing it. It returns done=true once the whole message has been
// read, along with any bytes beyond this message (leftover). While done is
// false, leftover is meaningless and the caller must feed more data into
// the same Message on the next call.
func (m *Message) Consume(data []byte) (done bool, leftover []byte, err error) {
	m.buf.Append(data)

	ok, err := m.parseHeader()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}

	if m.buf.Len() < m.Length {
		return false, nil, nil
	}

	extra := m.buf.Truncate(m.Length)
	if err := m.parseBody(); err != nil {
		return false, nil, err
	}
	return true, extra, nil
}

// Serialize returns the exact wire bytes for this message.
func (m *Message) Serialize() []byte {
	raw := m.buf.Raw()
	if len(raw) > m.Length {
		raw = raw[:m.Length]
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

func (m *Message) parseHeader() (bool, error) {
	if m.parsedHeader {
		return true, nil
	}

	if len(m.buf.Remainder()) < 5 {
		return false, nil
	}

	t := m.buf.GetByte()
	if t != 0 {
		m.Type = string(t)
		// wire length doesn't include the type byte; add it back in.
		m.Length = int(m.buf.GetUint32()) + 1
	} else {
		ok, err := m.parseSpecialHeader()
		if err != nil || !ok {
			return ok, err
		}
	}

	m.parsedHeader = true
	return true, nil
}

// parseSpecialHeader parses the typeless startup-era header: a 2-byte
// length (the high 16 bits of the real 32-bit length are always zero for
// these messages, so only the low 16 bits need reading) followed by a
// 4-byte code identifying Cancel, SSLRequest, or Startup.
func (m *Message) parseSpecialHeader() (bool, error) {
	if len(m.buf.Remainder()) < 7 {
		m.buf.Reset()
		return false, nil
	}

	m.buf.GetByte() // second byte of the 32-bit length, always zero
	m.Length = int(m.buf.GetUint16())
	code := m.buf.GetUint32()

	switch {
	case code == cancelCode:
		m.Type = KindCancel
	case code == sslRequestCode:
		m.Type = KindSSLRequest
	case isStartupCode(code):
		m.Type = KindStartup
	default:
		return false, fmt.Errorf("%w: %#x", ErrUnknownMessage, code)
	}
	return true, nil
}

// isStartupCode accepts protocol major version 3 with a minor version below 2.
func isStartupCode(code uint32) bool {
	return (code>>16) == 3 && (code&0xffff) < 2
}

func (m *Message) parseBody() error {
	m.Data = append([]byte(nil), m.buf.Raw()[5:m.Length]...)
	if m.Type == KindStartup || m.Type == KindCancel || m.Type == KindSSLRequest {
		// typeless messages have an 8-byte header (incl. the leading zero
		// byte), not the 5-byte ordinary one; recompute Data accordingly.
		if m.Length >= 8 {
			m.Data = append([]byte(nil), m.buf.Raw()[8:m.Length]...)
		} else {
			m.Data = nil
		}
	}

	switch m.Type {
	case "Q":
		m.QueryText = string(m.Data)
	case "R":
		m.AuthStatus = int32(beUint32(m.Data))
		m.AuthSuccess = m.AuthStatus == 0
	case "Z":
		if len(m.Data) > 0 {
			m.TxStatus = transactionStatusByte[m.Data[0]]
		}
	case "S":
		parts := strings.SplitN(string(m.Data), "\x00", 3)
		if len(parts) >= 2 {
			m.ParamName, m.ParamValue = parts[0], parts[1]
		}
	case "E":
		var pg pgproto3.ErrorResponse
		if err := pg.Decode(m.Data); err == nil {
			m.ErrorFields = errorFieldsFromPg(&pg)
		}
	case "C":
		m.CommandTag = strings.TrimSuffix(string(m.Data), "\x00")
	case KindStartup:
		m.StartupParameters = parseDict(m.Data)
	case KindCancel:
		if len(m.Data) >= 8 {
			m.CancelPID = beUint32(m.Data[0:4])
			m.CancelSecret = beUint32(m.Data[4:8])
		}
	}
	return nil
}

func beUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// errorTagOrder lists the ErrorResponse field tags in the order real
// PostgreSQL emits them, so round-tripping a decoded ErrorResponse back
// into an ordered ErrorField slice stays deterministic for these tags.
// Tags outside this list follow them, in no fixed order.
var errorTagOrder = []byte{'S', 'V', 'C', 'M', 'D', 'H', 'P', 'p', 'q', 'W', 's', 't', 'c', 'd', 'n', 'F', 'L', 'R'}

// errorFieldsFromPg flattens a decoded pgproto3.ErrorResponse back into the
// (tag, value) pairs this codec exposes everywhere else.
func errorFieldsFromPg(e *pgproto3.ErrorResponse) []ErrorField {
	byTag := map[byte]string{
		'S': e.Severity, 'V': e.SeverityUnlocalized, 'C': e.Code, 'M': e.Message,
		'D': e.Detail, 'H': e.Hint, 'W': e.Where, 's': e.SchemaName,
		't': e.TableName, 'c': e.ColumnName, 'd': e.DataTypeName,
		'n': e.ConstraintName, 'F': e.File, 'R': e.Routine,
		'q': e.InternalQuery,
	}
	if e.Position != 0 {
		byTag['P'] = fmt.Sprintf("%d", e.Position)
	}
	if e.InternalPosition != 0 {
		byTag['p'] = fmt.Sprintf("%d", e.InternalPosition)
	}
	if e.Line != 0 {
		byTag['L'] = fmt.Sprintf("%d", e.Line)
	}

	var fields []ErrorField
	for _, tag := range errorTagOrder {
		if v, ok := byTag[tag]; ok && v != "" {
			fields = append(fields, ErrorField{Tag: tag, Value: v})
		}
	}
	for tag, v := range e.UnknownFields {
		fields = append(fields, ErrorField{Tag: tag, Value: v})
	}
	return fields
}

// pgFromErrorFields builds a pgproto3.ErrorResponse from the (tag, value)
// pairs the Filtering Protocol works with, so ErrorResponse can reuse the
// protocol library's own wire encoding instead of hand-rolling it.
func pgFromErrorFields(fields []ErrorField) *pgproto3.ErrorResponse {
	e := &pgproto3.ErrorResponse{UnknownFields: map[byte]string{}}
	for _, f := range fields {
		switch f.Tag {
		case 'S':
			e.Severity = f.Value
		case 'V':
			e.SeverityUnlocalized = f.Value
		case 'C':
			e.Code = f.Value
		case 'M':
			e.Message = f.Value
		case 'D':
			e.Detail = f.Value
		case 'H':
			e.Hint = f.Value
		case 'W':
			e.Where = f.Value
		case 's':
			e.SchemaName = f.Value
		case 't':
			e.TableName = f.Value
		case 'c':
			e.ColumnName = f.Value
		case 'd':
			e.DataTypeName = f.Value
		case 'n':
			e.ConstraintName = f.Value
		case 'F':
			e.File = f.Value
		case 'R':
			e.Routine = f.Value
		default:
			e.UnknownFields[f.Tag] = f.Value
		}
	}
	return e
}

func parseDict(data []byte) map[string]string {
	params := map[string]string{}
	parts := strings.Split(string(data), "\x00")
	var clean []string
	for _, p := range parts {
		if p != "" {
			clean = append(clean, p)
		}
	}
	for i := 0; i+1 < len(clean); i += 2 {
		params[clean[i]] = clean[i+1]
	}
	return params
}

// String renders a short human-readable form, used by debug/verbose logging.
func (m *Message) String() string {
	switch m.Type {
	case "Q":
		return "Q " + strings.TrimSuffix(m.QueryText, "\x00")
	case "S":
		return fmt.Sprintf("S %s = %s", m.ParamName, m.ParamValue)
	case "C":
		return fmt.Sprintf("C[%s]", m.CommandTag)
	case "E":
		return fmt.Sprintf("E - %v", m.ErrorFields)
	default:
		return m.Type
	}
}
