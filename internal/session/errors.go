package session

import "errors"

// ErrAttachWhileParsing is returned by Attach when a partial message from
// the backend is mid-parse: attaching a client in that window is a
// programmer error, since the session has no coherent point
// to route that client into yet.
var ErrAttachWhileParsing = errors.New("session: attach called while a backend message is partially parsed")

// ErrBackendClosed is returned when an operation is attempted against a
// Backend Session actor that has already stopped, e.g. after backend loss.
var ErrBackendClosed = errors.New("session: backend session is closed")
