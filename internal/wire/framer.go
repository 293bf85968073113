package wire

// Framer turns an incoming byte stream into a sequence of fully parsed
// Messages, preserving a partially-read message across Feed calls. This is
// the streaming counterpart of Message.Consume: Message.Consume handles one
// message, Framer handles a continuous stream that may contain many.
type Framer struct {
	pending *Message
}

// Feed parses as many complete messages as possible out of data, resuming
// any message left over from a previous call. It never loops forever on a
// completed message: pending is cleared before the leftover bytes (if any)
// are fed back in for the next message.
func (f *Framer) Feed(data []byte) ([]*Message, error) {
	var out []*Message

	for {
		m := f.pending
		if m == nil {
			m = &Message{}
		}

		done, extra, err := m.Consume(data)
		if err != nil {
			return out, err
		}

		if !done {
			f.pending = m
			break
		}

		f.pending = nil
		out = append(out, m)

		if len(extra) == 0 {
			break
		}
		data = extra
	}

	return out, nil
}

// Parsing reports whether a message is currently partway through being read.
func (f *Framer) Parsing() bool {
	return f.pending != nil
}

// Discard force-clears any partially parsed message, e.g. when the
// connection holding it is being torn down mid-frame.
func (f *Framer) Discard() {
	f.pending = nil
}
