package sysex

// Assembler rebuilds system exclusive messages from live MIDI input, where a
// message may be split across packets and interleaved with real-time bytes.
//
// It follows the ParseStream rules except that real-time status bytes
// (0xF8-0xFF) are ignored instead of ending the open message.
// An Assembler is not safe for concurrent use.
type Assembler struct {
	inMessage bool
	timestamp uint64
	buf       []byte
}

// Write consumes the next chunk of input and returns the messages it completed.
// timestamp is recorded on a message when its 0xF0 is seen.
func (a *Assembler) Write(timestamp uint64, p []byte) []*Message {
	var done []*Message
	for _, b := range p {
		if b >= 0xF8 {
			continue
		}
		if a.inMessage {
			if b < 0x80 {
				a.buf = append(a.buf, b)
				continue
			}
			done = a.close(done, b == EndByte)
		}
		if b == StartByte {
			a.inMessage = true
			a.timestamp = timestamp
			a.buf = a.buf[:0]
		}
	}
	return done
}

// Flush returns the open message, if any, as received without EOX.
func (a *Assembler) Flush() *Message {
	if !a.inMessage {
		return nil
	}
	done := a.close(nil, false)
	if len(done) == 0 {
		return nil
	}
	return done[0]
}

// InMessage reports whether a message is currently open.
func (a *Assembler) InMessage() bool {
	return a.inMessage
}

// PendingBytes is the number of payload bytes in the open message.
func (a *Assembler) PendingBytes() int {
	return len(a.buf)
}

// Reset discards any partial message.
func (a *Assembler) Reset() {
	a.inMessage = false
	a.buf = a.buf[:0]
}

func (a *Assembler) close(done []*Message, eox bool) []*Message {
	a.inMessage = false
	if len(a.buf) == 0 {
		return done
	}
	m := NewMessage(a.buf)
	m.ReceivedWithEOX = eox
	m.Timestamp = a.timestamp
	a.buf = a.buf[:0]
	return append(done, m)
}
