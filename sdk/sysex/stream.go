package sysex

// ParseStream scans data for system exclusive messages.
//
// A message starts after each 0xF0 and ends at the next byte >= 0x80; a new
// 0xF0 therefore closes the previous message. Bytes outside a message are
// skipped, empty messages are dropped, and a message still open at the end of
// data is returned without an EOX.
func ParseStream(data []byte) []*Message {
	var messages []*Message

	inMessage := false
	start := 0
	for i, b := range data {
		if inMessage && b >= 0x80 {
			messages = appendSpan(messages, data[start:i], b == EndByte)
			inMessage = false
		}
		if b == StartByte {
			inMessage = true
			start = i + 1
		}
	}
	if inMessage {
		messages = appendSpan(messages, data[start:], false)
	}

	return messages
}

func appendSpan(messages []*Message, span []byte, eox bool) []*Message {
	if len(span) == 0 {
		return messages
	}
	m := NewMessage(span)
	m.ReceivedWithEOX = eox
	return append(messages, m)
}

// BuildStream concatenates the messages as 0xF0, payload, 0xF7.
// It returns false when there are no messages.
func BuildStream(messages []*Message) ([]byte, bool) {
	if len(messages) == 0 {
		return nil, false
	}

	total := 0
	for _, m := range messages {
		total += len(m.Data()) + 2
	}

	out := make([]byte, 0, total)
	for _, m := range messages {
		out = append(out, StartByte)
		out = append(out, m.Data()...)
		out = append(out, EndByte)
	}
	return out, true
}
