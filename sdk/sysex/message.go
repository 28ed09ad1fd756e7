// Package sysex reads and writes MIDI system exclusive messages as raw byte
// streams (.syx) and as Standard MIDI Files.
package sysex

import (
	"fmt"
	"strconv"
)

const (
	// StartByte opens a system exclusive message.
	StartByte byte = 0xF0
	// EndByte (EOX) closes a system exclusive message.
	EndByte byte = 0xF7
)

// Message is a single system exclusive message.
// The payload never includes the 0xF0 start byte or the 0xF7 end byte.
type Message struct {
	// Timestamp is the host time the message was received at, zero when unknown.
	Timestamp uint64
	// ReceivedWithEOX records whether the source stream closed the message with 0xF7.
	ReceivedWithEOX bool

	data          []byte
	cachedWithEOX []byte
}

// NewMessage returns a message holding a copy of payload.
func NewMessage(payload []byte) *Message {
	m := &Message{}
	m.SetData(payload)
	return m
}

// Data returns the payload without start and end bytes.
// The slice is owned by the message and must not be modified; use SetData.
func (m *Message) Data() []byte {
	return m.data
}

// SetData replaces the payload.
func (m *Message) SetData(payload []byte) {
	m.data = append([]byte(nil), payload...)
	m.cachedWithEOX = nil
}

// DataWithEOX returns the payload followed by 0xF7.
// The slice is cached by the message and must not be modified.
func (m *Message) DataWithEOX() []byte {
	if m.cachedWithEOX == nil {
		b := make([]byte, 0, len(m.data)+1)
		b = append(b, m.data...)
		m.cachedWithEOX = append(b, EndByte)
	}
	return m.cachedWithEOX
}

// ReceivedData returns the data as received, without the start byte.
// It ends with 0xF7 only if the message was received with one.
// Like Data, the slice must not be modified.
func (m *Message) ReceivedData() []byte {
	if m.ReceivedWithEOX {
		return m.DataWithEOX()
	}
	return m.data
}

// ReceivedDataWithStartByte returns ReceivedData prefixed with 0xF0.
func (m *Message) ReceivedDataWithStartByte() []byte {
	return withStartByte(m.ReceivedData())
}

// FullMessageData returns the complete wire form: 0xF0, payload, 0xF7.
func (m *Message) FullMessageData() []byte {
	return withStartByte(m.DataWithEOX())
}

// Len is the length of the received message including its start byte.
func (m *Message) Len() int {
	n := len(m.data) + 1
	if m.ReceivedWithEOX {
		n++
	}
	return n
}

// ManufacturerIdentifier returns the 1 or 3 byte manufacturer id at the start of the payload.
// A zero first byte announces a 3 byte id; false is returned when the payload is too short.
// The returned slice is a copy.
func (m *Message) ManufacturerIdentifier() ([]byte, bool) {
	switch {
	case len(m.data) == 0:
		return nil, false
	case m.data[0] != 0:
		return []byte{m.data[0]}, true
	case len(m.data) >= 3:
		return []byte{m.data[0], m.data[1], m.data[2]}, true
	default:
		return nil, false
	}
}

// ManufacturerName returns the name registered for the message's manufacturer id.
func (m *Message) ManufacturerName() (string, bool) {
	id, ok := m.ManufacturerIdentifier()
	if !ok {
		return "", false
	}
	return ManufacturerName(id)
}

// String describes the message the way a monitor lists it.
func (m *Message) String() string {
	size := strconv.Itoa(m.Len()) + " bytes"
	if name, ok := m.ManufacturerName(); ok {
		return fmt.Sprintf("SysEx %s %s", name, size)
	}
	return "SysEx " + size
}

func withStartByte(b []byte) []byte {
	out := make([]byte, 0, len(b)+1)
	out = append(out, StartByte)
	return append(out, b...)
}
