package sysex

import (
	"bytes"
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// TicksPerQuarterNote is the resolution of files written by EmbedIntoSMF.
	TicksPerQuarterNote = 480
	// EventSpacingTicks separates consecutive sysex events in files written by EmbedIntoSMF.
	EventSpacingTicks = 500
)

var (
	ErrNoMessages = errors.New("no sysex messages")
	ErrWriteSMF   = errors.New("error writing standard MIDI file")
)

// ExtractFromSMF returns the sysex messages stored in the last track of a
// Standard MIDI File. Each sysex event is scanned with ParseStream, in event
// order. Data that cannot be read as a MIDI file yields no messages.
func ExtractFromSMF(data []byte) (messages []*Message) {
	defer func() {
		// The container reader is not trusted with arbitrary input.
		if recover() != nil {
			messages = nil
		}
	}()

	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil || file == nil || len(file.Tracks) == 0 {
		return nil
	}

	track := file.Tracks[len(file.Tracks)-1]
	for _, event := range track {
		raw := rawSysEx(event.Message)
		if raw == nil {
			continue
		}
		messages = append(messages, ParseStream(raw)...)
	}
	return messages
}

// rawSysEx returns the bytes of a sysex event, or nil for any other event.
// Continuation events (0xF7) carry no start byte of their own.
func rawSysEx(msg smf.Message) []byte {
	if len(msg) == 0 {
		return nil
	}
	switch msg[0] {
	case StartByte:
		return msg
	case EndByte:
		return msg[1:]
	}
	if msg[0] < 0x80 {
		// Every other event starts with a status byte, so this is a sysex body without its 0xF0.
		return append([]byte{StartByte}, msg...)
	}
	return nil
}

// EmbedIntoSMF writes the messages into a single track Standard MIDI File,
// one sysex event per message, EventSpacingTicks apart.
func EmbedIntoSMF(messages []*Message) ([]byte, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	var track smf.Track
	for i, m := range messages {
		var delta uint32
		if i > 0 {
			delta = EventSpacingTicks
		}
		track.Add(delta, midi.SysEx(m.Data()))
	}
	track.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarterNote)
	if err := file.Add(track); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteSMF, err)
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteSMF, err)
	}
	return buf.Bytes(), nil
}
