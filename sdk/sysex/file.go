package sysex

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an on-disk representation of a list of sysex messages.
type Format int

const (
	// FormatRaw is a plain stream of F0 ... F7 messages (.syx).
	FormatRaw Format = iota
	// FormatSMF is a Standard MIDI File (.mid).
	FormatSMF
)

// String returns the usual file extension of the format, without the dot.
func (f Format) String() string {
	if f == FormatSMF {
		return "mid"
	}
	return "syx"
}

// FormatForPath picks the format from a file name extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		return FormatSMF
	}
	return FormatRaw
}

// DetectFormat looks at the leading bytes: Standard MIDI Files start with "MThd".
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, []byte("MThd")) {
		return FormatSMF
	}
	return FormatRaw
}

// DecodeFile returns the messages in data, detecting the container from its content.
func DecodeFile(data []byte) []*Message {
	if DetectFormat(data) == FormatSMF {
		return ExtractFromSMF(data)
	}
	return ParseStream(data)
}

// EncodeFile serializes messages in the given format.
func EncodeFile(messages []*Message, format Format) ([]byte, error) {
	switch format {
	case FormatSMF:
		return EmbedIntoSMF(messages)
	case FormatRaw:
		data, ok := BuildStream(messages)
		if !ok {
			return nil, ErrNoMessages
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown sysex file format %d", int(format))
}
