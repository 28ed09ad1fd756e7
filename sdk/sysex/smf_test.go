package sysex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTrackFile is a format 1 file with a sysex event in each track.
var twoTrackFile = []byte{
	'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
	0x00, 0x01, 0x00, 0x02, 0x01, 0xE0,

	'M', 'T', 'r', 'k', 0x00, 0x00, 0x00, 0x0A,
	0x00, 0xF0, 0x03, 0x41, 0x10, 0xF7,
	0x00, 0xFF, 0x2F, 0x00,

	'M', 'T', 'r', 'k', 0x00, 0x00, 0x00, 0x0B,
	0x00, 0xF0, 0x04, 0x42, 0x01, 0x02, 0xF7,
	0x00, 0xFF, 0x2F, 0x00,
}

func TestExtractFromSMFReadsLastTrackOnly(t *testing.T) {
	got := ExtractFromSMF(twoTrackFile)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x42, 0x01, 0x02}, got[0].Data())
	assert.True(t, got[0].ReceivedWithEOX)
}

func TestExtractFromSMFMalformedInput(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("not a midi file"),
		[]byte("MThd\x00\x00"),
	}
	for _, input := range inputs {
		assert.Empty(t, ExtractFromSMF(input))
	}
}

func TestEmbedIntoSMF(t *testing.T) {
	_, err := EmbedIntoSMF(nil)
	require.ErrorIs(t, err, ErrNoMessages)

	messages := []*Message{
		NewMessage([]byte{0x41, 0x10, 0x42, 0x12}),
		NewMessage([]byte{0x00, 0x20, 0x32, 0x32, 0x7F}),
		NewMessage([]byte{0x7E, 0x7F, 0x06, 0x01}),
	}

	data, err := EmbedIntoSMF(messages)
	require.NoError(t, err)
	assert.Equal(t, "MThd", string(data[:4]))

	got := ExtractFromSMF(data)
	require.Len(t, got, len(messages))
	for i, m := range got {
		assert.Equal(t, messages[i].Data(), m.Data())
		assert.True(t, m.ReceivedWithEOX)
	}
}
