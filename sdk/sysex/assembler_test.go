package sysex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblerJoinsPackets(t *testing.T) {
	var a Assembler

	assert.Empty(t, a.Write(10, []byte{0xF0, 0x41, 0x10}))
	assert.True(t, a.InMessage())
	assert.Equal(t, 2, a.PendingBytes())

	assert.Empty(t, a.Write(11, []byte{0x42, 0x12}))

	done := a.Write(12, []byte{0x00, 0xF7, 0x90, 0x3C, 0x40})
	require.Len(t, done, 1)
	assert.Equal(t, []byte{0x41, 0x10, 0x42, 0x12, 0x00}, done[0].Data())
	assert.True(t, done[0].ReceivedWithEOX)
	assert.Equal(t, uint64(10), done[0].Timestamp)
	assert.False(t, a.InMessage())
}

func TestAssemblerSkipsRealTimeBytes(t *testing.T) {
	var a Assembler

	done := a.Write(0, []byte{0xF0, 0x43, 0xF8, 0x10, 0xFE, 0xF7})
	require.Len(t, done, 1)
	assert.Equal(t, []byte{0x43, 0x10}, done[0].Data())
}

func TestAssemblerStartByteClosesMessage(t *testing.T) {
	var a Assembler

	done := a.Write(0, []byte{0xF0, 0x41, 0xF0, 0x42, 0xF7})
	require.Len(t, done, 2)
	assert.False(t, done[0].ReceivedWithEOX)
	assert.Equal(t, []byte{0x42}, done[1].Data())
	assert.True(t, done[1].ReceivedWithEOX)
}

func TestAssemblerFlush(t *testing.T) {
	var a Assembler
	assert.Nil(t, a.Flush())

	a.Write(5, []byte{0xF0, 0x7E, 0x00})
	m := a.Flush()
	require.NotNil(t, m)
	assert.Equal(t, []byte{0x7E, 0x00}, m.Data())
	assert.False(t, m.ReceivedWithEOX)
	assert.False(t, a.InMessage())

	a.Write(6, []byte{0xF0})
	assert.Nil(t, a.Flush())
}

func TestAssemblerReset(t *testing.T) {
	var a Assembler
	a.Write(0, []byte{0xF0, 0x01, 0x02})
	a.Reset()
	assert.False(t, a.InMessage())
	assert.Empty(t, a.Write(0, []byte{0x03, 0xF7}))
}
