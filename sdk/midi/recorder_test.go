package midi

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/sysex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	mu       sync.Mutex
	sources  []contracts.SourceInfo
	selected int
	packets  chan<- contracts.Packet
	stopped  bool
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeCapture) ListSources() ([]contracts.SourceInfo, error) {
	return f.sources, nil
}

func (f *fakeCapture) SelectSource(index int) error {
	if index < 0 || index >= len(f.sources) {
		return errors.New("invalid source index")
	}
	f.selected = index
	return nil
}

func (f *fakeCapture) StartCapture(packets chan<- contracts.Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packets = packets
}

func (f *fakeCapture) send(data ...byte) {
	f.mu.Lock()
	packets := f.packets
	f.mu.Unlock()
	packets <- contracts.Packet{Timestamp: 1, Data: data}
}

func newTestRecorder() (*Recorder, *fakeCapture) {
	capture := &fakeCapture{sources: []contracts.SourceInfo{{Name: "Port 1"}, {Name: "Port 2"}}}
	options := &contracts.ClientOptions{Logger: logger.NewNopLogger()}
	return NewRecorderWithCapture(capture, options), capture
}

func TestRecorderCollectsSysEx(t *testing.T) {
	r, capture := newTestRecorder()
	out := make(chan *sysex.Message, 4)

	require.NoError(t, r.Start(1, out))
	assert.Equal(t, 1, capture.selected)
	assert.ErrorIs(t, r.Start(1, out), ErrRecording)

	capture.send(0xF0, 0x41, 0x10)
	capture.send(0xF8, 0x42, 0xF7, 0x90, 0x3C, 0x40)

	select {
	case m := <-out:
		assert.Equal(t, []byte{0x41, 0x10, 0x42}, m.Data())
		assert.True(t, m.ReceivedWithEOX)
	case <-time.After(time.Second):
		t.Fatal("no message recorded")
	}

	capture.send(0xF0, 0x7E)
	require.Eventually(t, func() bool {
		_, _, inMessage := r.Progress()
		return inMessage
	}, time.Second, time.Millisecond)

	messages, err := r.Stop()
	require.NoError(t, err)
	assert.True(t, capture.stopped)
	require.Len(t, messages, 2)
	assert.Equal(t, []byte{0x7E}, messages[1].Data())
	assert.False(t, messages[1].ReceivedWithEOX, "the open message is kept on stop")

	count, bytes, inMessage := r.Progress()
	assert.Equal(t, 2, count)
	assert.Equal(t, 11, bytes)
	assert.False(t, inMessage)

	r.Reset()
	assert.Empty(t, r.Messages())
}

func TestRecorderInvalidSource(t *testing.T) {
	r, _ := newTestRecorder()
	assert.Error(t, r.Start(5, nil))

	messages, err := r.Stop()
	assert.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRecorderSources(t *testing.T) {
	r, _ := newTestRecorder()
	sources, err := r.Sources()
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestRecorderStopKeepsDeliveredPackets(t *testing.T) {
	for run := 0; run < 50; run++ {
		r, capture := newTestRecorder()
		require.NoError(t, r.Start(0, nil))

		for j := byte(0); j < 20; j++ {
			capture.send(0xF0, 0x41, j, 0xF7)
		}

		messages, err := r.Stop()
		require.NoError(t, err)
		require.Len(t, messages, 20)
		for j, m := range messages {
			assert.Equal(t, []byte{0x41, byte(j)}, m.Data())
			assert.True(t, m.ReceivedWithEOX)
		}
	}
}
