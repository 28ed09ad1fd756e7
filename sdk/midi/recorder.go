package midi

import (
	"errors"
	"sync"

	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/sysex"
)

// ErrRecording is returned when Start is called on a running recorder.
var ErrRecording = errors.New("recorder already running")

// Recorder collects system exclusive messages arriving at a MIDI source.
// Other MIDI traffic on the source is ignored.
type Recorder struct {
	capture    contracts.Capture
	logger     contracts.Logger
	bufferSize int

	mu            sync.Mutex
	assembler     sysex.Assembler
	messages      []*sysex.Message
	bytesReceived int
	recording     bool
	stop          chan struct{}
	done          chan struct{}
}

// NewRecorderWithCapture creates a recorder reading from capture.
func NewRecorderWithCapture(capture contracts.Capture, options *contracts.ClientOptions) *Recorder {
	bufferSize := options.CaptureBuffer
	if bufferSize <= 0 {
		bufferSize = DefaultCaptureBuffer
	}
	return &Recorder{
		capture:    capture,
		logger:     options.Logger,
		bufferSize: bufferSize,
	}
}

// Sources lists the sources the recorder can listen to.
func (r *Recorder) Sources() ([]contracts.SourceInfo, error) {
	return r.capture.ListSources()
}

// Start connects the source at sourceIndex and begins recording. Completed
// messages are appended to Messages and, when out is not nil, sent to out.
func (r *Recorder) Start(sourceIndex int, out chan<- *sysex.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrRecording
	}
	if err := r.capture.SelectSource(sourceIndex); err != nil {
		return err
	}

	packets := make(chan contracts.Packet, r.bufferSize)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.recording = true

	go r.receive(packets, out, r.stop, r.done)
	r.capture.StartCapture(packets)

	r.logger.Info("sysex recording started", r.logger.Field().Int("source", sourceIndex))
	return nil
}

func (r *Recorder) receive(packets <-chan contracts.Packet, out chan<- *sysex.Message, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case packet := <-packets:
			for _, m := range r.consume(packet) {
				if out == nil {
					continue
				}
				select {
				case out <- m:
				case <-stop:
					r.drain(packets, out)
					return
				}
			}
		case <-stop:
			r.drain(packets, out)
			return
		}
	}
}

// drain consumes the packets the capture delivered before it was stopped.
func (r *Recorder) drain(packets <-chan contracts.Packet, out chan<- *sysex.Message) {
	for {
		select {
		case packet := <-packets:
			for _, m := range r.consume(packet) {
				if out == nil {
					continue
				}
				select {
				case out <- m:
				default:
				}
			}
		default:
			return
		}
	}
}

func (r *Recorder) consume(packet contracts.Packet) []*sysex.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bytesReceived += len(packet.Data)
	completed := r.assembler.Write(packet.Timestamp, packet.Data)
	r.messages = append(r.messages, completed...)
	return completed
}

// Stop ends the recording. A message still open is kept as received without EOX.
// It returns every message recorded since the last Reset.
func (r *Recorder) Stop() ([]*sysex.Message, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return r.Messages(), nil
	}
	r.recording = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	err := r.capture.Stop()
	close(stop)
	<-done

	r.mu.Lock()
	if m := r.assembler.Flush(); m != nil {
		r.messages = append(r.messages, m)
	}
	count := len(r.messages)
	r.mu.Unlock()

	r.logger.Info("sysex recording stopped", r.logger.Field().Int("messages", count))
	return r.Messages(), err
}

// Messages returns the messages recorded so far.
func (r *Recorder) Messages() []*sysex.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sysex.Message(nil), r.messages...)
}

// Progress reports the number of completed messages, the number of bytes
// received and whether a message is being received right now.
func (r *Recorder) Progress() (messages, bytes int, inMessage bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), r.bytesReceived, r.assembler.InMessage()
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.bytesReceived = 0
	r.assembler.Reset()
}
