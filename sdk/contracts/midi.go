package contracts

// Packet is a chunk of raw MIDI bytes delivered by a Capture.
// A packet may hold several complete messages or a fragment of a sysex message.
type Packet struct {
	// Timestamp indicates when the bytes were received, in nanoseconds.
	Timestamp uint64
	// Data holds the received bytes. The receiver owns the slice.
	Data []byte
}

// Capture defines the raw MIDI input operations used by the sysex recorder.
type Capture interface {
	// Stop halts capturing and releases the selected source.
	Stop() error
	// ListSources lists all available MIDI sources.
	ListSources() ([]SourceInfo, error)
	// SelectSource connects the source at index, replacing any previous selection.
	SelectSource(index int) error
	// StartCapture starts delivering received bytes to packets.
	StartCapture(packets chan<- Packet)
}
