package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midisuite/internal/midi/mididarwin"
	"github.com/leandrodaf/midisuite/internal/midi/midiwindows"
	"github.com/leandrodaf/midisuite/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no MIDI backend.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// systemInitializers maps OS names to native device-graph implementations.
var systemInitializers = map[string]func() (contracts.MIDISystem, error){
	"darwin": mididarwin.NewSystem, // CoreMIDI object graph.
}

// captureInitializers maps OS names to MIDI input implementations.
var captureInitializers = map[string]func(*contracts.ClientOptions) (contracts.Capture, error){
	"darwin":  mididarwin.NewMIDIClient,  // macOS (Darwin) input.
	"windows": midiwindows.NewMIDIClient, // Windows multimedia input.
}

// NewSystem returns the native MIDI subsystem of the current operating system.
func NewSystem() (contracts.MIDISystem, error) {
	if initializer, exists := systemInitializers[runtime.GOOS]; exists {
		return initializer()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}

// NewCapture initializes a MIDI input for the current operating system.
func NewCapture(opts *contracts.ClientOptions) (contracts.Capture, error) {
	if initializer, exists := captureInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
