package midi

import (
	"github.com/leandrodaf/midisuite/sdk/contracts"
)

// NewContext connects to the native MIDI subsystem of the current operating
// system and mirrors its device graph.
//
// opts ...contracts.Option: A variadic list of option functions to customize the context.
//
// Returns:
//   - *Context: The connected context.
//   - error: ErrUnsupportedOS, or ErrClientCreate if the subsystem cannot be reached.
func NewContext(opts ...contracts.Option) (*Context, error) {
	system, err := NewSystem()
	if err != nil {
		return nil, err
	}
	return NewContextWithSystem(system, opts...)
}

// NewRecorder creates a sysex recorder on the MIDI input of the current operating system.
func NewRecorder(opts ...contracts.Option) (*Recorder, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	capture, err := NewCapture(&options)
	if err != nil {
		return nil, err
	}
	return NewRecorderWithCapture(capture, &options), nil
}
