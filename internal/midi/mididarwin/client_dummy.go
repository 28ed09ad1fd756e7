//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/midisuite/sdk/contracts"
)

var errUnavailable = errors.New("CoreMIDI is not available on this platform")

type DummyMIDIClient struct {
	logger contracts.Logger
}

func NewMIDIClient(options *contracts.ClientOptions) (contracts.Capture, error) {
	options.Logger.Info("Using dummy MIDI client for non-macOS system")
	return &DummyMIDIClient{
		logger: options.Logger,
	}, nil
}

// NewSystem always fails outside macOS.
func NewSystem() (contracts.MIDISystem, error) {
	return nil, errUnavailable
}

func (m *DummyMIDIClient) ListSources() ([]contracts.SourceInfo, error) {
	m.logger.Warn("ListSources called on dummy MIDI client")
	return nil, errUnavailable
}

func (m *DummyMIDIClient) SelectSource(index int) error {
	m.logger.Warn("SelectSource called on dummy MIDI client")
	return errUnavailable
}

func (m *DummyMIDIClient) StartCapture(packets chan<- contracts.Packet) {
	m.logger.Warn("StartCapture called on dummy MIDI client")
}

func (m *DummyMIDIClient) Stop() error {
	m.logger.Warn("Stop called on dummy MIDI client")
	return nil
}
