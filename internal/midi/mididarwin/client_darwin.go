//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// ClientMid reads raw MIDI input from one CoreMIDI source.
// Packets are handed over unparsed, so sysex split across packets survives.
type ClientMid struct {
	logger        contracts.Logger
	packetChannel atomic.Value // chan<- contracts.Packet
	client        coremidi.Client
	inputPort     coremidi.InputPort
	portConn      internalPortConnection
	mu            sync.Mutex
	capturing     bool
	wg            sync.WaitGroup
}

// NewMIDIClient creates a CoreMIDI client for capturing MIDI input on macOS.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.Capture, error) {
	client, err := coremidi.NewClient(options.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI capture client successfully created",
		options.Logger.Field().String("client", options.ClientName))

	return &ClientMid{
		logger: options.Logger,
		client: client,
	}, nil
}

// ListSources retrieves the available MIDI sources.
func (m *ClientMid) ListSources() ([]contracts.SourceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	infos := make([]contracts.SourceInfo, len(sources))
	for i, source := range sources {
		sourceEntity := source.Entity()
		infos[i] = contracts.SourceInfo{
			Name:         source.Name(),
			EntityName:   sourceEntity.Name(),
			Manufacturer: sourceEntity.Manufacturer(),
		}
	}
	return infos, nil
}

// SelectSource connects the source at index, disconnecting any previous one.
func (m *ClientMid) SelectSource(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if index < 0 || index >= len(sources) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("index", index))
		return ErrInvalidMIDIDevice
	}

	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}

	source := sources[index]
	m.logger.Info("MIDI source selected",
		m.logger.Field().Int("index", index),
		m.logger.Field().String("name", source.Name()))

	m.inputPort, err = coremidi.NewInputPort(m.client, "SysEx Input", m.handlePacket)
	if err != nil {
		m.logger.Error(ErrCreateInputPort.Error(), m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}

	m.portConn, err = m.inputPort.Connect(source)
	if err != nil {
		m.logger.Error(ErrMIDIConnectionError.Error(), m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	m.logger.Info("MIDI source successfully connected")
	return nil
}

// handlePacket runs on a CoreMIDI thread.
func (m *ClientMid) handlePacket(_ coremidi.Source, packet coremidi.Packet) {
	m.wg.Add(1)
	defer m.wg.Done()

	packets, _ := m.packetChannel.Load().(chan<- contracts.Packet)
	if packets == nil || len(packet.Data) == 0 {
		return
	}

	p := contracts.Packet{
		Timestamp: uint64(time.Now().UTC().UnixNano()),
		Data:      append([]byte(nil), packet.Data...),
	}
	select {
	case packets <- p:
	default:
		m.logger.Warn("packet buffer full; dropping MIDI input",
			m.logger.Field().Int("bytes", len(p.Data)))
	}
}

// StartCapture starts forwarding input from the selected source to packets.
func (m *ClientMid) StartCapture(packets chan<- contracts.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if packets == nil {
		m.logger.Error("StartCapture called with nil packet channel")
		return
	}

	m.logger.Info("Starting MIDI capture")
	m.packetChannel.Store(packets)
	m.capturing = true
}

// Stop halts capturing, disconnects the source and waits for in-flight packets.
// It can be called again after a new StartCapture.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.capturing {
		return nil
	}
	m.capturing = false

	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}
	m.packetChannel.Store((chan<- contracts.Packet)(nil))

	m.wg.Wait()
	m.logger.Info("MIDI capture stopped")
	return nil
}
