//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/leandrodaf/midisuite/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIIN windows.Handle

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // Short MIDI message received
	MIM_LONGDATA  = 0x3C4 // System exclusive buffer filled
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Invalid system exclusive message
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

const (
	sysExBuffers    = 4
	sysExBufferSize = 4096
)

var ErrNoMIDIDevices = errors.New("no MIDI devices found")

// Struct representing MIDI device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// midiHdr mirrors MIDIHDR.
type midiHdr struct {
	lpData          *byte
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

// ClientMid reads raw MIDI input from one winmm input device, including
// system exclusive data delivered through long-message buffers.
type ClientMid struct {
	logger        contracts.Logger
	packetChannel atomic.Value // chan<- contracts.Packet
	handle        HMIDIIN
	portConn      bool
	stopping      atomic.Bool
	mu            sync.Mutex
	headers       [sysExBuffers]midiHdr
	buffers       [sysExBuffers][]byte
}

// Load the winmm.dll library and required functions
var (
	winmm                     = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs      = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps      = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen            = winmm.NewProc("midiInOpen")
	procMidiInStart           = winmm.NewProc("midiInStart")
	procMidiInStop            = winmm.NewProc("midiInStop")
	procMidiInReset           = winmm.NewProc("midiInReset")
	procMidiInClose           = winmm.NewProc("midiInClose")
	procMidiInPrepareHeader   = winmm.NewProc("midiInPrepareHeader")
	procMidiInUnprepareHeader = winmm.NewProc("midiInUnprepareHeader")
	procMidiInAddBuffer       = winmm.NewProc("midiInAddBuffer")
)

// The runtime limits how many callbacks a process may create.
var (
	callbackOnce sync.Once
	callback     uintptr
)

// NewMIDIClient creates a MIDI capture client for Windows.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.Capture, error) {
	options.Logger.Info("MIDI capture client created for Windows")
	callbackOnce.Do(func() { callback = windows.NewCallback(midiInCallback) })

	return &ClientMid{
		logger: options.Logger,
	}, nil
}

// ListSources lists the available MIDI input devices.
func (m *ClientMid) ListSources() ([]contracts.SourceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	sources := make([]contracts.SourceInfo, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn("Failed to get information for MIDI device", m.logger.Field().Uint32("index", i))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		sources[i] = contracts.SourceInfo{
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		}
	}
	return sources, nil
}

// SelectSource opens the input device at index and queues the sysex buffers.
func (m *ClientMid) SelectSource(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portConn {
		if err := m.stopCapture(); err != nil {
			return fmt.Errorf("failed to stop previous MIDI capture: %w", err)
		}
	}

	fdwOpen := CALLBACK_FUNCTION | MIDI_IO_STATUS
	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(index),
		callback,
		uintptr(unsafe.Pointer(m)),
		uintptr(fdwOpen),
	)
	if r1 != 0 {
		m.logger.Error("Failed to open MIDI device",
			m.logger.Field().Int("index", index),
			m.logger.Field().Error("error", err))
		return fmt.Errorf("failed to open MIDI device %d: %v", index, err)
	}

	m.stopping.Store(false)
	for i := range m.headers {
		if err := m.addBuffer(i); err != nil {
			m.releaseDevice()
			return err
		}
	}

	m.portConn = true
	m.logger.Info("MIDI device connected", m.logger.Field().Int("index", index))
	return nil
}

func (m *ClientMid) addBuffer(i int) error {
	if m.buffers[i] == nil {
		m.buffers[i] = make([]byte, sysExBufferSize)
	}
	hdr := &m.headers[i]
	*hdr = midiHdr{
		lpData:         &m.buffers[i][0],
		dwBufferLength: sysExBufferSize,
		dwUser:         uintptr(i),
	}

	r1, _, err := procMidiInPrepareHeader.Call(uintptr(m.handle), uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
	if r1 != 0 {
		return fmt.Errorf("failed to prepare sysex buffer: %v", err)
	}
	r1, _, err = procMidiInAddBuffer.Call(uintptr(m.handle), uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
	if r1 != 0 {
		return fmt.Errorf("failed to add sysex buffer: %v", err)
	}
	return nil
}

// StartCapture starts delivering input to packets.
func (m *ClientMid) StartCapture(packets chan<- contracts.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		m.logger.Error("Cannot start capture: No MIDI device selected")
		return
	}
	if m.handle == 0 {
		m.logger.Error("Invalid MIDI device handle")
		return
	}

	m.packetChannel.Store(packets)

	r1, _, err := procMidiInStart.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error("Failed to start MIDI capture", m.logger.Field().Error("error", err))
		return
	}

	m.logger.Info("MIDI capture started")
}

// shortMessageLength returns how many bytes of a packed short message are meaningful.
func shortMessageLength(status byte) int {
	switch {
	case status >= 0xF8, status == 0xF6:
		return 1
	case status == 0xF1, status == 0xF3, status&0xF0 == 0xC0, status&0xF0 == 0xD0:
		return 2
	}
	return 3
}

// midiInCallback runs on a winmm thread.
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	m := (*ClientMid)(unsafe.Pointer(dwInstance))

	switch wMsg {
	case MIM_OPEN:
		m.logger.Debug("MIDI device opened")
	case MIM_CLOSE:
		m.logger.Debug("MIDI device closed")
	case MIM_DATA:
		raw := [3]byte{byte(dwParam1), byte(dwParam1 >> 8), byte(dwParam1 >> 16)}
		m.deliver(raw[:shortMessageLength(raw[0])])
	case MIM_LONGDATA:
		hdr := (*midiHdr)(unsafe.Pointer(dwParam1))
		if n := int(hdr.dwBytesRecorded); n > 0 {
			m.deliver(m.buffers[hdr.dwUser][:n])
		}
		if !m.stopping.Load() {
			procMidiInAddBuffer.Call(hMidiIn, dwParam1, unsafe.Sizeof(*hdr))
		}
	case MIM_ERROR, MIM_LONGERROR:
		m.logger.Error("MIDI input error", m.logger.Field().Uint32("message", wMsg))
	case MIM_MOREDATA:
		m.logger.Debug("Received MIM_MOREDATA message; ignored")
	default:
		m.logger.Warn("Unknown MIDI message", m.logger.Field().Uint32("message", wMsg))
	}

	return 0
}

func (m *ClientMid) deliver(data []byte) {
	packets, _ := m.packetChannel.Load().(chan<- contracts.Packet)
	if packets == nil {
		return
	}
	p := contracts.Packet{
		Timestamp: uint64(time.Now().UTC().UnixNano()),
		Data:      append([]byte(nil), data...),
	}
	select {
	case packets <- p:
	default:
		m.logger.Warn("MIDI packet channel is full; input discarded",
			m.logger.Field().Int("bytes", len(p.Data)))
	}
}

// Stop terminates capture and closes the device.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		m.logger.Warn("No MIDI device is connected")
		return nil
	}

	if err := m.stopCapture(); err != nil {
		return fmt.Errorf("failed to stop MIDI capture: %w", err)
	}
	m.logger.Info("MIDI capture stopped and device closed")
	return nil
}

// stopCapture stops the capture and releases resources.
func (m *ClientMid) stopCapture() error {
	if m.handle == 0 {
		return fmt.Errorf("invalid MIDI device handle")
	}

	r1, _, err := procMidiInStop.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error("Failed to stop MIDI capture", m.logger.Field().Error("error", err))
		return err
	}
	if err := m.releaseDevice(); err != nil {
		return err
	}

	m.portConn = false
	m.packetChannel.Store((chan<- contracts.Packet)(nil))
	return nil
}

// releaseDevice returns the queued sysex buffers and closes the device.
func (m *ClientMid) releaseDevice() error {
	m.stopping.Store(true)
	procMidiInReset.Call(uintptr(m.handle))
	for i := range m.headers {
		procMidiInUnprepareHeader.Call(uintptr(m.handle), uintptr(unsafe.Pointer(&m.headers[i])), unsafe.Sizeof(m.headers[i]))
	}

	r1, _, err := procMidiInClose.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error("Failed to close MIDI device", m.logger.Field().Error("error", err))
		return err
	}
	m.handle = 0
	return nil
}
