package contracts

import "time"

// ClientOptions defines the configuration options for the MIDI context, capture and recorder.
type ClientOptions struct {
	Logger        Logger           // Logger for logging events and errors.
	LogLevel      LogLevel         // Level of logging to use.
	LogFilePath   string           // File path for logging if file logging is enabled.
	ClientName    string           // Name of the native MIDI client.
	Manufacturer  string           // Manufacturer stamped on virtual endpoints.
	Clock         func() time.Time // Clock used to derive unique ids.
	CaptureBuffer int              // Capacity of the packet channel between capture and recorder.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs logging to a file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithClientName sets the name under which the client registers with the MIDI subsystem.
func WithClientName(name string) Option {
	return func(opts *ClientOptions) {
		opts.ClientName = name
	}
}

// WithManufacturer sets the manufacturer property written on virtual endpoints.
func WithManufacturer(name string) Option {
	return func(opts *ClientOptions) {
		opts.Manufacturer = name
	}
}

// WithClock replaces the wall clock used for unique id generation.
func WithClock(clock func() time.Time) Option {
	return func(opts *ClientOptions) {
		opts.Clock = clock
	}
}

// WithCaptureBuffer sets the packet buffer size used while recording.
func WithCaptureBuffer(size int) Option {
	return func(opts *ClientOptions) {
		opts.CaptureBuffer = size
	}
}
