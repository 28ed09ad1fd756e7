package midi

import (
	"os"
	"path/filepath"
	"time"

	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/sdk/contracts"
)

const (
	// DefaultManufacturer is written on virtual endpoints unless WithManufacturer says otherwise.
	DefaultManufacturer = "midisuite"
	// DefaultCaptureBuffer is the packet channel capacity used while recording.
	DefaultCaptureBuffer = 256
)

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if there was an issue applying the options.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.ClientName == "" {
		// Register under the program name, like an application bundle would.
		options.ClientName = filepath.Base(os.Args[0])
	}
	if options.Manufacturer == "" {
		options.Manufacturer = DefaultManufacturer
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.CaptureBuffer <= 0 {
		options.CaptureBuffer = DefaultCaptureBuffer
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
