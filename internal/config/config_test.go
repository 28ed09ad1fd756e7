package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/midi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
client_name: Studio Librarian
manufacturer: Acme
log_level: debug
library_dir: /tmp/sysex
capture_buffer: 1024
`))
	require.NoError(t, err)
	assert.Equal(t, "Studio Librarian", cfg.ClientName)
	assert.Equal(t, "Acme", cfg.Manufacturer)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/sysex", cfg.LibraryDir)
	assert.Equal(t, 1024, cfg.CaptureBuffer)
	assert.Empty(t, cfg.LogFile)
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "clientname: x\n"},
		{"bad log level", "log_level: chatty\n"},
		{"negative buffer", "capture_buffer: -1\n"},
		{"blank client name", "client_name: '   '\n"},
		{"not yaml", "client_name: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manufacturer: Acme\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Acme", cfg.Manufacturer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestOptions(t *testing.T) {
	cfg := &Config{
		ClientName:    "Librarian",
		Manufacturer:  "Acme",
		LogLevel:      "WARN",
		LogFile:       "/tmp/midisuite.log",
		CaptureBuffer: 32,
	}

	var options contracts.ClientOptions
	for _, opt := range cfg.Options() {
		opt(&options)
	}
	assert.Equal(t, "Librarian", options.ClientName)
	assert.Equal(t, "Acme", options.Manufacturer)
	assert.Equal(t, contracts.WarnLevel, options.LogLevel)
	assert.Equal(t, "/tmp/midisuite.log", options.LogFilePath)
	assert.Equal(t, 32, options.CaptureBuffer)

	options = contracts.ClientOptions{}
	for _, opt := range Default().Options() {
		opt(&options)
	}
	assert.Empty(t, options.ClientName)
	assert.Equal(t, midi.DefaultManufacturer, options.Manufacturer)
	assert.Equal(t, contracts.InfoLevel, options.LogLevel)
}
