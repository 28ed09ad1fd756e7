package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/midi"
	"github.com/leandrodaf/midisuite/sdk/sysex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	raw := []byte{0xF0, 0x41, 0x10, 0x42, 0xF7, 0xF0, 0x43, 0x00, 0xF7}
	in := filepath.Join(dir, "bank.syx")
	require.NoError(t, os.WriteFile(in, raw, 0o644))

	mid := filepath.Join(dir, "bank.mid")
	require.NoError(t, runConvert([]string{in, mid}))
	data, err := os.ReadFile(mid)
	require.NoError(t, err)
	assert.Equal(t, sysex.FormatSMF, sysex.DetectFormat(data))

	back := filepath.Join(dir, "back.bin")
	require.NoError(t, runConvert([]string{"-format", "syx", mid, back}))
	data, err = os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestConvertRejectsEmptyInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.syx")
	require.NoError(t, os.WriteFile(in, []byte{0x90, 0x40, 0x7F}, 0o644))

	err := runConvert([]string{in, filepath.Join(dir, "out.syx")})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want sysex.Format
	}{
		{"syx", sysex.FormatRaw},
		{"RAW", sysex.FormatRaw},
		{"mid", sysex.FormatSMF},
		{"smf", sysex.FormatSMF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFormat(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseFormat("wav")
	assert.Error(t, err)
}

func TestSimulatedStudio(t *testing.T) {
	system := simulatedStudio()
	mctx, err := midi.NewContextWithSystem(system, contracts.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { mctx.Disconnect() })

	assert.Equal(t, 2, mctx.Devices().Len())
	assert.Equal(t, 1, mctx.ExternalDevices().Len())
	assert.Equal(t, 2, mctx.Sources().Len())
	assert.Equal(t, 2, mctx.Destinations().Len())

	_, ok := mctx.Sources().FindByUniqueID(0x4D2)
	assert.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go churn(ctx, system, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		mctx.ProcessPending()
		return mctx.Sources().Len() == 3
	}, 2*time.Second, 5*time.Millisecond)
}
