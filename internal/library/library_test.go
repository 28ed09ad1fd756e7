package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/sdk/sysex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var rolandDump = []byte{0xF0, 0x41, 0x10, 0x42, 0x12, 0xF7, 0xF0, 0x41, 0x10, 0x42, 0x13, 0xF7}

func openTemp(t *testing.T) *Library {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "lib"), logger.NewNopLogger())
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestImportCopiesIntoLibrary(t *testing.T) {
	l := openTemp(t)
	src := writeFile(t, t.TempDir(), "JV-1080 Patches.syx", rolandDump)

	entry, err := l.Import(src)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "JV-1080 Patches", entry.Name)
	assert.Equal(t, "JV-1080 Patches.syx", entry.File)
	assert.Equal(t, "syx", entry.Format)
	assert.Equal(t, 2, entry.Messages)
	assert.Equal(t, len(rolandDump), entry.Bytes)
	assert.Equal(t, "Roland", entry.Manufacturer)
	assert.FileExists(t, filepath.Join(l.Dir(), entry.File))

	again, err := l.Import(src)
	require.NoError(t, err)
	assert.Equal(t, "JV-1080 Patches-2.syx", again.File, "copies never overwrite")
	assert.Len(t, l.Entries(), 2)
}

func TestImportRejectsFilesWithoutSysEx(t *testing.T) {
	l := openTemp(t)
	src := writeFile(t, t.TempDir(), "notes.syx", []byte{0x90, 0x3C, 0x40})

	_, err := l.Import(src)
	assert.ErrorIs(t, err, ErrNoSysEx)
	assert.Empty(t, l.Entries())
}

func TestImportFilesCollectsErrors(t *testing.T) {
	l := openTemp(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.syx", rolandDump)
	empty := writeFile(t, dir, "empty.syx", nil)
	missing := filepath.Join(dir, "missing.syx")

	entries, err := l.ImportFiles([]string{good, empty, missing})
	require.Error(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestIndexIsPersisted(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lib")
	l, err := Open(dir, logger.NewNopLogger())
	require.NoError(t, err)

	entry, err := l.Add("Recording", sysex.ParseStream(rolandDump), sysex.FormatSMF)
	require.NoError(t, err)
	assert.Equal(t, "Recording.mid", entry.File)
	assert.FileExists(t, filepath.Join(dir, IndexFileName))

	reopened, err := Open(dir, logger.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, reopened.Entries(), 1)
	got := reopened.Entries()[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "mid", got.Format)
	assert.True(t, entry.Added.Equal(got.Added))

	messages, err := reopened.Messages(entry.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, []byte{0x41, 0x10, 0x42, 0x12}, messages[0].Data())
}

func TestOpenRejectsBadIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IndexFileName, []byte("entries: [unterminated"))
	_, err := Open(dir, logger.NewNopLogger())
	assert.Error(t, err)

	writeFile(t, dir, IndexFileName, []byte("version: 99\n"))
	_, err = Open(dir, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestExportConvertsFormat(t *testing.T) {
	l := openTemp(t)
	entry, err := l.Add("dump", sysex.ParseStream(rolandDump), sysex.FormatRaw)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "dump.mid")
	require.NoError(t, l.Export(entry.ID, out, sysex.FormatSMF))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, sysex.FormatSMF, sysex.DetectFormat(data))
	assert.Len(t, sysex.DecodeFile(data), 2)

	assert.ErrorIs(t, l.Export("nope", out, sysex.FormatRaw), ErrNotFound)
}

func TestRemove(t *testing.T) {
	l := openTemp(t)
	keep, err := l.Add("keep", sysex.ParseStream(rolandDump), sysex.FormatRaw)
	require.NoError(t, err)
	drop, err := l.Add("drop", sysex.ParseStream(rolandDump), sysex.FormatRaw)
	require.NoError(t, err)

	require.NoError(t, l.Remove(keep.ID, false))
	assert.FileExists(t, filepath.Join(l.Dir(), keep.File))

	require.NoError(t, l.Remove(drop.ID, true))
	assert.NoFileExists(t, filepath.Join(l.Dir(), drop.File))
	assert.Empty(t, l.Entries())
	assert.ErrorIs(t, l.Remove(drop.ID, true), ErrNotFound)
}

func TestAddSanitizesName(t *testing.T) {
	l := openTemp(t)
	entry, err := l.Add("bank a/b: 1", sysex.ParseStream(rolandDump), sysex.FormatRaw)
	require.NoError(t, err)
	assert.Equal(t, "bank a_b_ 1.syx", entry.File)

	_, err = l.Add("empty", nil, sysex.FormatRaw)
	assert.ErrorIs(t, err, ErrNoSysEx)
}

func TestWatchTracksDirectory(t *testing.T) {
	l := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	tmp := writeFile(t, t.TempDir(), "incoming.syx", rolandDump)
	require.NoError(t, os.Rename(tmp, filepath.Join(l.Dir(), "incoming.syx")))

	require.Eventually(t, func() bool {
		entries := l.Entries()
		return len(entries) == 1 && entries[0].File == "incoming.syx"
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(l.Dir(), "incoming.syx")))
	require.Eventually(t, func() bool {
		return len(l.Entries()) == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWriteEventsRefreshGrowingFile(t *testing.T) {
	l := openTemp(t)
	path := filepath.Join(l.Dir(), "dump.syx")

	require.NoError(t, os.WriteFile(path, rolandDump[:6], 0o644))
	l.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})
	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Messages)
	assert.Equal(t, 6, entries[0].Bytes)
	id := entries[0].ID

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write(append(rolandDump[6:], 0xF0, 0x43, 0x00, 0xF7))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	l.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	entries = l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, 3, entries[0].Messages)
	assert.Equal(t, 16, entries[0].Bytes)

	reopened, err := Open(l.Dir(), logger.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, reopened.Entries(), 1)
	assert.Equal(t, 3, reopened.Entries()[0].Messages)
}

func TestFailedSaveLeavesIndexUnchanged(t *testing.T) {
	l := openTemp(t)
	// A directory where the temporary index belongs makes every save fail.
	require.NoError(t, os.Mkdir(l.indexPath()+".tmp", 0o755))

	_, err := l.Add("bank", sysex.ParseStream(rolandDump), sysex.FormatRaw)
	require.Error(t, err)
	assert.Empty(t, l.Entries())
	assert.NoFileExists(t, filepath.Join(l.Dir(), "bank.syx"))

	_, err = l.Import(writeFile(t, t.TempDir(), "outside.syx", rolandDump))
	require.Error(t, err)
	assert.Empty(t, l.Entries())
	assert.NoFileExists(t, filepath.Join(l.Dir(), "outside.syx"))
}
