// Package library keeps a directory of sysex dumps together with a YAML index
// describing them.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/sysex"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// IndexFileName is the index kept at the root of a library directory.
const IndexFileName = "library.yaml"

const indexVersion = 1

var (
	ErrNotFound = errors.New("library entry not found")
	ErrNoSysEx  = errors.New("file contains no sysex messages")
)

// Entry describes one file of the library.
type Entry struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	File         string    `yaml:"file"`
	Format       string    `yaml:"format"`
	Messages     int       `yaml:"messages"`
	Bytes        int       `yaml:"bytes"`
	Manufacturer string    `yaml:"manufacturer,omitempty"`
	Added        time.Time `yaml:"added"`
}

type index struct {
	Version int     `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// Library is a directory of .syx and .mid files. It is safe for concurrent use.
type Library struct {
	dir    string
	logger contracts.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// Open loads the library in dir, creating the directory if needed.
func Open(dir string, logger contracts.Logger) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	l := &Library{dir: dir, logger: logger, now: time.Now}

	data, err := os.ReadFile(l.indexPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("new sysex library", logger.Field().String("dir", dir))
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("reading library index: %w", err)
	}

	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", IndexFileName, err)
	}
	if idx.Version > indexVersion {
		return nil, fmt.Errorf("%s has unsupported version %d", IndexFileName, idx.Version)
	}
	l.entries = idx.Entries

	logger.Info("sysex library loaded",
		logger.Field().String("dir", dir),
		logger.Field().Int("entries", len(l.entries)))
	return l, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

func (l *Library) indexPath() string {
	return filepath.Join(l.dir, IndexFileName)
}

// Entries returns a snapshot of the library entries, in the order they were added.
func (l *Library) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Entry returns the entry with the given id.
func (l *Library) Entry(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.find(id)
	if i < 0 {
		return Entry{}, false
	}
	return l.entries[i], true
}

func (l *Library) find(id string) int {
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (l *Library) findFile(file string) int {
	for i, e := range l.entries {
		if e.File == file {
			return i
		}
	}
	return -1
}

// Import adds the sysex file at path. Files outside the library directory
// are copied into it; files already inside are referenced in place.
func (l *Library) Import(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	messages := sysex.DecodeFile(data)
	if len(messages) == 0 {
		return Entry{}, fmt.Errorf("%s: %w", path, ErrNoSysEx)
	}
	format := sysex.DetectFormat(data)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	l.mu.Lock()
	defer l.mu.Unlock()

	file, inside := l.relative(path)
	if inside {
		if i := l.findFile(file); i >= 0 {
			return l.refreshLocked(i, messages)
		}
	} else {
		file = l.freeFileName(name, format)
		if err := os.WriteFile(filepath.Join(l.dir, file), data, 0o644); err != nil {
			return Entry{}, fmt.Errorf("copying into library: %w", err)
		}
	}

	entry := l.newEntry(name, file, format, messages)
	if err := l.appendLocked(entry); err != nil {
		if !inside {
			os.Remove(filepath.Join(l.dir, file))
		}
		return Entry{}, err
	}

	l.logger.Info("sysex file imported",
		l.logger.Field().String("name", name),
		l.logger.Field().Int("messages", entry.Messages))
	return entry, nil
}

// ImportFiles imports every path and returns the entries that succeeded
// together with the combined errors of those that did not.
func (l *Library) ImportFiles(paths []string) ([]Entry, error) {
	var (
		imported []Entry
		errs     error
	)
	for _, path := range paths {
		entry, err := l.Import(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		imported = append(imported, entry)
	}
	return imported, errs
}

// Add stores messages, typically a recording, as a new file in the library.
func (l *Library) Add(name string, messages []*sysex.Message, format sysex.Format) (Entry, error) {
	if len(messages) == 0 {
		return Entry{}, ErrNoSysEx
	}
	data, err := sysex.EncodeFile(messages, format)
	if err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file := l.freeFileName(name, format)
	if err := os.WriteFile(filepath.Join(l.dir, file), data, 0o644); err != nil {
		return Entry{}, err
	}

	entry := l.newEntry(name, file, format, messages)
	if err := l.appendLocked(entry); err != nil {
		os.Remove(filepath.Join(l.dir, file))
		return Entry{}, err
	}

	l.logger.Info("sysex recording stored",
		l.logger.Field().String("name", name),
		l.logger.Field().String("file", file))
	return entry, nil
}

// appendLocked adds entry to the index. The index is left unchanged when it
// cannot be saved.
func (l *Library) appendLocked(entry Entry) error {
	l.entries = append(l.entries, entry)
	if err := l.saveLocked(); err != nil {
		l.entries = l.entries[:len(l.entries)-1]
		return err
	}
	return nil
}

// refreshLocked updates the summary of entry i from the current content of
// its file, which may have grown since it was first indexed.
func (l *Library) refreshLocked(i int, messages []*sysex.Message) (Entry, error) {
	previous := l.entries[i]
	updated := previous
	summarize(&updated, messages)
	if updated == previous {
		return previous, nil
	}

	l.entries[i] = updated
	if err := l.saveLocked(); err != nil {
		l.entries[i] = previous
		return Entry{}, err
	}
	l.logger.Info("sysex file updated",
		l.logger.Field().String("file", updated.File),
		l.logger.Field().Int("messages", updated.Messages))
	return updated, nil
}

// Messages reads the messages of an entry from disk.
func (l *Library) Messages(id string) ([]*sysex.Message, error) {
	entry, ok := l.Entry(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, entry.File))
	if err != nil {
		return nil, err
	}
	return sysex.DecodeFile(data), nil
}

// Export writes the messages of an entry to path in the given format.
func (l *Library) Export(id, path string, format sysex.Format) error {
	messages, err := l.Messages(id)
	if err != nil {
		return err
	}
	data, err := sysex.EncodeFile(messages, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Remove drops an entry from the index. With deleteFile its file is deleted too.
func (l *Library) Remove(id string, deleteFile bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry := l.entries[i]
	l.entries = append(l.entries[:i], l.entries[i+1:]...)

	if deleteFile {
		err := os.Remove(filepath.Join(l.dir, entry.File))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return l.saveLocked()
}

// Save writes the index to disk.
func (l *Library) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

func (l *Library) saveLocked() error {
	data, err := yaml.Marshal(index{Version: indexVersion, Entries: l.entries})
	if err != nil {
		return err
	}

	tmp := l.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing library index: %w", err)
	}
	return os.Rename(tmp, l.indexPath())
}

func (l *Library) newEntry(name, file string, format sysex.Format, messages []*sysex.Message) Entry {
	entry := Entry{
		ID:       uuid.NewString(),
		Name:     name,
		File:     file,
		Format:   format.String(),
		Added:    l.now().UTC().Truncate(time.Second),
	}
	summarize(&entry, messages)
	return entry
}

// summarize fills the fields of entry derived from its messages.
func summarize(entry *Entry, messages []*sysex.Message) {
	entry.Messages = len(messages)
	entry.Bytes = 0
	for _, m := range messages {
		entry.Bytes += len(m.FullMessageData())
	}
	entry.Manufacturer = ""
	if len(messages) > 0 {
		if manufacturer, ok := messages[0].ManufacturerName(); ok {
			entry.Manufacturer = manufacturer
		}
	}
}

// relative reports whether path is a file directly inside the library directory.
func (l *Library) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	dir, err := filepath.Abs(l.dir)
	if err != nil {
		return "", false
	}
	if filepath.Dir(abs) != dir {
		return "", false
	}
	return filepath.Base(abs), true
}

func (l *Library) freeFileName(name string, format sysex.Format) string {
	base := sanitize(name)
	file := base + "." + format.String()
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(l.dir, file)); errors.Is(err, os.ErrNotExist) && l.findFile(file) < 0 {
			return file
		}
		file = fmt.Sprintf("%s-%d.%s", base, n, format)
	}
}

func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == ".." {
		return "untitled"
	}
	return clean
}
