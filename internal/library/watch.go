package library

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps the index in sync with the library directory until ctx is
// cancelled. Sysex files dropped into the directory are imported and entries
// whose file disappears are removed.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return err
	}
	l.logger.Info("watching sysex library", l.logger.Field().String("dir", l.dir))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			l.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("library watcher error", l.logger.Field().Error("error", err))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Library) handleEvent(event fsnotify.Event) {
	if !isSysExFile(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		l.dropFile(filepath.Base(event.Name))
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		// A file still being written may not hold a complete message yet;
		// the next Write event retries.
		if _, err := l.Import(event.Name); err != nil && !errors.Is(err, ErrNoSysEx) {
			l.logger.Warn("cannot import sysex file",
				l.logger.Field().String("file", event.Name),
				l.logger.Field().Error("error", err))
		}
	}
}

func (l *Library) dropFile(file string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.findFile(file)
	if i < 0 {
		return
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	if err := l.saveLocked(); err != nil {
		l.logger.Warn("cannot save library index", l.logger.Field().Error("error", err))
		return
	}
	l.logger.Info("sysex file removed from library", l.logger.Field().String("file", file))
}

func isSysExFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".syx", ".mid", ".midi", ".smf":
		return true
	}
	return false
}
