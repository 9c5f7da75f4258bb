package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/janekbaraniewski/usagesync/internal/bus"
)

// Watcher publishes a config signal on the bus whenever a settings file
// changes on disk, so the next refresh cycle picks up out-of-band edits.
type Watcher struct {
	fs    *fsnotify.Watcher
	done  chan struct{}
	files map[string]bool
}

func NewWatcher(b *bus.Bus, paths ...string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		files[filepath.Clean(p)] = true
		dirs[filepath.Dir(p)] = true
	}

	// Watch directories, not files: editors replace config files on save and
	// a file watch dies with the old inode.
	for dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watching config dir %s: %w", dir, err)
		}
	}

	w := &Watcher{fs: fs, done: make(chan struct{}), files: files}
	go w.run(b)
	return w, nil
}

func (w *Watcher) run(b *bus.Bus) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			b.Publish(bus.TopicConfig)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
