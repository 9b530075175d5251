package handlers

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps c coherent with the tree under root: every filesystem event
// drops the affected entries. Directories created later are watched as they
// appear.
//
// It returns immediately; events are processed in a background goroutine
// that exits when stop is called.
func (c *StatCache) Watch(root string) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watchRecursive(w, root); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				c.handleEvent(w, event)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("watcher: %v", err)
			}
		}
	}()

	return func() {
		_ = w.Close()
		<-done
	}, nil
}

// watchRecursive adds a watch for dir and every subdirectory beneath it.
// Hitting the inotify watch limit is logged once and ends the walk; paths
// beyond it fall back to safetyTTL.
func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("watcher: skipping %s: %v", p, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			if errors.Is(err, syscall.ENOSPC) {
				log.Printf("watcher: inotify watch limit reached at %s; deeper paths expire after %s", p, safetyTTL)
				return filepath.SkipAll
			}
			log.Printf("watcher: could not add watch for %s: %v", p, err)
		}
		return nil
	})
}

func (c *StatCache) handleEvent(w *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := watchRecursive(w, event.Name); err != nil {
				log.Printf("watcher: could not watch new dir %s: %v", event.Name, err)
			}
		}
	}
	c.Invalidate(event.Name)
}
