package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gantryengine/gantry/host/core"
)

// StartWatcher begins watching the config file's directory and reloads the
// live subset on writes. No-op when the config was loaded without a file.
func (c *Config) StartWatcher() error {
	if c.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: editors replace files on save and
	// a direct file watch is lost after the first rename.
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		_ = w.Close()
		return err
	}

	c.watcher = w
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.watchLoop()
	return nil
}

func (c *Config) watchLoop() {
	defer c.wg.Done()
	target := filepath.Clean(c.path)
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.Reload(); err != nil {
				core.LogWarn("config reload failed: %v", err)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("config watcher error: %v", err)
		}
	}
}

// StopWatcher stops the reload loop. Safe to call when no watcher started.
func (c *Config) StopWatcher() {
	if c.watcher == nil {
		return
	}
	close(c.done)
	_ = c.watcher.Close()
	c.wg.Wait()
	c.watcher = nil
}
