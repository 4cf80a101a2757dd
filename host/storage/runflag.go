// Package storage holds the durable host state that must survive process
// death. Today that is a single run flag file.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gantryengine/gantry/host/core"
)

const runFlagFileName = "runflag.toml"

type runFlagFile struct {
	Running   bool      `toml:"running"`
	SessionID string    `toml:"session_id"`
	UpdatedAt time.Time `toml:"updated_at"`
}

// RunFlag is a durable boolean recording whether an engine run loop is (or
// was, at the time the process died) active. It is written true when the run
// loop starts, cleared on clean close and on host-stopped notifications, and
// read once at process start to detect zombie sessions.
type RunFlag struct {
	path string
	mu   sync.Mutex
}

func NewRunFlag(stateDir string) *RunFlag {
	return &RunFlag{
		path: filepath.Join(stateDir, runFlagFileName),
	}
}

// Read reports the persisted running state. Missing or unparsable files read
// as false: this runs on cold start paths that must never fail.
func (f *RunFlag) Read() bool {
	running, _ := f.ReadSession()
	return running
}

// ReadSession returns the persisted state together with the session ID that
// wrote it.
func (f *RunFlag) ReadSession() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			core.LogWarn("failed to read run flag %s: %v", f.path, err)
		}
		return false, ""
	}
	var file runFlagFile
	if err := toml.Unmarshal(data, &file); err != nil {
		core.LogWarn("corrupt run flag %s, treating as not running: %v", f.path, err)
		return false, ""
	}
	return file.Running, file.SessionID
}

// Write persists the running state for the given session.
func (f *RunFlag) Write(running bool, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := toml.Marshal(runFlagFile{
		Running:   running,
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode run flag: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write run flag: %w", err)
	}
	return nil
}

// Clear resets the flag to not-running.
func (f *RunFlag) Clear() error {
	return f.Write(false, "")
}
