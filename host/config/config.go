package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/gantryengine/gantry/host/core"
)

// WindowConfig describes the startup window, if the platform opens one.
type WindowConfig struct {
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	Title  string `toml:"title"`
}

// TimingConfig carries the lifecycle timing knobs. All values are
// milliseconds in the TOML file; accessors convert to durations.
type TimingConfig struct {
	ResizePollMS      int `toml:"resize_poll_ms"`
	ResizeMaxAttempts int `toml:"resize_max_attempts"`
	PresentSettleMS   int `toml:"present_settle_ms"`
	BindGraceMS       int `toml:"bind_grace_ms"`
	JoinTimeoutMS     int `toml:"join_timeout_ms"`
	PollerIntervalMS  int `toml:"poller_interval_ms"`
}

func (t TimingConfig) ResizePollInterval() time.Duration {
	return time.Duration(t.ResizePollMS) * time.Millisecond
}

func (t TimingConfig) PresentSettleDelay() time.Duration {
	return time.Duration(t.PresentSettleMS) * time.Millisecond
}

func (t TimingConfig) BindGracePeriod() time.Duration {
	return time.Duration(t.BindGraceMS) * time.Millisecond
}

func (t TimingConfig) JoinTimeout() time.Duration {
	return time.Duration(t.JoinTimeoutMS) * time.Millisecond
}

func (t TimingConfig) PollerInterval() time.Duration {
	return time.Duration(t.PollerIntervalMS) * time.Millisecond
}

// StorageConfig points at the directory holding durable host state.
type StorageConfig struct {
	StateDir string `toml:"state_dir"`
}

type fileConfig struct {
	LogLevel string        `toml:"log_level"`
	Window   WindowConfig  `toml:"window"`
	Timing   TimingConfig  `toml:"timing"`
	Storage  StorageConfig `toml:"storage"`
}

// Config is a live view over the host configuration. Window and storage
// settings are fixed at load time; timing knobs and the log level may be
// replaced at runtime by the watcher.
type Config struct {
	mu   sync.RWMutex
	path string
	cur  fileConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func defaults() fileConfig {
	return fileConfig{
		LogLevel: "info",
		Window: WindowConfig{
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
			Title:  "Gantry Host",
		},
		Timing: TimingConfig{
			ResizePollMS:      16,
			ResizeMaxAttempts: 12,
			PresentSettleMS:   400,
			BindGraceMS:       150,
			JoinTimeoutMS:     200,
			PollerIntervalMS:  250,
		},
		Storage: StorageConfig{
			StateDir: ".gantry",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error; an unreadable one is.
func Load(path string) (*Config, error) {
	c := &Config{
		path: path,
		cur:  defaults(),
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogInfo("no config file at %s, using defaults", path)
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &c.cur); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.normalize()
	return c, nil
}

// normalize clamps nonsense values back to their defaults.
func (c *Config) normalize() {
	def := defaults().Timing
	t := &c.cur.Timing
	if t.ResizePollMS <= 0 {
		t.ResizePollMS = def.ResizePollMS
	}
	if t.ResizeMaxAttempts <= 0 {
		t.ResizeMaxAttempts = def.ResizeMaxAttempts
	}
	if t.PresentSettleMS < 0 {
		t.PresentSettleMS = def.PresentSettleMS
	}
	if t.BindGraceMS < 0 {
		t.BindGraceMS = def.BindGraceMS
	}
	if t.JoinTimeoutMS <= 0 {
		t.JoinTimeoutMS = def.JoinTimeoutMS
	}
	if t.PollerIntervalMS <= 0 {
		t.PollerIntervalMS = def.PollerIntervalMS
	}
}

func (c *Config) Window() WindowConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Window
}

func (c *Config) Timing() TimingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Timing
}

func (c *Config) StateDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Storage.StateDir
}

func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.LogLevel
}

// SetTiming replaces the timing knobs. Window and storage settings are
// deliberately not settable after load.
func (c *Config) SetTiming(t TimingConfig) {
	c.mu.Lock()
	c.cur.Timing = t
	c.normalize()
	c.mu.Unlock()
}

// Reload re-reads the config file and applies the live-reloadable subset
// (timing and log level).
func (c *Config) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to re-read config %s: %w", c.path, err)
	}
	next := defaults()
	if err := toml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.cur.Timing = next.Timing
	c.cur.LogLevel = next.LogLevel
	c.normalize()
	c.mu.Unlock()

	core.SetLogLevel(next.LogLevel)
	core.LogInfo("config reloaded from %s", c.path)
	return nil
}
