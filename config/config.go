// Package config handles hearth.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/hearth/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "hearth.toml"

// Config represents a hearth.toml file.
type Config struct {
	Heap    Heap    `toml:"heap"`
	Stack   Stack   `toml:"stack"`
	Mailbox Mailbox `toml:"mailbox"`
	Reaper  Reaper  `toml:"reaper"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the hearth.toml file (set at load time).
	Dir string `toml:"-"`
}

// Heap sizes each unit's semi-spaces, in words.
type Heap struct {
	InitialWords int `toml:"initial-words"`
	MaxWords     int `toml:"max-words"`
}

// Stack sets the value-stack ceiling, in slots.
type Stack struct {
	Ceiling int `toml:"ceiling"`
}

// Mailbox bounds each unit's mailbox. Zero means unbounded.
type Mailbox struct {
	Capacity int `toml:"capacity"`
}

// Reaper configures the registry sweep.
type Reaper struct {
	Interval string `toml:"interval"`
	Disabled bool   `toml:"disabled"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Default returns the configuration used when no hearth.toml exists.
func Default() *Config {
	d := vm.DefaultOptions()
	return &Config{
		Heap:   Heap{InitialWords: d.HeapWords, MaxWords: d.MaxHeapWords},
		Stack:  Stack{Ceiling: d.StackCeiling},
		Reaper: Reaper{Interval: d.ReapInterval.String()},
	}
}

// Load parses a hearth.toml file from the given directory. Fields missing
// from the file keep their defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a hearth.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	switch {
	case c.Heap.InitialWords < 0, c.Heap.MaxWords < 0:
		return fmt.Errorf("heap sizes must not be negative")
	case c.Heap.MaxWords > 0 && c.Heap.MaxWords < c.Heap.InitialWords:
		return fmt.Errorf("heap max-words %d is below initial-words %d", c.Heap.MaxWords, c.Heap.InitialWords)
	case c.Stack.Ceiling < 0:
		return fmt.Errorf("stack ceiling must not be negative")
	case c.Mailbox.Capacity < 0:
		return fmt.Errorf("mailbox capacity must not be negative")
	}
	if _, err := c.ReapInterval(); err != nil {
		return err
	}
	return nil
}

// ReapInterval parses the reaper interval. An empty string selects the
// default.
func (c *Config) ReapInterval() (time.Duration, error) {
	if c.Reaper.Interval == "" {
		return vm.DefaultReapInterval, nil
	}
	d, err := time.ParseDuration(c.Reaper.Interval)
	if err != nil {
		return 0, fmt.Errorf("reaper interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("reaper interval %s must be positive", d)
	}
	return d, nil
}

// Options converts the configuration to runtime options.
func (c *Config) Options() vm.Options {
	interval, err := c.ReapInterval()
	if err != nil {
		interval = vm.DefaultReapInterval
	}
	capacity := c.Mailbox.Capacity
	if capacity == 0 {
		capacity = vm.Unbounded
	}
	return vm.Options{
		HeapWords:       c.Heap.InitialWords,
		MaxHeapWords:    c.Heap.MaxWords,
		StackCeiling:    c.Stack.Ceiling,
		MailboxCapacity: capacity,
		ReapInterval:    interval,
	}
}
