// Package config reads the settings of a VM instance from a TOML file.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/vm"
	"github.com/cockroachdb/errors"
)

// Config is the contents of a VM configuration file
type Config struct {
	Memory Memory `toml:"memory"`
	System System `toml:"system"`
}

// Memory configures the Info that owns a VM's allocations
type Memory struct {
	// Limit is the byte budget, or 0 for no limit
	Limit         int  `toml:"limit"`
	LeakDetection bool `toml:"leak_detection"`
	Debug         bool `toml:"debug"`
	DisableLimit  bool `toml:"disable_limit"`
	StrictLeaks   bool `toml:"strict_leaks"`
}

// System configures the allocator a VM's memory is drawn from
type System struct {
	Backend   string `toml:"backend"`
	ArenaSize int    `toml:"arena_size"`
}

// Default returns the configuration used when no file is provided: leak detection on, no byte
// budget, memory drawn from the Go heap
func Default() *Config {
	return &Config{
		Memory: Memory{
			Limit:         memory.NoLimit,
			LeakDetection: true,
		},
		System: System{
			Backend: string(vm.BackendHeap),
		},
	}
}

// Load parses the configuration file at path. Settings the file leaves out keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}

	return cfg, nil
}

// Parse reads a configuration from TOML. Unknown keys are rejected so that a misspelled setting is
// not silently ignored.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, errors.Newf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Memory.Limit < 0 {
		return errors.Newf("memory.limit must be 0 or a positive number of bytes, but was %d", c.Memory.Limit)
	}

	_, err := vm.ParseBackend(c.System.Backend)
	if err != nil {
		return errors.Wrap(err, "system.backend")
	}

	if c.System.ArenaSize < 0 {
		return errors.Newf("system.arena_size must be 0 or a positive number of bytes, but was %d", c.System.ArenaSize)
	}

	return nil
}

// Flags returns the creation flags selected by the memory section
func (m Memory) Flags() memory.CreateFlags {
	var flags memory.CreateFlags
	if m.LeakDetection {
		flags |= memory.InfoCreateLeakDetection
	}
	if m.Debug {
		flags |= memory.InfoCreateDebugMemory
	}
	if m.DisableLimit {
		flags |= memory.InfoCreateDisableLimit
	}
	if m.StrictLeaks {
		flags |= memory.InfoCreateStrictLeakCheck
	}

	return flags
}

// Options converts the configuration into the options used to create a VM
func (c *Config) Options() (vm.Options, error) {
	backend, err := vm.ParseBackend(c.System.Backend)
	if err != nil {
		return vm.Options{}, err
	}

	return vm.Options{
		Memory: memory.CreateOptions{
			Flags: c.Memory.Flags(),
			Limit: c.Memory.Limit,
		},
		Backend:   backend,
		ArenaSize: c.System.ArenaSize,
	}, nil
}
