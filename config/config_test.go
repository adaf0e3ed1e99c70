package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/byteninja/njvm/config"
	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/vm"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	options, err := config.Default().Options()
	require.NoError(t, err)
	require.Equal(t, vm.Options{
		Memory:  memory.CreateOptions{Flags: memory.InfoCreateLeakDetection, Limit: memory.NoLimit},
		Backend: vm.BackendHeap,
	}, options)
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[memory]
limit = 4096
leak_detection = true
debug = true
strict_leaks = true

[system]
backend = "arena"
arena_size = 65536
`))
	require.NoError(t, err)

	options, err := cfg.Options()
	require.NoError(t, err)
	require.Equal(t, 4096, options.Memory.Limit)
	require.Equal(t, memory.InfoCreateLeakDetection|memory.InfoCreateDebugMemory|memory.InfoCreateStrictLeakCheck, options.Memory.Flags)
	require.Equal(t, vm.BackendArena, options.Backend)
	require.Equal(t, 65536, options.ArenaSize)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[memory]
disable_limit = true
`))
	require.NoError(t, err)
	require.True(t, cfg.Memory.LeakDetection)
	require.Equal(t, memory.InfoCreateLeakDetection|memory.InfoCreateDisableLimit, cfg.Memory.Flags())
	require.Equal(t, "heap", cfg.System.Backend)
}

func TestParseErrors(t *testing.T) {
	testCases := map[string]string{
		"syntax":        "[memory\nlimit = 1",
		"unknown key":   "[memory]\nleak_detecton = true",
		"wrong type":    "[memory]\nlimit = \"lots\"",
		"bad backend":   "[system]\nbackend = \"mmap\"",
		"bad limit":     "[memory]\nlimit = -5",
		"bad arenasize": "[system]\narena_size = -1",
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "njvm.toml")
	require.NoError(t, os.WriteFile(path, []byte("[memory]\nlimit = 128\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.Memory.Limit)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
