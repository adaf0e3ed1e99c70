package vm_test

import (
	"bytes"
	"testing"

	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/memory/system"
	"github.com/byteninja/njvm/memutils"
	"github.com/byteninja/njvm/vm"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func readyVM(t *testing.T, options vm.Options) *vm.VM {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	instance, err := vm.New(logger, options)
	require.NoError(t, err)
	return instance
}

func TestErrorCodeString(t *testing.T) {
	require.Equal(t, "ErrNone", vm.ErrNone.String())
	require.Equal(t, "ErrMemory", vm.ErrMemory.String())
	require.Equal(t, "ErrInvalidArgument", vm.ErrInvalidArgument.String())
	require.Equal(t, "ErrUnknown", vm.ErrorCode(99).String())
}

func TestParseBackend(t *testing.T) {
	backend, err := vm.ParseBackend("")
	require.NoError(t, err)
	require.Equal(t, vm.BackendHeap, backend)

	backend, err = vm.ParseBackend("arena")
	require.NoError(t, err)
	require.Equal(t, vm.BackendArena, backend)

	_, err = vm.ParseBackend("mmap")
	require.Error(t, err)
}

func TestNewBadOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	_, err := vm.New(nil, vm.Options{})
	require.Error(t, err)

	_, err = vm.New(logger, vm.Options{Backend: "mmap"})
	require.Error(t, err)

	_, err = vm.New(logger, vm.Options{Backend: vm.BackendArena, ArenaSize: -1})
	require.ErrorIs(t, err, system.ErrInvalidSize)
}

func TestAllocationFailureSetsError(t *testing.T) {
	instance := readyVM(t, vm.Options{
		Memory: memory.CreateOptions{Flags: memory.InfoCreateLeakDetection, Limit: 64},
	})
	require.Equal(t, vm.ErrNone, instance.LastError())

	address := instance.Alloc(65)
	require.Equal(t, memory.NullAddress, address)
	require.Equal(t, vm.ErrMemory, instance.LastError())

	instance.ClearError()
	require.Equal(t, vm.ErrNone, instance.LastError())

	address = instance.Alloc(32)
	require.NotEqual(t, memory.NullAddress, address)
	require.Equal(t, vm.ErrNone, instance.LastError())

	// A failed resize leaves the original block in place
	require.Equal(t, memory.NullAddress, instance.Realloc(address, 128))
	require.Equal(t, vm.ErrMemory, instance.LastError())
	require.True(t, instance.Memory().IsTracked(address))

	instance.ClearError()
	require.Equal(t, memory.NullAddress, instance.Alloc(-1))
	require.Equal(t, vm.ErrInvalidArgument, instance.LastError())

	instance.SetError(vm.ErrNone)
	require.Equal(t, memory.NullAddress, instance.Realloc(address, 0))
	require.Equal(t, vm.ErrNone, instance.LastError())
	require.Equal(t, 0, instance.Memory().Tracked())

	require.NoError(t, instance.Destroy())
}

func TestArenaBackend(t *testing.T) {
	instance := readyVM(t, vm.Options{
		Memory:    memory.CreateOptions{Flags: memory.InfoCreateLeakDetection},
		Backend:   vm.BackendArena,
		ArenaSize: 256,
	})

	arena, ok := instance.System().(*system.Arena)
	require.True(t, ok)
	require.Equal(t, 256, arena.Capacity())

	address := instance.AllocZeroed(64)
	require.NotEqual(t, memory.NullAddress, address)
	require.Equal(t, make([]byte, 64), instance.Bytes(address))

	// The arena runs out long before the unlimited budget does
	require.Equal(t, memory.NullAddress, instance.Alloc(512))
	require.Equal(t, vm.ErrMemory, instance.LastError())

	instance.Free(address)
	require.Equal(t, 0, arena.UsedBytes())
	require.NoError(t, instance.Destroy())
}

func TestDestroyReportsLeaks(t *testing.T) {
	if memutils.DebugMemory {
		t.Skip("leaks are fatal when built with debug_njvm_memory")
	}

	instance := readyVM(t, vm.Options{
		Memory: memory.CreateOptions{Flags: memory.InfoCreateLeakDetection},
	})

	address := instance.Alloc(8)
	require.NotEqual(t, memory.NullAddress, address)

	err := instance.Destroy()
	var leakErr *memory.LeakError
	require.True(t, errors.As(err, &leakErr))
	require.Len(t, leakErr.Leaks, 1)
	require.Equal(t, address, leakErr.Leaks[0].Address)
}
