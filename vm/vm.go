// Package vm holds the state of a single VM instance that the interpreter consumes: its error code
// and the memory it owns.
package vm

import (
	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/memory/system"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// VM is one instance of the virtual machine. Memory allocated through the VM belongs to it and
// must be released before Destroy is called.
//
// VM is not safe for concurrent use.
type VM struct {
	logger *slog.Logger
	system system.Allocator
	memory *memory.Info

	lastError ErrorCode
}

func New(logger *slog.Logger, options Options) (*VM, error) {
	if logger == nil {
		return nil, errors.New("attempted to create a VM without a logger")
	}

	var sys system.Allocator
	switch options.Backend {
	case "", BackendHeap:
		sys = system.NewHeap(0)
	case BackendArena:
		size := options.ArenaSize
		if size == 0 {
			size = DefaultArenaSize
		}

		arena, err := system.NewArena(size, arenaAlignment)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create the memory arena")
		}
		sys = arena
	default:
		return nil, errors.Newf("unknown memory backend %q", options.Backend)
	}

	info, err := memory.New(logger, sys, options.Memory)
	if err != nil {
		return nil, err
	}

	return &VM{
		logger: logger,
		system: sys,
		memory: info,
	}, nil
}

// LastError returns the error code set by the most recent failing operation, or ErrNone
func (v *VM) LastError() ErrorCode {
	return v.lastError
}

func (v *VM) SetError(code ErrorCode) {
	v.lastError = code
}

func (v *VM) ClearError() {
	v.lastError = ErrNone
}

// Memory returns the Info that owns this VM's allocations
func (v *VM) Memory() *memory.Info {
	return v.memory
}

// System returns the system allocator this VM's memory is drawn from
func (v *VM) System() system.Allocator {
	return v.system
}

func (v *VM) fail(err error) memory.Address {
	if errors.Is(err, memory.ErrAllocationFailed) {
		v.SetError(ErrMemory)
	} else {
		v.SetError(ErrInvalidArgument)
	}

	v.logger.Debug("VM allocation failed", slog.String("ErrorCode", v.lastError.String()), slog.Any("error", err))
	return memory.NullAddress
}

// Alloc allocates size bytes. If the allocation fails, the VM's error code is set and NullAddress
// is returned.
func (v *VM) Alloc(size int) memory.Address {
	address, err := v.memory.Allocate(size)
	if err != nil {
		return v.fail(err)
	}

	return address
}

// AllocZeroed allocates size bytes that are all zero. If the allocation fails, the VM's error
// code is set and NullAddress is returned.
func (v *VM) AllocZeroed(size int) memory.Address {
	address, err := v.memory.AllocateZeroed(size)
	if err != nil {
		return v.fail(err)
	}

	return address
}

// Realloc resizes a block allocated by this VM and returns its new address. A size of zero frees
// the block and NullAddress allocates a new one. If the resize fails, the VM's error code is set,
// NullAddress is returned, and the original block is still valid.
func (v *VM) Realloc(address memory.Address, size int) memory.Address {
	newAddress, err := v.memory.Resize(address, size)
	if err != nil {
		return v.fail(err)
	}

	return newAddress
}

// Free releases a block allocated by this VM
func (v *VM) Free(address memory.Address) {
	v.memory.Release(address)
}

// Bytes retrieves the memory behind a block allocated by this VM
func (v *VM) Bytes(address memory.Address) []byte {
	return v.memory.Bytes(address)
}

// Destroy tears down the VM. It returns a *memory.LeakError if memory allocated through the VM was
// not released.
func (v *VM) Destroy() error {
	return v.memory.Destroy()
}
