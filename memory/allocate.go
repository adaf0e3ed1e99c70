package memory

import (
	"math"

	"github.com/byteninja/njvm/list"
	"github.com/byteninja/njvm/memory/system"
	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

func (i *Info) checkBudget(growth int) error {
	if growth <= 0 || i.limit == NoLimit || i.flags&InfoCreateDisableLimit != 0 {
		return nil
	}

	if growth > i.limit-i.tracked {
		return errors.Mark(
			errors.Wrapf(ErrBudgetExceeded, "%d bytes are allocated of a %d byte limit, cannot allocate %d more", i.tracked, i.limit, growth),
			ErrAllocationFailed,
		)
	}

	return nil
}

// checkSize rejects sizes that cannot be requested from the system allocator once the debug margin
// is added
func checkSize(size int) error {
	if size > math.MaxInt-memutils.DebugMargin {
		return errors.Mark(
			errors.Wrapf(system.ErrOutOfMemory, "%d bytes is larger than the largest possible block", size),
			ErrAllocationFailed,
		)
	}

	return nil
}

// block retrieves the memory behind an address, including any debug margin
func (i *Info) block(address Address) []byte {
	data, err := i.system.Bytes(address)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "could not retrieve the memory at %s", address))
	}

	return data
}

// userSize returns the size of the memory the caller can see at address
func (i *Info) userSize(address Address) int {
	size, err := i.system.Size(address)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "could not retrieve the size of the memory at %s", address))
	}

	return size - memutils.DebugMargin
}

func (i *Info) validateMargin(address Address, size int) {
	if memutils.DebugMargin == 0 {
		return
	}

	if !memutils.ValidateMagicValue(i.block(address), size) {
		panic(errors.Wrapf(memutils.CorruptionError, "the memory after the allocation at %s was overwritten", address))
	}
}

// Allocate creates a new block of size bytes. If the byte budget would be exceeded, no memory is
// requested from the system allocator. Every failure to allocate is marked with ErrAllocationFailed.
func (i *Info) Allocate(size int) (Address, error) {
	i.checkAlive()

	if i.debugCalls() {
		i.logger.Debug("Info::Allocate", slog.Int("Size", size))
	}

	if size < 1 {
		return NullAddress, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	err := i.checkBudget(size)
	if err != nil {
		return NullAddress, err
	}

	err = checkSize(size)
	if err != nil {
		return NullAddress, err
	}

	address, err := i.system.Alloc(size + memutils.DebugMargin)
	if err != nil {
		return NullAddress, errors.Mark(errors.Wrapf(err, "failed to allocate %d bytes", size), ErrAllocationFailed)
	}

	if memutils.DebugMargin > 0 {
		data := i.block(address)
		memutils.Fill(data[:size], memutils.CreatedFillPattern)
		memutils.WriteMagicValue(data, size)
	}

	i.tracked += size
	i.live++

	if i.tracker != nil {
		i.tracker.Append(address, size)
	}

	if i.debugCalls() {
		i.calls++
	}

	return address, nil
}

// AllocateZeroed creates a new block of size bytes with every byte set to zero
func (i *Info) AllocateZeroed(size int) (Address, error) {
	address, err := i.Allocate(size)
	if err != nil {
		return NullAddress, err
	}

	clear(i.Bytes(address))
	return address, nil
}

// Resize changes the size of a block, possibly moving it, and returns its new address. Resizing to
// zero releases the block and returns NullAddress. Resizing NullAddress allocates a new block. If an
// error is returned the original block is untouched and still owned by the caller.
func (i *Info) Resize(address Address, size int) (Address, error) {
	i.checkAlive()

	if size == 0 {
		i.Release(address)
		return NullAddress, nil
	}

	if address == NullAddress {
		return i.Allocate(size)
	}

	if i.debugCalls() {
		i.logger.Debug("Info::Resize", slog.String("Address", address.String()), slog.Int("Size", size))
	}

	if size < 0 {
		return NullAddress, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	handle := list.Nil
	var oldSize int
	if i.tracker != nil {
		var ok bool
		handle, ok = i.tracker.Find(address)
		if !ok {
			panic(errors.AssertionFailedf("attempted to resize %s, which is not a live allocation", address))
		}
		oldSize = i.tracker.Get(handle).Size
	} else {
		oldSize = i.userSize(address)
	}

	err := i.checkBudget(size - oldSize)
	if err != nil {
		return NullAddress, err
	}

	err = checkSize(size)
	if err != nil {
		return NullAddress, err
	}

	i.validateMargin(address, oldSize)

	newAddress, err := i.system.Realloc(address, size+memutils.DebugMargin)
	if err != nil {
		return NullAddress, errors.Mark(errors.Wrapf(err, "failed to resize %s from %d to %d bytes", address, oldSize, size), ErrAllocationFailed)
	}

	if memutils.DebugMargin > 0 {
		data := i.block(newAddress)
		if size > oldSize {
			memutils.Fill(data[oldSize:size], memutils.CreatedFillPattern)
		}
		memutils.WriteMagicValue(data, size)
	}

	i.tracked += size - oldSize

	if i.tracker != nil {
		i.tracker.Update(handle, newAddress, size)
	}

	return newAddress, nil
}

// Release returns a block to the system allocator. With leak detection enabled, releasing an
// address that is not a live allocation (including one that was already released) panics.
func (i *Info) Release(address Address) {
	i.checkAlive()

	if i.debugCalls() {
		i.logger.Debug("Info::Release", slog.String("Address", address.String()))
	}

	if address == NullAddress {
		panic(errors.AssertionFailedf("attempted to release the null address"))
	}

	var size int
	if i.tracker != nil {
		handle, ok := i.tracker.Find(address)
		if !ok {
			panic(errors.AssertionFailedf("attempted to release %s, which is not a live allocation", address))
		}
		size = i.tracker.Remove(handle).Size
	} else {
		size = i.userSize(address)
	}

	if memutils.DebugMargin > 0 {
		i.validateMargin(address, size)
		memutils.Fill(i.block(address)[:size], memutils.DestroyedFillPattern)
	}

	err := i.system.Free(address)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "failed to free %s", address))
	}

	i.tracked -= size
	i.live--

	if i.debugCalls() {
		i.calls--
	}
}

// Bytes retrieves the memory behind a live block. The slice is valid until the block is resized or
// released.
func (i *Info) Bytes(address Address) []byte {
	i.checkAlive()

	if i.tracker != nil && !i.IsTracked(address) {
		panic(errors.AssertionFailedf("attempted to access %s, which is not a live allocation", address))
	}

	data := i.block(address)
	return data[:len(data)-memutils.DebugMargin]
}
