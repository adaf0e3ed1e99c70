package system

import (
	"strconv"

	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
)

// Address identifies a block of memory handed out by an Allocator. NullAddress is never a valid
// block.
type Address uint64

const NullAddress Address = 0

func (a Address) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

var (
	// ErrOutOfMemory is returned when an Allocator cannot satisfy a request
	ErrOutOfMemory = errors.New("out of memory")
	// ErrUnknownAddress is returned when an Allocator is handed an address it did not allocate, or
	// one that has already been freed
	ErrUnknownAddress = errors.New("address was not allocated by this allocator")
	// ErrInvalidSize is returned when an Allocator is asked for a block of zero or negative size
	ErrInvalidSize = errors.New("invalid allocation size")
)

// Allocator is the raw memory source a tracked allocator delegates to. It performs no accounting
// beyond what it needs to hand out and take back blocks.
type Allocator interface {
	// Alloc creates a new block of at least size bytes. The contents are unspecified.
	Alloc(size int) (Address, error)
	// Realloc resizes a block, moving it if necessary. The contents are preserved up to the lesser
	// of the old and new sizes. If an error is returned, the original block is untouched.
	Realloc(address Address, size int) (Address, error)
	// Free returns a block to the allocator
	Free(address Address) error
	// Bytes retrieves the memory behind a block. The slice is valid until the block is freed or
	// reallocated.
	Bytes(address Address) ([]byte, error)
	// Size returns the size that a block was last allocated or reallocated with
	Size(address Address) (int, error)
}

// StatisticsReporter is implemented by allocators that can describe the memory they hold
type StatisticsReporter interface {
	AddStatistics(stats *memutils.Statistics)
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
}
