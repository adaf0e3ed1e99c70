package vm

import (
	"github.com/byteninja/njvm/memory"
	"github.com/cockroachdb/errors"
)

// Backend selects the system allocator a VM draws its memory from
type Backend string

const (
	// BackendHeap allocates every block from the Go heap
	BackendHeap Backend = "heap"
	// BackendArena allocates every block from a single fixed-size slab of ArenaSize bytes
	BackendArena Backend = "arena"
)

// DefaultArenaSize is the slab size used by BackendArena when Options.ArenaSize is zero. It is
// equal to 1Mb.
const DefaultArenaSize int = 1024 * 1024

// arenaAlignment is the alignment of every block allocated from an arena backend
const arenaAlignment uint = 8

func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case "", BackendHeap:
		return BackendHeap, nil
	case BackendArena:
		return BackendArena, nil
	}

	return "", errors.Newf("unknown memory backend %q", name)
}

// Options contains the settings used to create a VM
type Options struct {
	// Memory configures the Info that owns the VM's allocations
	Memory memory.CreateOptions
	// Backend is the system allocator the VM's memory is drawn from. The zero value is BackendHeap.
	Backend Backend
	// ArenaSize is the size in bytes of the slab used by BackendArena, or zero for DefaultArenaSize.
	// It is ignored by other backends.
	ArenaSize int
}
