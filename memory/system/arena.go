package system

import (
	"github.com/byteninja/njvm/list"
	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

// arenaBase is the address of the first byte of every Arena, chosen so that offset 0 is never
// mistaken for NullAddress
const arenaBase Address = 0x10000

type region struct {
	offset    int
	size      int
	requested int
	free      bool

	links list.Links
}

func (r *region) Links() *list.Links { return &r.links }

// Arena hands out blocks from a single fixed-size slab. Regions of the slab, taken and free, are
// kept in a list in offset order; allocation takes the first free region that fits and freed regions
// are merged with free neighbors. Arena reports ErrOutOfMemory when no free region is large enough.
type Arena struct {
	data      []byte
	alignment uint

	regions  *list.Arena[region, *region]
	physical *list.List[region, *region]
	taken    *swiss.Map[Address, list.Handle]

	usedBytes int
	freeCount int
}

var _ Allocator = &Arena{}
var _ StatisticsReporter = &Arena{}
var _ memutils.Validatable = &Arena{}

// NewArena creates an Arena managing size bytes. Every block is placed at an offset that is a multiple
// of alignment, which must be a power of two.
func NewArena(size int, alignment uint) (*Arena, error) {
	if size < 1 {
		return nil, errors.Wrapf(ErrInvalidSize, "arena size %d", size)
	}

	err := memutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return nil, err
	}

	regions := list.NewArena[region]()
	a := &Arena{
		data:      make([]byte, size),
		alignment: alignment,
		regions:   regions,
		physical:  list.New(regions),
		taken:     swiss.NewMap[Address, list.Handle](64),
		freeCount: 1,
	}

	handle, r := regions.New()
	r.size = size
	r.free = true
	a.physical.Push(handle)

	return a, nil
}

func (a *Arena) address(r *region) Address {
	return arenaBase + Address(r.offset)
}

func (a *Arena) lookup(address Address) (list.Handle, *region, error) {
	handle, ok := a.taken.Get(address)
	if !ok {
		return list.Nil, nil, errors.Wrapf(ErrUnknownAddress, "address %s", address)
	}

	return handle, a.regions.Get(handle), nil
}

// split carves a new free region out of the end of r, leaving r with size bytes
func (a *Arena) split(handle list.Handle, r *region, size int) {
	if r.size == size {
		return
	}

	remainderHandle, remainder := a.regions.New()
	remainder.offset = r.offset + size
	remainder.size = r.size - size
	remainder.free = true
	r.size = size

	a.physical.InsertAfter(remainderHandle, handle)
	a.freeCount++
	a.coalesce(remainderHandle, remainder)
}

// coalesce merges a free region with any free regions on either side of it
func (a *Arena) coalesce(handle list.Handle, r *region) {
	if next := a.physical.Next(handle); next != list.Nil {
		nextRegion := a.regions.Get(next)
		if nextRegion.free {
			r.size += nextRegion.size
			a.physical.Unlink(next)
			a.regions.Release(next)
			a.freeCount--
		}
	}

	if prev := a.physical.Prev(handle); prev != list.Nil {
		prevRegion := a.regions.Get(prev)
		if prevRegion.free {
			prevRegion.size += r.size
			a.physical.Unlink(handle)
			a.regions.Release(handle)
			a.freeCount--
		}
	}
}

func (a *Arena) Alloc(size int) (Address, error) {
	if size < 1 {
		return NullAddress, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	if size > len(a.data) {
		return NullAddress, errors.Wrapf(ErrOutOfMemory, "%d bytes is larger than an arena of %d bytes", size, len(a.data))
	}

	regionSize := memutils.AlignUp(size, a.alignment)

	found := list.Nil
	var foundRegion *region
	a.physical.Visit(func(handle list.Handle, r *region) bool {
		if r.free && r.size >= regionSize {
			found = handle
			foundRegion = r
			return false
		}
		return true
	})

	if found == list.Nil {
		return NullAddress, errors.Wrapf(ErrOutOfMemory, "no free region of %d bytes in an arena of %d bytes with %d in use", regionSize, len(a.data), a.usedBytes)
	}

	foundRegion.free = false
	foundRegion.requested = size
	a.freeCount--
	a.split(found, foundRegion, regionSize)

	a.usedBytes += foundRegion.size
	address := a.address(foundRegion)
	a.taken.Put(address, found)

	memutils.DebugValidate(a)
	return address, nil
}

func (a *Arena) Realloc(address Address, size int) (Address, error) {
	if size < 1 {
		return NullAddress, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	handle, r, err := a.lookup(address)
	if err != nil {
		return NullAddress, err
	}

	if size > len(a.data) {
		return NullAddress, errors.Wrapf(ErrOutOfMemory, "%d bytes is larger than an arena of %d bytes", size, len(a.data))
	}

	regionSize := memutils.AlignUp(size, a.alignment)

	// Shrink in place
	if regionSize <= r.size {
		a.usedBytes -= r.size - regionSize
		r.requested = size
		a.split(handle, r, regionSize)

		memutils.DebugValidate(a)
		return address, nil
	}

	// Grow in place into a free neighbor
	if next := a.physical.Next(handle); next != list.Nil {
		nextRegion := a.regions.Get(next)
		growth := regionSize - r.size
		if nextRegion.free && nextRegion.size >= growth {
			if nextRegion.size == growth {
				a.physical.Unlink(next)
				a.regions.Release(next)
				a.freeCount--
			} else {
				nextRegion.offset += growth
				nextRegion.size -= growth
			}

			r.size = regionSize
			r.requested = size
			a.usedBytes += growth

			memutils.DebugValidate(a)
			return address, nil
		}
	}

	// Move
	newAddress, err := a.Alloc(size)
	if err != nil {
		return NullAddress, err
	}

	newHandle, _ := a.taken.Get(newAddress)
	newRegion := a.regions.Get(newHandle)
	copy(a.data[newRegion.offset:newRegion.offset+size], a.data[r.offset:r.offset+r.requested])

	err = a.Free(address)
	if err != nil {
		return NullAddress, err
	}

	return newAddress, nil
}

func (a *Arena) Free(address Address) error {
	handle, r, err := a.lookup(address)
	if err != nil {
		return err
	}

	a.taken.Delete(address)
	a.usedBytes -= r.size
	r.free = true
	r.requested = 0
	a.freeCount++
	a.coalesce(handle, r)

	memutils.DebugValidate(a)
	return nil
}

func (a *Arena) Bytes(address Address) ([]byte, error) {
	_, r, err := a.lookup(address)
	if err != nil {
		return nil, err
	}

	return a.data[r.offset : r.offset+r.requested : r.offset+r.size], nil
}

func (a *Arena) Size(address Address) (int, error) {
	_, r, err := a.lookup(address)
	if err != nil {
		return 0, err
	}

	return r.requested, nil
}

// Capacity returns the size of the slab in bytes
func (a *Arena) Capacity() int {
	return len(a.data)
}

// UsedBytes returns the number of bytes covered by taken regions, including alignment padding
func (a *Arena) UsedBytes() int {
	return a.usedBytes
}

// FreeRegionsCount returns the number of distinct free regions in the slab
func (a *Arena) FreeRegionsCount() int {
	return a.freeCount
}

func (a *Arena) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount++
	stats.BlockBytes += len(a.data)
}

func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.AddStatistics(&stats.Statistics)

	a.physical.Visit(func(handle list.Handle, r *region) bool {
		if r.free {
			stats.AddUnusedRange(r.size)
		}
		return true
	})
}

// Validate checks that the regions tile the slab exactly, that no two free regions are adjacent,
// and that the byte and region counts agree with the regions themselves
func (a *Arena) Validate() error {
	err := a.physical.Validate()
	if err != nil {
		return err
	}

	nextOffset := 0
	usedBytes := 0
	freeCount := 0
	takenCount := 0
	prevFree := false

	a.physical.Visit(func(handle list.Handle, r *region) bool {
		if r.offset != nextOffset {
			err = errors.Errorf("region at offset %d should begin at offset %d", r.offset, nextOffset)
			return false
		}

		if r.free {
			if prevFree {
				err = errors.Errorf("free region at offset %d was not merged with the free region before it", r.offset)
				return false
			}
			freeCount++
		} else {
			if r.requested > r.size {
				err = errors.Errorf("region at offset %d holds %d bytes but was requested with %d", r.offset, r.size, r.requested)
				return false
			}

			mapped, ok := a.taken.Get(a.address(r))
			if !ok || mapped != handle {
				err = errors.Errorf("taken region at offset %d is missing from the address table", r.offset)
				return false
			}

			usedBytes += r.size
			takenCount++
		}

		prevFree = r.free
		nextOffset = r.offset + r.size
		return true
	})
	if err != nil {
		return err
	}

	if nextOffset != len(a.data) {
		return errors.Errorf("regions cover %d bytes but the arena holds %d", nextOffset, len(a.data))
	}

	if usedBytes != a.usedBytes {
		return errors.Errorf("the arena reports %d bytes in use but its taken regions add up to %d", a.usedBytes, usedBytes)
	}

	if freeCount != a.freeCount {
		return errors.Errorf("the arena reports %d free regions but there are %d", a.freeCount, freeCount)
	}

	if takenCount != a.taken.Count() {
		return errors.Errorf("the address table holds %d entries but there are %d taken regions", a.taken.Count(), takenCount)
	}

	return nil
}
