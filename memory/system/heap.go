package system

import (
	"math"
	"unsafe"

	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

// MaxBlockSize is the largest block a Heap will hand out
const MaxBlockSize = math.MaxInt32

// Heap hands out blocks from the Go heap. Each block's address is the address of its first byte,
// and the Heap keeps every live block reachable until it is freed.
type Heap struct {
	blocks *swiss.Map[Address, []byte]
	limit  int
	bytes  int
}

var _ Allocator = &Heap{}
var _ StatisticsReporter = &Heap{}

// NewHeap creates a Heap. If limit is greater than zero, the Heap reports ErrOutOfMemory once the
// capacity of its live blocks would exceed limit bytes.
func NewHeap(limit int) *Heap {
	return &Heap{
		blocks: swiss.NewMap[Address, []byte](64),
		limit:  limit,
	}
}

func (h *Heap) reserve(size int) error {
	if size > MaxBlockSize {
		return errors.Wrapf(ErrOutOfMemory, "%d bytes is larger than the largest heap block of %d bytes", size, MaxBlockSize)
	}

	if h.limit > 0 && size > h.limit-h.bytes {
		return errors.Wrapf(ErrOutOfMemory, "heap holds %d of %d bytes, cannot reserve %d more", h.bytes, h.limit, size)
	}

	return nil
}

func (h *Heap) Alloc(size int) (Address, error) {
	if size < 1 {
		return NullAddress, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	err := h.reserve(size)
	if err != nil {
		return NullAddress, err
	}

	block := make([]byte, size)
	address := Address(uintptr(unsafe.Pointer(&block[0])))
	h.blocks.Put(address, block)
	h.bytes += cap(block)

	return address, nil
}

func (h *Heap) Realloc(address Address, size int) (Address, error) {
	if size < 1 {
		return NullAddress, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}

	block, ok := h.blocks.Get(address)
	if !ok {
		return NullAddress, errors.Wrapf(ErrUnknownAddress, "realloc of %s", address)
	}

	if size <= cap(block) {
		resized := block[:size]
		if size > len(block) {
			clear(resized[len(block):])
		}
		h.blocks.Put(address, resized)
		return address, nil
	}

	if size > MaxBlockSize {
		return NullAddress, errors.Wrapf(ErrOutOfMemory, "%d bytes is larger than the largest heap block of %d bytes", size, MaxBlockSize)
	}

	err := h.reserve(size - cap(block))
	if err != nil {
		return NullAddress, err
	}

	moved := make([]byte, size)
	copy(moved, block)
	newAddress := Address(uintptr(unsafe.Pointer(&moved[0])))

	h.blocks.Delete(address)
	h.bytes -= cap(block)
	h.blocks.Put(newAddress, moved)
	h.bytes += cap(moved)

	return newAddress, nil
}

func (h *Heap) Free(address Address) error {
	block, ok := h.blocks.Get(address)
	if !ok {
		return errors.Wrapf(ErrUnknownAddress, "free of %s", address)
	}

	h.blocks.Delete(address)
	h.bytes -= cap(block)
	return nil
}

func (h *Heap) Bytes(address Address) ([]byte, error) {
	block, ok := h.blocks.Get(address)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAddress, "bytes of %s", address)
	}

	return block, nil
}

func (h *Heap) Size(address Address) (int, error) {
	block, ok := h.blocks.Get(address)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownAddress, "size of %s", address)
	}

	return len(block), nil
}

// Len returns the number of live blocks
func (h *Heap) Len() int {
	return h.blocks.Count()
}

func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += h.blocks.Count()
	stats.BlockBytes += h.bytes
}

func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	h.AddStatistics(&stats.Statistics)

	h.blocks.Iter(func(address Address, block []byte) bool {
		if unused := cap(block) - len(block); unused > 0 {
			stats.AddUnusedRange(unused)
		}
		return false
	})
}
