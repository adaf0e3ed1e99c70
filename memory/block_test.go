package memory_test

import (
	"testing"

	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/memory/system"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestBlockFreeIsIdempotent(t *testing.T) {
	info, _ := readyInfo(t, system.NewHeap(0), memory.InfoCreateLeakDetection, memory.NoLimit)

	block, err := info.NewBlock(16)
	require.NoError(t, err)
	require.Equal(t, 16, block.Size())
	require.Len(t, block.Bytes(), 16)
	require.True(t, info.IsTracked(block.Address()))

	block.Free()
	require.True(t, block.Freed())
	require.Equal(t, 0, info.Tracked())

	block.Free()
	require.Equal(t, 0, info.Tracked())

	require.Panics(t, func() {
		block.Bytes()
	})
	require.NoError(t, info.Destroy())
}

func TestBlockResize(t *testing.T) {
	info, _ := readyInfo(t, system.NewHeap(0), memory.InfoCreateLeakDetection, 64)

	block, err := info.NewBlock(8)
	require.NoError(t, err)
	copy(block.Bytes(), "abcdefgh")

	require.NoError(t, block.Resize(48))
	require.Equal(t, 48, block.Size())
	require.Equal(t, "abcdefgh", string(block.Bytes()[:8]))
	require.Equal(t, 48, info.Tracked())

	err = block.Resize(65)
	require.True(t, errors.Is(err, memory.ErrAllocationFailed))
	require.Equal(t, 48, block.Size())

	require.ErrorIs(t, block.Resize(-1), memory.ErrInvalidSize)

	require.NoError(t, block.Resize(0))
	require.True(t, block.Freed())
	require.Equal(t, 0, info.Tracked())

	block.Free()
	require.NoError(t, info.Destroy())
}

func TestWithBlockReleasesOnEveryPath(t *testing.T) {
	info, _ := readyInfo(t, system.NewHeap(0), memory.InfoCreateLeakDetection, 32)

	err := info.WithBlock(16, func(block *memory.Block) error {
		require.Equal(t, 16, info.Tracked())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, info.Tracked())

	failure := errors.New("failure")
	err = info.WithBlock(16, func(block *memory.Block) error {
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, 0, info.Tracked())

	require.Panics(t, func() {
		_ = info.WithBlock(16, func(block *memory.Block) error {
			panic("interpreter fault")
		})
	})
	require.Equal(t, 0, info.Tracked())
	require.Empty(t, info.Leaks())

	err = info.WithBlock(64, func(block *memory.Block) error {
		t.Fatal("callback should not run when the block cannot be allocated")
		return nil
	})
	require.ErrorIs(t, err, memory.ErrBudgetExceeded)

	require.NoError(t, info.Destroy())
}
