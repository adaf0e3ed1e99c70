package memutils_test

import (
	"testing"

	"github.com/byteninja/njvm/memutils"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "one"))
	require.NoError(t, memutils.CheckPow2(uint(64), "sixty-four"))

	require.ErrorIs(t, memutils.CheckPow2(0, "zero"), memutils.PowerOfTwoError)
	require.ErrorIs(t, memutils.CheckPow2(-4, "negative"), memutils.PowerOfTwoError)
	require.ErrorIs(t, memutils.CheckPow2(uint(6), "six"), memutils.PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 8, memutils.AlignUp(1, 8))
	require.Equal(t, 104, memutils.AlignUp(100, 8))
	require.Equal(t, 16, memutils.AlignUp(16, 16))

	require.Equal(t, 96, memutils.AlignDown(100, 8))
	require.Equal(t, uint64(4096), memutils.AlignDown(uint64(4097), 4096))
}

func TestFill(t *testing.T) {
	data := make([]byte, 5)
	memutils.Fill(data, memutils.DestroyedFillPattern)
	require.Equal(t, []byte{0xEF, 0xEF, 0xEF, 0xEF, 0xEF}, data)
}

func TestMagicValue(t *testing.T) {
	data := make([]byte, 8+memutils.DebugMargin)
	memutils.WriteMagicValue(data, 8)
	require.True(t, memutils.ValidateMagicValue(data, 8))

	if memutils.DebugMargin > 0 {
		data[10] ^= 0xFF
		require.False(t, memutils.ValidateMagicValue(data, 8))
		require.False(t, memutils.ValidateMagicValue(data, len(data)))
	}
}
