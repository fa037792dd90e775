package kma_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/kma/kma"
)

func TestPowerOfTwoCarvesPagesPerClass(t *testing.T) {
	allocator, pool := newTestAllocator(t, kma.AlgorithmPowerOfTwo, 8)

	small, ok := allocator.Allocate(10)
	require.True(t, ok)
	require.Equal(t, kma.ClassStatistics{BlockSize: 32, FreeBlocks: 255, AllocatedBlocks: 1, PageCount: 1}, allocator.ClassStatistics(0))

	medium, ok := allocator.Allocate(40)
	require.True(t, ok)
	require.NotEqual(t, small.PageID, medium.PageID)
	require.Equal(t, 2, pool.Stats().InUse)

	allocator.Deallocate(small, 10)
	require.Equal(t, 1, pool.Stats().InUse)
	require.Equal(t, kma.ClassStatistics{BlockSize: 32}, allocator.ClassStatistics(0))

	allocator.Deallocate(medium, 40)
	require.Equal(t, 0, pool.Stats().InUse)

	var ptrs []kma.Pointer
	for i := 0; i < 300; i++ {
		ptr, ok := allocator.Allocate(10)
		require.True(t, ok)
		ptrs = append(ptrs, ptr)
	}
	require.Equal(t, kma.ClassStatistics{BlockSize: 32, FreeBlocks: 212, AllocatedBlocks: 300, PageCount: 2}, allocator.ClassStatistics(0))
	require.NoError(t, allocator.Validate())

	// Pages stay with the class until the whole class is empty
	for _, ptr := range ptrs[:256] {
		allocator.Deallocate(ptr, 10)
	}
	require.Equal(t, 2, pool.Stats().InUse)
	require.Equal(t, 2, allocator.ClassStatistics(0).PageCount)
	require.NoError(t, allocator.Validate())

	for _, ptr := range ptrs[256:] {
		allocator.Deallocate(ptr, 10)
	}
	require.Equal(t, 0, pool.Stats().InUse)
	require.NoError(t, allocator.Validate())
}

func TestPagePerRequestUsesWholePages(t *testing.T) {
	allocator, pool := newTestAllocator(t, kma.AlgorithmPagePerRequest, 3)

	class, err := allocator.ClassFor(10)
	require.NoError(t, err)
	require.Equal(t, 8192, class)

	sizes := []int{1, 100, 8000}
	var ptrs []kma.Pointer
	for _, size := range sizes {
		ptr, ok := allocator.Allocate(size)
		require.True(t, ok)
		require.Equal(t, kma.HeaderSize, ptr.Offset)
		ptrs = append(ptrs, ptr)
	}

	require.Equal(t, 3, pool.Stats().InUse)
	top := allocator.ClassCount() - 1
	require.Equal(t, kma.ClassStatistics{BlockSize: 8192, AllocatedBlocks: 3, PageCount: 3}, allocator.ClassStatistics(top))

	_, ok := allocator.Allocate(1)
	require.False(t, ok)

	for i, ptr := range ptrs {
		allocator.Deallocate(ptr, sizes[i])
		require.Equal(t, 2-i, pool.Stats().InUse)
	}
	require.NoError(t, allocator.Validate())
}
