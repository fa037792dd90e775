package kma

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/kma/page"
)

func newInternalAllocator(t *testing.T) *Allocator {
	pool, err := page.NewPool(nil, page.PoolCreateOptions{PageSize: 4096, MaxPages: 4})
	require.NoError(t, err)

	allocator, err := New(nil, pool, CreateOptions{})
	require.NoError(t, err)
	return allocator
}

func TestHeaderLayout(t *testing.T) {
	data := make([]byte, 64)

	writeHeader(data, 32, stateFree, 3, blockRef(0x01020304))
	writePrev(data, 32, blockRef(0x0A0B0C0D))

	require.Equal(t, []byte{'F', 3, 0x6D, 0x6B, 0x04, 0x03, 0x02, 0x01, 0x0D, 0x0C, 0x0B, 0x0A}, data[32:44])
	require.Equal(t, blockHeader{state: stateFree, class: 3, magic: headerMagic, next: 0x01020304}, readHeader(data, 32))
	require.Equal(t, blockRef(0x0A0B0C0D), readPrev(data, 32))

	writeHeader(data, 0, stateAllocated, 1, nilRef)
	require.Equal(t, blockHeader{state: stateAllocated, class: 1, magic: headerMagic}, readHeader(data, 0))
}

func TestBlockRefRoundTrip(t *testing.T) {
	allocator := newInternalAllocator(t)

	first, err := allocator.table.acquire()
	require.NoError(t, err)
	second, err := allocator.table.acquire()
	require.NoError(t, err)
	require.Equal(t, 1, second.slot)

	for _, frame := range []*pageFrame{first, second} {
		for offset := 0; offset < 4096; offset += 32 {
			ref := allocator.table.ref(frame, offset)
			require.NotEqual(t, nilRef, ref)

			resolved, resolvedOffset := allocator.table.resolve(ref)
			require.Same(t, frame, resolved)
			require.Equal(t, offset, resolvedOffset)
		}
	}

	// Released slots are reused
	require.NoError(t, allocator.table.release(first))
	third, err := allocator.table.acquire()
	require.NoError(t, err)
	require.Equal(t, 0, third.slot)
	require.NotEqual(t, first.page.ID(), third.page.ID())

	require.NoError(t, allocator.table.release(second))
	require.NoError(t, allocator.table.release(third))
}

func TestFreeListUnlink(t *testing.T) {
	allocator := newInternalAllocator(t)

	frame, err := allocator.table.acquire()
	require.NoError(t, err)

	for _, offset := range []int{96, 64, 32, 0} {
		allocator.pushFree(0, frame, offset)
	}
	require.Equal(t, 4, allocator.classes[0].freeCount)

	allocator.removeFree(0, frame, 32)
	allocator.removeFree(0, frame, 96)

	popped, offset := allocator.popFree(0)
	require.Same(t, frame, popped)
	require.Equal(t, 0, offset)

	_, offset = allocator.popFree(0)
	require.Equal(t, 64, offset)

	require.Equal(t, nilRef, allocator.classes[0].free)
	require.Zero(t, allocator.classes[0].freeCount)
	require.Panics(t, func() { allocator.popFree(0) })
}

func TestCorruptedHeaderIsCaught(t *testing.T) {
	allocator := newInternalAllocator(t)

	first, ok := allocator.Allocate(10)
	require.True(t, ok)
	_, ok = allocator.Allocate(10)
	require.True(t, ok)

	frame, _ := allocator.table.lookup(first.PageID)
	frame.page.Data()[first.Offset-HeaderSize+headerMagicOffset] ^= 0xFF

	require.Error(t, allocator.Validate())
	require.Panics(t, func() { allocator.Deallocate(first, 10) })
}
