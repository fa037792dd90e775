package kma

import "encoding/binary"

// HeaderSize is the number of bytes in front of every payload
const HeaderSize int = 8

// Block header layout. The same eight bytes are read differently depending on state:
//
//	0     state  'F' free, 'A' allocated
//	1     class  size class index
//	2..3  magic  headerMagic
//	4..7  next   free: ref of the next free block in the class, allocated: zero
//	8..11 prev   free only: ref of the previous free block, stored in the block body
const (
	stateFree      byte = 'F'
	stateAllocated byte = 'A'

	headerMagic uint16 = 0x6B6D

	headerStateOffset = 0
	headerClassOffset = 1
	headerMagicOffset = 2
	headerNextOffset  = 4
	freePrevOffset    = 8

	// smallest block that can hold a header and the free list back-link
	minimumBlockSize = 16
)

// blockRef names a block by its page table slot and its offset in minimum block units. The
// stored value is one higher so that zero can mean "no block".
type blockRef uint32

const nilRef blockRef = 0

type blockHeader struct {
	state byte
	class int
	magic uint16
	next  blockRef
}

func (h blockHeader) isFree() bool {
	return h.state == stateFree
}

func readHeader(data []byte, offset int) blockHeader {
	return blockHeader{
		state: data[offset+headerStateOffset],
		class: int(data[offset+headerClassOffset]),
		magic: binary.LittleEndian.Uint16(data[offset+headerMagicOffset:]),
		next:  blockRef(binary.LittleEndian.Uint32(data[offset+headerNextOffset:])),
	}
}

func writeHeader(data []byte, offset int, state byte, class int, next blockRef) {
	data[offset+headerStateOffset] = state
	data[offset+headerClassOffset] = byte(class)
	binary.LittleEndian.PutUint16(data[offset+headerMagicOffset:], headerMagic)
	binary.LittleEndian.PutUint32(data[offset+headerNextOffset:], uint32(next))
}

func writeNext(data []byte, offset int, next blockRef) {
	binary.LittleEndian.PutUint32(data[offset+headerNextOffset:], uint32(next))
}

func readPrev(data []byte, offset int) blockRef {
	return blockRef(binary.LittleEndian.Uint32(data[offset+freePrevOffset:]))
}

func writePrev(data []byte, offset int, prev blockRef) {
	binary.LittleEndian.PutUint32(data[offset+freePrevOffset:], uint32(prev))
}

// BuddyOffset returns the offset of the buddy of the block of the given size at offset. Both
// offsets are relative to the base of the page and size must be a power of two.
func BuddyOffset(offset, size int) int {
	return offset ^ size
}
