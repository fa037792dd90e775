package kma

import "github.com/cockroachdb/errors"

// pushFree marks the block at offset free and puts it at the head of the class's free list
func (a *Allocator) pushFree(class int, frame *pageFrame, offset int) {
	sc := &a.classes[class]
	ref := a.table.ref(frame, offset)
	data := frame.page.Data()

	writeHeader(data, offset, stateFree, class, sc.free)
	writePrev(data, offset, nilRef)

	if sc.free != nilRef {
		headFrame, headOffset := a.table.resolve(sc.free)
		writePrev(headFrame.page.Data(), headOffset, ref)
	}

	sc.free = ref
	sc.freeCount++
}

// popFree removes the head of the class's free list. The list must not be empty.
func (a *Allocator) popFree(class int) (*pageFrame, int) {
	sc := &a.classes[class]
	if sc.free == nilRef {
		panic(errors.AssertionFailedf("attempted to pop from the empty free list of the %d-byte class", sc.size))
	}

	frame, offset := a.table.resolve(sc.free)
	header := readHeader(frame.page.Data(), offset)
	a.checkFreeHeader(header, class, frame, offset)

	sc.free = header.next
	if header.next != nilRef {
		nextFrame, nextOffset := a.table.resolve(header.next)
		writePrev(nextFrame.page.Data(), nextOffset, nilRef)
	}
	sc.freeCount--

	return frame, offset
}

// removeFree unlinks a free block from anywhere in the class's free list
func (a *Allocator) removeFree(class int, frame *pageFrame, offset int) {
	sc := &a.classes[class]
	data := frame.page.Data()
	header := readHeader(data, offset)
	a.checkFreeHeader(header, class, frame, offset)
	prev := readPrev(data, offset)

	if prev == nilRef {
		sc.free = header.next
	} else {
		prevFrame, prevOffset := a.table.resolve(prev)
		writeNext(prevFrame.page.Data(), prevOffset, header.next)
	}

	if header.next != nilRef {
		nextFrame, nextOffset := a.table.resolve(header.next)
		writePrev(nextFrame.page.Data(), nextOffset, prev)
	}
	sc.freeCount--
}

func (a *Allocator) checkFreeHeader(header blockHeader, class int, frame *pageFrame, offset int) {
	if header.magic != headerMagic {
		panic(errors.AssertionFailedf("block header at %d:%d is corrupted", frame.page.ID(), offset))
	}
	if !header.isFree() || header.class != class {
		panic(errors.AssertionFailedf("block at %d:%d is linked into the free list of class %d but its header reads state %q class %d",
			frame.page.ID(), offset, class, header.state, header.class))
	}
}
