package kma

import "github.com/cockroachdb/errors"

type buddyAlgorithm struct {
	allocator *Allocator
}

var _ blockAlgorithm = &buddyAlgorithm{}

func (b *buddyAlgorithm) classFor(class int) int {
	return class
}

// ensureFree splits recursively from the top class down. A page is only acquired at the top
// of the recursion, before anything has been split, so a failure leaves the lists untouched.
func (b *buddyAlgorithm) ensureFree(class int) error {
	a := b.allocator
	if a.classes[class].free != nilRef {
		return nil
	}

	if class == a.topClass() {
		frame, err := a.table.acquire()
		if err != nil {
			return err
		}

		a.pushFree(class, frame, 0)
		return nil
	}

	err := b.ensureFree(class + 1)
	if err != nil {
		return err
	}

	frame, offset := a.popFree(class + 1)
	half := a.classes[class].size
	a.pushFree(class, frame, offset+half)
	a.pushFree(class, frame, offset)

	return nil
}

func (b *buddyAlgorithm) claimed(frame *pageFrame, class int) {
	frame.classCounts[class]++
	if frame.classCounts[class] == 1 {
		b.allocator.classes[class].pages.Put(frame.page.ID(), frame)
	}
}

func (b *buddyAlgorithm) release(frame *pageFrame, offset int, class int) {
	a := b.allocator

	frame.classCounts[class]--
	if frame.classCounts[class] == 0 {
		a.classes[class].pages.Delete(frame.page.ID())
	}

	data := frame.page.Data()
	// If this block is absorbed as the upper half of a merge its header is never rewritten
	// by pushFree, and must not go on reading as allocated
	writeHeader(data, offset, stateFree, class, nilRef)

	top := a.topClass()
	for class < top {
		buddy := BuddyOffset(offset, a.classes[class].size)
		header := readHeader(data, buddy)
		if header.magic != headerMagic {
			panic(errors.AssertionFailedf("block header at %d:%d is corrupted", frame.page.ID(), buddy))
		}

		// A buddy that has been split further has a smaller class at the same offset
		if !header.isFree() || header.class != class {
			break
		}

		a.removeFree(class, frame, buddy)
		offset = min(offset, buddy)
		class++
	}

	if class < top {
		a.pushFree(class, frame, offset)
		return
	}

	if frame.allocated != 0 {
		panic(errors.AssertionFailedf("page %d merged back into a single block with %d allocations outstanding",
			frame.page.ID(), frame.allocated))
	}
	a.releaseFrame(frame)
}
