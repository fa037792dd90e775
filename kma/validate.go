package kma

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/kma/memutils"
)

var _ memutils.Validatable = &Allocator{}

// unlockedAllocator validates an allocator whose mutex is already held
type unlockedAllocator struct {
	allocator *Allocator
}

func (u unlockedAllocator) Validate() error {
	return u.allocator.validate()
}

// Validate walks every free list and every held page and returns an error describing the first
// inconsistency it finds
func (a *Allocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.validate()
}

func (a *Allocator) validate() error {
	// free block ref -> size class
	listed := swiss.NewMap[blockRef, int](64)

	for class := range a.classes {
		err := a.validateFreeList(class, listed)
		if err != nil {
			return err
		}
	}

	top := a.topClass()
	allocatedPerClass := make([]int, len(a.classes))
	totalAllocated := 0
	freeBlocks := 0

	err := a.table.each(func(frame *pageFrame) error {
		pageAllocated := 0
		classCounts := make([]int, len(a.classes))

		err := a.visitBlocks(frame, func(offset, class int, free bool) error {
			if !free {
				pageAllocated++
				classCounts[class]++
				return nil
			}

			freeBlocks++
			listedClass, ok := listed.Get(a.table.ref(frame, offset))
			if !ok || listedClass != class {
				return errors.Newf("free block at %d:%d is not linked into the free list of its class", frame.page.ID(), offset)
			}

			if a.algorithmKind == AlgorithmBuddy && class < top {
				buddy := readHeader(frame.page.Data(), BuddyOffset(offset, a.classes[class].size))
				if buddy.isFree() && buddy.class == class {
					return errors.Newf("free block at %d:%d was not merged with its free buddy", frame.page.ID(), offset)
				}
			}

			return nil
		})
		if err != nil {
			return err
		}

		if pageAllocated != frame.allocated {
			return errors.Newf("page %d records %d allocations but holds %d", frame.page.ID(), frame.allocated, pageAllocated)
		}
		if pageAllocated == 0 && a.algorithmKind != AlgorithmPowerOfTwo {
			return errors.Newf("page %d has no allocations but was not released", frame.page.ID())
		}

		for class, count := range classCounts {
			allocatedPerClass[class] += count

			switch a.algorithmKind {
			case AlgorithmBuddy:
				if frame.classCounts[class] != count {
					return errors.Newf("page %d records %d allocations in the %d-byte class but holds %d",
						frame.page.ID(), frame.classCounts[class], a.classes[class].size, count)
				}
				if a.classes[class].pages.Has(frame.page.ID()) != (count > 0) {
					return errors.Newf("page %d is not correctly registered as backing the %d-byte class", frame.page.ID(), a.classes[class].size)
				}
			case AlgorithmPowerOfTwo, AlgorithmPagePerRequest:
				if count > 0 && class != frame.class {
					return errors.Newf("page %d was carved for class %d but holds allocations of class %d", frame.page.ID(), frame.class, class)
				}
			}
		}

		if frame.class >= 0 && !a.classes[frame.class].pages.Has(frame.page.ID()) {
			return errors.Newf("page %d is not registered with the %d-byte class", frame.page.ID(), a.classes[frame.class].size)
		}

		totalAllocated += pageAllocated
		return nil
	})
	if err != nil {
		return err
	}

	if freeBlocks != listed.Count() {
		return errors.Newf("free lists hold %d blocks but the held pages contain %d free blocks", listed.Count(), freeBlocks)
	}
	if totalAllocated != a.allocationCount {
		return errors.Newf("allocator records %d allocations but its pages hold %d", a.allocationCount, totalAllocated)
	}

	for class := range a.classes {
		sc := &a.classes[class]
		if allocatedPerClass[class] != sc.allocated {
			return errors.Newf("the %d-byte class records %d allocations but its blocks number %d", sc.size, sc.allocated, allocatedPerClass[class])
		}
		if (sc.allocated > 0) != (sc.pages.Count() > 0) {
			return errors.Newf("the %d-byte class has %d allocations and %d backing pages", sc.size, sc.allocated, sc.pages.Count())
		}
	}

	if a.algorithmKind == AlgorithmBuddy && a.classes[top].freeCount != 0 {
		return errors.Newf("%d whole pages are sitting in the top free list", a.classes[top].freeCount)
	}

	return nil
}

func (a *Allocator) validateFreeList(class int, listed *swiss.Map[blockRef, int]) error {
	sc := &a.classes[class]
	count := 0
	prev := nilRef

	for ref := sc.free; ref != nilRef; {
		frame, offset := a.table.resolve(ref)
		if frame == nil {
			return errors.Newf("the %d-byte free list references an empty page table slot", sc.size)
		}
		if listed.Has(ref) {
			return errors.Newf("block at %d:%d is linked into a free list more than once", frame.page.ID(), offset)
		}
		listed.Put(ref, class)

		data := frame.page.Data()
		header := readHeader(data, offset)
		if header.magic != headerMagic {
			return errors.Newf("block header at %d:%d is corrupted", frame.page.ID(), offset)
		}
		if !header.isFree() || header.class != class {
			return errors.Newf("block at %d:%d in the %d-byte free list reads state %q class %d",
				frame.page.ID(), offset, sc.size, header.state, header.class)
		}
		if offset&(sc.size-1) != 0 {
			return errors.Newf("free %d-byte block at %d:%d is misaligned", sc.size, frame.page.ID(), offset)
		}
		if readPrev(data, offset) != prev {
			return errors.Newf("block at %d:%d has a broken back-link", frame.page.ID(), offset)
		}

		count++
		prev = ref
		ref = header.next
	}

	if count != sc.freeCount {
		return errors.Newf("the %d-byte free list holds %d blocks but records %d", sc.size, count, sc.freeCount)
	}

	return nil
}
