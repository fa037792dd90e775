package kma

import (
	"context"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/kma/internal/utils"
	"github.com/vkngwrapper/kma/memutils"
	"github.com/vkngwrapper/kma/page"
	"golang.org/x/exp/slog"
)

// Allocator hands out blocks of memory carved from the pages of a page.Provider. Create one
// with New.
type Allocator struct {
	logger      *slog.Logger
	mutex       utils.OptionalMutex
	createFlags CreateFlags

	algorithmKind Algorithm
	algorithm     blockAlgorithm
	provider      page.Provider

	pageSize       int
	minBlockSize   int
	minShift       uint
	maxRequestSize int

	table   *pageTable
	classes []sizeClass

	allocationCount int
}

// Algorithm returns the strategy this allocator was created with
func (a *Allocator) Algorithm() Algorithm { return a.algorithmKind }

// PageSize returns the size of the pages this allocator carves blocks from
func (a *Allocator) PageSize() int { return a.pageSize }

// MaxRequestSize returns the largest size Allocate can satisfy
func (a *Allocator) MaxRequestSize() int { return a.maxRequestSize }

// ClassFor returns the size of the blocks that a request of size bytes would be served from
func (a *Allocator) ClassFor(size int) (int, error) {
	class, err := a.classFor(size)
	if err != nil {
		return 0, err
	}

	return a.classes[class].size, nil
}

// Allocate returns a pointer to size bytes of memory. The second return value is false, and the
// pointer null, if size is not positive, if size does not fit in a single page, or if no page
// could be obtained to hold it. Use TryAllocate to find out which.
func (a *Allocator) Allocate(size int) (Pointer, bool) {
	ptr, err := a.TryAllocate(size)
	if err != nil {
		if a.logger.Enabled(context.Background(), slog.LevelDebug) {
			a.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocation failed",
				slog.Int("size", size),
				slog.Any("error", err),
			)
		}
		return Pointer{}, false
	}

	return ptr, true
}

// TryAllocate returns a pointer to size bytes of memory, or an error wrapping ErrInvalidSize,
// ErrRequestTooLarge, ErrPageTableFull or the provider's error if it cannot. A failed
// allocation leaves the allocator unchanged.
func (a *Allocator) TryAllocate(size int) (Pointer, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	class, err := a.classFor(size)
	if err != nil {
		return Pointer{}, err
	}

	err = a.algorithm.ensureFree(class)
	if err != nil {
		return Pointer{}, err
	}

	frame, offset := a.popFree(class)
	data := frame.page.Data()
	writeHeader(data, offset, stateAllocated, class, nilRef)
	memutils.WriteMagicValue(data, offset+HeaderSize+size)

	a.classes[class].allocated++
	frame.allocated++
	a.allocationCount++
	a.algorithm.claimed(frame, class)

	memutils.DebugValidate(unlockedAllocator{a})

	return Pointer{PageID: frame.page.ID(), Offset: offset + HeaderSize}, nil
}

// Deallocate returns memory obtained from Allocate. size must be the size that was passed to
// Allocate. Freeing a pointer that is not outstanding, or freeing with a different size, panics.
func (a *Allocator) Deallocate(ptr Pointer, size int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	frame, offset, class := a.checkAllocation(ptr, size)

	a.classes[class].allocated--
	frame.allocated--
	a.allocationCount--
	a.algorithm.release(frame, offset, class)

	sc := &a.classes[class]
	if sc.allocated == 0 && sc.pages.Count() != 0 {
		panic(cerrors.AssertionFailedf("the %d-byte class has no allocations but still holds %d pages", sc.size, sc.pages.Count()))
	}

	memutils.DebugValidate(unlockedAllocator{a})
}

// Payload returns the size bytes of memory at ptr. The slice is only valid until ptr is freed.
func (a *Allocator) Payload(ptr Pointer, size int) []byte {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	frame, _, _ := a.checkAllocation(ptr, size)
	return frame.page.Data()[ptr.Offset : ptr.Offset+size : ptr.Offset+size]
}

// checkAllocation panics unless ptr is an outstanding allocation of size bytes
func (a *Allocator) checkAllocation(ptr Pointer, size int) (*pageFrame, int, int) {
	if ptr.IsNull() {
		panic(cerrors.AssertionFailedf("null pointer passed for an allocation of %d bytes", size))
	}

	frame, ok := a.table.lookup(ptr.PageID)
	if !ok {
		panic(cerrors.AssertionFailedf("pointer %s refers to page %d, which this allocator does not hold", ptr, ptr.PageID))
	}

	offset := ptr.Offset - HeaderSize
	if offset < 0 || offset >= a.pageSize || memutils.AlignDown(offset, uint(a.minBlockSize)) != offset {
		panic(cerrors.AssertionFailedf("pointer %s does not point at a block payload", ptr))
	}

	class, err := a.classFor(size)
	if err != nil {
		panic(cerrors.NewAssertionErrorWithWrappedErrf(err, "pointer %s passed with an invalid size", ptr))
	}

	data := frame.page.Data()
	header := readHeader(data, offset)
	if header.magic != headerMagic {
		panic(cerrors.AssertionFailedf("block header for pointer %s is corrupted", ptr))
	}
	if header.state != stateAllocated {
		panic(cerrors.AssertionFailedf("pointer %s is not allocated", ptr))
	}
	if header.class != class {
		panic(cerrors.AssertionFailedf("pointer %s was allocated from class %d but %d bytes map to class %d",
			ptr, header.class, size, class))
	}
	if !memutils.ValidateMagicValue(data, ptr.Offset+size) {
		panic(cerrors.AssertionFailedf("memory after the payload of pointer %s has been overwritten", ptr))
	}

	return frame, offset, class
}

func (a *Allocator) releaseFrame(frame *pageFrame) {
	err := a.table.release(frame)
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "page provider refused a released page",
			slog.Int("page", frame.page.ID()),
			slog.Any("error", err),
		)
	}
}

// Destroy verifies that every allocation has been freed. If any are outstanding, each one is
// logged and an error is returned.
func (a *Allocator) Destroy() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.allocationCount == 0 {
		return nil
	}

	err := a.table.each(func(frame *pageFrame) error {
		return a.visitBlocks(frame, func(offset, class int, free bool) error {
			if !free {
				a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
					slog.Int("page", frame.page.ID()),
					slog.Int("offset", offset+HeaderSize),
					slog.Int("blockSize", a.classes[class].size),
				)
			}
			return nil
		})
	})
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelError,
			"[UNRELEASED MEMORY] error while iterating unreleased memory",
			slog.Any("error", err))
	}

	return errors.Errorf("%d allocations were not freed before the destruction of this allocator", a.allocationCount)
}

// visitBlocks walks the blocks that tile a page in address order
func (a *Allocator) visitBlocks(frame *pageFrame, visit func(offset, class int, free bool) error) error {
	data := frame.page.Data()
	for offset := 0; offset < a.pageSize; {
		header := readHeader(data, offset)
		if header.magic != headerMagic {
			return cerrors.Newf("block header at %d:%d is corrupted", frame.page.ID(), offset)
		}
		if header.class >= len(a.classes) {
			return cerrors.Newf("block header at %d:%d names class %d, but there are only %d", frame.page.ID(), offset, header.class, len(a.classes))
		}
		if header.state != stateFree && header.state != stateAllocated {
			return cerrors.Newf("block header at %d:%d has unknown state %q", frame.page.ID(), offset, header.state)
		}

		size := a.classes[header.class].size
		if offset&(size-1) != 0 {
			return cerrors.Newf("%d-byte block at %d:%d is misaligned", size, frame.page.ID(), offset)
		}

		err := visit(offset, header.class, header.isFree())
		if err != nil {
			return err
		}
		offset += size
	}

	return nil
}
