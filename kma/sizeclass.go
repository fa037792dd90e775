package kma

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/kma/memutils"
)

// sizeClass is one rung of the power-of-two block size ladder
type sizeClass struct {
	size int

	free      blockRef
	freeCount int
	allocated int

	// pages backing this class, by page id
	pages *swiss.Map[int, *pageFrame]
}

func newSizeClasses(minBlockSize, pageSize int) []sizeClass {
	classCount := int(memutils.Log2(pageSize/minBlockSize)) + 1
	classes := make([]sizeClass, classCount)
	for i := range classes {
		classes[i] = sizeClass{
			size:  minBlockSize << i,
			pages: swiss.NewMap[int, *pageFrame](8),
		}
	}

	return classes
}

func (a *Allocator) topClass() int {
	return len(a.classes) - 1
}

// naturalClass returns the index of the smallest class whose blocks can hold a request of size
// bytes along with its header and debug margin
func (a *Allocator) naturalClass(size int) (int, error) {
	if size <= 0 {
		return 0, errors.Wrapf(ErrInvalidSize, "requested %d bytes", size)
	}
	if size > a.maxRequestSize {
		return 0, errors.Wrapf(ErrRequestTooLarge, "requested %d bytes but at most %d fit in a page", size, a.maxRequestSize)
	}

	blockSize := memutils.NextPow2(size + HeaderSize + memutils.DebugMargin)
	if blockSize < a.minBlockSize {
		blockSize = a.minBlockSize
	}

	return int(memutils.Log2(blockSize) - a.minShift), nil
}

// classFor returns the index of the class the active algorithm serves a request of size bytes from
func (a *Allocator) classFor(size int) (int, error) {
	class, err := a.naturalClass(size)
	if err != nil {
		return 0, err
	}

	return a.algorithm.classFor(class), nil
}
