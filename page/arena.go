package page

import (
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// arena is the single contiguous region that a Pool cuts its pages from
type arena interface {
	Bytes() []byte
	// Decommit tells the arena that a range no longer holds live data
	Decommit(offset, size int) error
	Release() error
}

type heapArena struct {
	data []byte
}

func newHeapArena(size int) *heapArena {
	return &heapArena{data: make([]byte, size)}
}

func (a *heapArena) Bytes() []byte                   { return a.data }
func (a *heapArena) Decommit(offset, size int) error { return nil }

func (a *heapArena) Release() error {
	a.data = nil
	return nil
}

type mappedArena struct {
	region mmap.MMap
}

func newMappedArena(size int) (*mappedArena, error) {
	region, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map a page arena of %d bytes", size)
	}

	return &mappedArena{region: region}, nil
}

func (a *mappedArena) Bytes() []byte { return a.region }

func (a *mappedArena) Decommit(offset, size int) error {
	return decommit(a.region[offset : offset+size])
}

func (a *mappedArena) Release() error {
	if a.region == nil {
		return nil
	}

	err := a.region.Unmap()
	a.region = nil
	if err != nil {
		return errors.Wrap(err, "failed to unmap page arena")
	}
	return nil
}
