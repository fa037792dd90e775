package kma

import "github.com/pkg/errors"

// ErrInvalidSize is returned from TryAllocate when the requested size is zero or negative
var ErrInvalidSize error = errors.New("allocation size must be positive")

// ErrRequestTooLarge is returned from TryAllocate when the requested size, plus block overhead,
// does not fit in a single page
var ErrRequestTooLarge error = errors.New("allocation does not fit in a single page")

// ErrPageTableFull is returned from TryAllocate when the allocator would need a new page but
// cannot address any more pages
var ErrPageTableFull error = errors.New("allocator page table is full")
