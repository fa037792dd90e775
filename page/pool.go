package page

import (
	"context"
	"os"
	"strings"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/kma/internal/utils"
	"github.com/vkngwrapper/kma/memutils"
	"golang.org/x/exp/slog"
)

// PoolCreateFlags indicate specific pool behaviors to activate or deactivate
type PoolCreateFlags int32

const (
	// PoolCreateExternallySynchronized ensures that the pool will not be synchronized internally.
	// The consumer must guarantee that it is used from only one goroutine at a time.
	PoolCreateExternallySynchronized PoolCreateFlags = 1 << iota
	// PoolCreateMappedArena backs the pool with an anonymous memory mapping instead of the Go heap.
	// Pages released to a mapped pool are handed back to the operating system where it supports it.
	PoolCreateMappedArena
)

var poolCreateFlagsMapping = map[PoolCreateFlags]string{
	PoolCreateExternallySynchronized: "PoolCreateExternallySynchronized",
	PoolCreateMappedArena:            "PoolCreateMappedArena",
}

func (f PoolCreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := PoolCreateExternallySynchronized; bit <= PoolCreateMappedArena; bit <<= 1 {
		if f&bit != 0 {
			names = append(names, poolCreateFlagsMapping[bit])
		}
	}
	return strings.Join(names, "|")
}

const (
	// DefaultPageSize is the page size used when PoolCreateOptions.PageSize is left at zero
	DefaultPageSize int = 8192
	// DefaultMaxPages is the pool capacity used when PoolCreateOptions.MaxPages is left at zero
	DefaultMaxPages int = 4096
)

// PoolCreateOptions contains optional settings when creating a Pool
type PoolCreateOptions struct {
	// Flags indicates specific pool behaviors to activate or deactivate
	Flags PoolCreateFlags
	// PageSize is the size in bytes of every page. It must be a power of two.
	PageSize int
	// MaxPages is the number of pages the pool can have in use at once
	MaxPages int
}

// Pool is a Provider that cuts pages from a single arena of MaxPages * PageSize bytes. The arena is
// created when the first page is acquired and dropped again when the last page is released.
type Pool struct {
	logger *slog.Logger
	mutex  utils.OptionalMutex
	flags  PoolCreateFlags

	pageSize   int
	maxPages   int
	osPageSize int

	arena     arena
	freeSlots []int
	nextSlot  int
	nextID    int
	// page id -> arena slot for every page currently handed out
	outstanding *swiss.Map[int, int]

	stats Stats
}

var _ Provider = &Pool{}

// NewPool creates a new Pool
//
// logger - Receives page lifecycle events at debug level and leaked pages at error level. If nil,
// slog.Default() is used.
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewPool(logger *slog.Logger, options PoolCreateOptions) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pageSize := options.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	err := memutils.CheckPow2(pageSize, "PoolCreateOptions.PageSize")
	if err != nil {
		return nil, err
	}

	maxPages := options.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	} else if maxPages < 0 {
		return nil, errors.Errorf("PoolCreateOptions.MaxPages must not be negative, but it was %d", maxPages)
	}

	return &Pool{
		logger:      logger,
		mutex:       utils.NewOptionalMutex(options.Flags&PoolCreateExternallySynchronized == 0),
		flags:       options.Flags,
		pageSize:    pageSize,
		maxPages:    maxPages,
		osPageSize:  os.Getpagesize(),
		outstanding: swiss.NewMap[int, int](uint32(min(maxPages, 1024))),
		stats:       Stats{PageSize: pageSize},
	}, nil
}

func (p *Pool) PageSize() int { return p.pageSize }

func (p *Pool) MaxPages() int { return p.maxPages }

func (p *Pool) Flags() PoolCreateFlags { return p.flags }

func (p *Pool) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.stats
}

func (p *Pool) createArena() (arena, error) {
	size := p.pageSize * p.maxPages
	if p.flags&PoolCreateMappedArena != 0 {
		return newMappedArena(size)
	}

	return newHeapArena(size), nil
}

func (p *Pool) AcquirePage() (*Page, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stats.InUse >= p.maxPages {
		return nil, errors.Wrapf(ErrPagesExhausted, "%d of %d pages in use", p.stats.InUse, p.maxPages)
	}

	if p.arena == nil {
		arena, err := p.createArena()
		if err != nil {
			return nil, err
		}
		p.arena = arena
	}

	var slot int
	if len(p.freeSlots) > 0 {
		slot = p.freeSlots[len(p.freeSlots)-1]
		p.freeSlots = p.freeSlots[:len(p.freeSlots)-1]
	} else {
		slot = p.nextSlot
		p.nextSlot++
	}

	memutils.DebugCheckPow2(p.pageSize, "page size")
	start := slot * p.pageSize
	end := start + p.pageSize
	page := New(p.nextID, p.arena.Bytes()[start:end:end])
	p.nextID++

	p.outstanding.Put(page.id, slot)
	p.stats.Requested++
	p.stats.InUse++

	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, "acquired page",
			slog.Int("id", page.id),
			slog.Int("slot", slot),
			slog.Int("inUse", p.stats.InUse),
		)
	}

	return page, nil
}

func (p *Pool) ReleasePage(page *Page) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if page == nil {
		return errors.Wrap(ErrUnknownPage, "page is nil")
	}

	slot, ok := p.outstanding.Get(page.id)
	if !ok {
		return errors.Wrapf(ErrUnknownPage, "page %d is not in use", page.id)
	}

	start := slot * p.pageSize
	if page.Size() != p.pageSize || &page.data[0] != &p.arena.Bytes()[start] {
		return errors.Wrapf(ErrUnknownPage, "page %d does not point at its arena slot", page.id)
	}

	p.outstanding.Delete(page.id)
	p.freeSlots = append(p.freeSlots, slot)
	p.stats.Freed++
	p.stats.InUse--

	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, "released page",
			slog.Int("id", page.id),
			slog.Int("slot", slot),
			slog.Int("inUse", p.stats.InUse),
		)
	}

	if p.stats.InUse == 0 {
		return p.dropArena()
	}

	// Only whole OS pages can be handed back
	decommitStart := memutils.AlignUp(start, uint(p.osPageSize))
	decommitEnd := memutils.AlignDown(start+p.pageSize, uint(p.osPageSize))
	if p.flags&PoolCreateMappedArena != 0 && decommitEnd > decommitStart {
		err := p.arena.Decommit(decommitStart, decommitEnd-decommitStart)
		if err != nil {
			p.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to decommit released page",
				slog.Int("id", page.id),
				slog.Any("error", err),
			)
		}
	}

	return nil
}

func (p *Pool) dropArena() error {
	err := p.arena.Release()
	p.arena = nil
	p.freeSlots = p.freeSlots[:0]
	p.nextSlot = 0

	return err
}

// Destroy verifies that every page has been released. If any are still in use, each one is
// logged and an error is returned.
func (p *Pool) Destroy() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stats.InUse == 0 {
		return nil
	}

	p.outstanding.Iter(func(id int, slot int) bool {
		p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] page still in use",
			slog.Int("id", id),
			slog.Int("slot", slot),
		)
		return false
	})

	return errors.Errorf("%d pages were not released before the destruction of this pool", p.stats.InUse)
}
