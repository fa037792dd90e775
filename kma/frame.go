package kma

import (
	"context"
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/kma/page"
	"golang.org/x/exp/slog"
)

// pageFrame is the allocator's bookkeeping for one page it holds
type pageFrame struct {
	page *page.Page
	slot int

	// number of blocks handed out from this page
	allocated int
	// allocated blocks per size class, buddy algorithm only
	classCounts []int
	// size class the page was carved into, or -1
	class int
}

// pageTable maps between pages and the slot numbers that block refs are built from
type pageTable struct {
	logger   *slog.Logger
	provider page.Provider

	pageSize   int
	minShift   uint
	unitShift  uint
	maxSlots   int
	classCount int

	slots     []*pageFrame
	freeSlots []int
	byID      *swiss.Map[int, *pageFrame]
}

func newPageTable(logger *slog.Logger, provider page.Provider, pageSize, classCount int, minShift, unitShift uint) *pageTable {
	return &pageTable{
		logger:     logger,
		provider:   provider,
		pageSize:   pageSize,
		minShift:   minShift,
		unitShift:  unitShift,
		maxSlots:   int(uint64(math.MaxUint32) >> unitShift),
		classCount: classCount,
		byID:       swiss.NewMap[int, *pageFrame](16),
	}
}

func (t *pageTable) full() bool {
	return len(t.freeSlots) == 0 && len(t.slots) >= t.maxSlots
}

// acquire fetches a page from the provider and assigns it a slot. Nothing is changed if it fails.
func (t *pageTable) acquire() (*pageFrame, error) {
	if t.full() {
		return nil, errors.Wrapf(ErrPageTableFull, "%d pages are already in use", t.byID.Count())
	}

	pg, err := t.provider.AcquirePage()
	if err != nil {
		return nil, cerrors.Wrap(err, "failed to acquire a page")
	}

	if pg == nil {
		return nil, cerrors.AssertionFailedf("page provider returned a nil page without an error")
	}

	var rejected error
	if pg.Size() != t.pageSize {
		rejected = cerrors.AssertionFailedf("page provider returned a page of %d bytes, but the page size is %d", pg.Size(), t.pageSize)
	} else if t.byID.Has(pg.ID()) {
		rejected = cerrors.AssertionFailedf("page provider returned page %d, which is already in use", pg.ID())
	}
	if rejected != nil {
		return nil, cerrors.CombineErrors(rejected, t.provider.ReleasePage(pg))
	}

	var slot int
	if len(t.freeSlots) > 0 {
		slot = t.freeSlots[len(t.freeSlots)-1]
		t.freeSlots = t.freeSlots[:len(t.freeSlots)-1]
	} else {
		slot = len(t.slots)
		t.slots = append(t.slots, nil)
	}

	frame := &pageFrame{
		page:        pg,
		slot:        slot,
		classCounts: make([]int, t.classCount),
		class:       -1,
	}
	t.slots[slot] = frame
	t.byID.Put(pg.ID(), frame)

	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.logger.LogAttrs(context.Background(), slog.LevelDebug, "page acquired",
			slog.Int("page", pg.ID()),
			slog.Int("slot", slot),
		)
	}

	return frame, nil
}

// release hands a page back to the provider. The frame is forgotten even if the provider
// returns an error.
func (t *pageTable) release(frame *pageFrame) error {
	t.slots[frame.slot] = nil
	t.freeSlots = append(t.freeSlots, frame.slot)
	t.byID.Delete(frame.page.ID())

	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.logger.LogAttrs(context.Background(), slog.LevelDebug, "page released",
			slog.Int("page", frame.page.ID()),
			slog.Int("slot", frame.slot),
		)
	}

	err := t.provider.ReleasePage(frame.page)
	if err != nil {
		return cerrors.Wrapf(err, "failed to release page %d", frame.page.ID())
	}
	return nil
}

func (t *pageTable) lookup(pageID int) (*pageFrame, bool) {
	return t.byID.Get(pageID)
}

func (t *pageTable) count() int {
	return t.byID.Count()
}

// each visits every held page in slot order
func (t *pageTable) each(visit func(frame *pageFrame) error) error {
	for _, frame := range t.slots {
		if frame == nil {
			continue
		}

		err := visit(frame)
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *pageTable) ref(frame *pageFrame, offset int) blockRef {
	return blockRef(frame.slot<<t.unitShift|offset>>t.minShift) + 1
}

// resolve returns the frame and offset a ref points at. The frame is nil if the slot is empty.
func (t *pageTable) resolve(ref blockRef) (*pageFrame, int) {
	index := int(ref - 1)
	slot := index >> t.unitShift
	if slot >= len(t.slots) {
		return nil, 0
	}

	offset := (index & (1<<t.unitShift - 1)) << t.minShift
	return t.slots[slot], offset
}
