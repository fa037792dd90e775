package kma

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/kma/memutils"
)

// ClassStatistics describes a single size class
type ClassStatistics struct {
	BlockSize       int
	FreeBlocks      int
	AllocatedBlocks int
	PageCount       int
}

// ClassCount returns the number of size classes, from the minimum block size up to the page size
func (a *Allocator) ClassCount() int {
	return len(a.classes)
}

// ClassStatistics returns the current state of the size class at index class, where class 0 is
// the smallest
func (a *Allocator) ClassStatistics(class int) ClassStatistics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.classStatistics(class)
}

func (a *Allocator) classStatistics(class int) ClassStatistics {
	sc := &a.classes[class]
	return ClassStatistics{
		BlockSize:       sc.size,
		FreeBlocks:      sc.freeCount,
		AllocatedBlocks: sc.allocated,
		PageCount:       sc.pages.Count(),
	}
}

// AddStatistics adds the allocator's pages and allocations to stats. AllocationBytes counts
// whole blocks, headers included.
func (a *Allocator) AddStatistics(stats *memutils.Statistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.addStatistics(stats)
}

func (a *Allocator) addStatistics(stats *memutils.Statistics) {
	pageCount := a.table.count()
	stats.PageCount += pageCount
	stats.PageBytes += pageCount * a.pageSize

	for class := range a.classes {
		sc := &a.classes[class]
		stats.AllocationCount += sc.allocated
		stats.AllocationBytes += sc.allocated * sc.size
	}
}

// AddDetailedStatistics adds the allocator's pages, along with every allocated and free block
// they contain, to stats
func (a *Allocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.table.each(func(frame *pageFrame) error {
		stats.PageCount++
		stats.PageBytes += a.pageSize

		return a.visitBlocks(frame, func(offset, class int, free bool) error {
			if free {
				stats.AddFreeRange(a.classes[class].size)
			} else {
				stats.AddAllocation(a.classes[class].size)
			}
			return nil
		})
	})
}

// BuildStatsString returns a JSON document describing the allocator. If detailed is true, the
// document includes a map of every block in every page.
func (a *Allocator) BuildStatsString(detailed bool) string {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	writer := jwriter.NewWriter()
	objState := writer.Object()

	objState.Name("Algorithm").String(a.algorithmKind.String())
	objState.Name("PageSize").Int(a.pageSize)

	var stats memutils.Statistics
	a.addStatistics(&stats)

	totalObj := objState.Name("Total").Object()
	totalObj.Name("PageCount").Int(stats.PageCount)
	totalObj.Name("PageBytes").Int(stats.PageBytes)
	totalObj.Name("AllocationCount").Int(stats.AllocationCount)
	totalObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	totalObj.Name("UnusedBytes").Int(stats.UnusedBytes())
	totalObj.End()

	classArray := objState.Name("Classes").Array()
	for class := range a.classes {
		classStats := a.classStatistics(class)
		classObj := classArray.Object()
		classObj.Name("BlockSize").Int(classStats.BlockSize)
		classObj.Name("FreeBlocks").Int(classStats.FreeBlocks)
		classObj.Name("AllocatedBlocks").Int(classStats.AllocatedBlocks)
		classObj.Name("PageCount").Int(classStats.PageCount)
		classObj.End()
	}
	classArray.End()

	if detailed {
		a.printDetailedMap(&objState)
	}

	objState.End()
	return string(writer.Bytes())
}

func (a *Allocator) printDetailedMap(json *jwriter.ObjectState) {
	pagesObj := json.Name("Pages").Object()
	defer pagesObj.End()

	_ = a.table.each(func(frame *pageFrame) error {
		pageObj := pagesObj.Name(strconv.Itoa(frame.page.ID())).Object()
		defer pageObj.End()

		pageObj.Name("Slot").Int(frame.slot)
		pageObj.Name("Allocations").Int(frame.allocated)

		blockArray := pageObj.Name("Blocks").Array()
		defer blockArray.End()

		return a.visitBlocks(frame, func(offset, class int, free bool) error {
			blockObj := blockArray.Object()
			defer blockObj.End()

			blockObj.Name("Offset").Int(offset)
			blockObj.Name("Size").Int(a.classes[class].size)
			if free {
				blockObj.Name("Type").String("FREE")
			} else {
				blockObj.Name("Type").String("ALLOCATION")
			}
			return nil
		})
	})
}
