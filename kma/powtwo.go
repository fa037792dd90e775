package kma

type powerOfTwoAlgorithm struct {
	allocator *Allocator
}

var _ blockAlgorithm = &powerOfTwoAlgorithm{}

func (p *powerOfTwoAlgorithm) classFor(class int) int {
	return class
}

func (p *powerOfTwoAlgorithm) ensureFree(class int) error {
	a := p.allocator
	sc := &a.classes[class]
	if sc.free != nilRef {
		return nil
	}

	frame, err := a.table.acquire()
	if err != nil {
		return err
	}

	frame.class = class
	sc.pages.Put(frame.page.ID(), frame)

	// Pushed in reverse so the lowest offset ends up at the head
	for offset := a.pageSize - sc.size; offset >= 0; offset -= sc.size {
		a.pushFree(class, frame, offset)
	}

	return nil
}

func (p *powerOfTwoAlgorithm) claimed(frame *pageFrame, class int) {}

func (p *powerOfTwoAlgorithm) release(frame *pageFrame, offset int, class int) {
	a := p.allocator
	sc := &a.classes[class]

	a.pushFree(class, frame, offset)
	if sc.allocated > 0 {
		return
	}

	// Every block of this class is free, and every one of them lives on one of its pages
	frames := make([]*pageFrame, 0, sc.pages.Count())
	sc.pages.Iter(func(id int, frame *pageFrame) bool {
		frames = append(frames, frame)
		return false
	})

	sc.free = nilRef
	sc.freeCount = 0
	for _, frame := range frames {
		sc.pages.Delete(frame.page.ID())
		a.releaseFrame(frame)
	}
}
