package kma

type pagePerRequestAlgorithm struct {
	allocator *Allocator
}

var _ blockAlgorithm = &pagePerRequestAlgorithm{}

func (d *pagePerRequestAlgorithm) classFor(class int) int {
	return d.allocator.topClass()
}

func (d *pagePerRequestAlgorithm) ensureFree(class int) error {
	a := d.allocator
	if a.classes[class].free != nilRef {
		return nil
	}

	frame, err := a.table.acquire()
	if err != nil {
		return err
	}

	frame.class = class
	a.classes[class].pages.Put(frame.page.ID(), frame)
	a.pushFree(class, frame, 0)
	return nil
}

func (d *pagePerRequestAlgorithm) claimed(frame *pageFrame, class int) {}

func (d *pagePerRequestAlgorithm) release(frame *pageFrame, offset int, class int) {
	d.allocator.classes[class].pages.Delete(frame.page.ID())
	d.allocator.releaseFrame(frame)
}
