// Package page provides the fixed-size pages that kma allocators carve into blocks. A Provider
// hands out pages of a single, fixed size and takes them back once the allocator has no further
// use for them.
package page

// Page is a fixed-size region of memory owned by whoever acquired it from a Provider. Offsets into
// Data are the only addressing used by consumers: the base address of the slice carries no
// alignment guarantee beyond the one Go gives every allocation.
type Page struct {
	id   int
	data []byte
}

// New wraps a region of memory as a Page. Providers use it to build the pages they hand out.
func New(id int, data []byte) *Page {
	return &Page{id: id, data: data}
}

// ID returns the identifier the provider assigned to the page. Identifiers are unique for the
// lifetime of the provider.
func (p *Page) ID() int { return p.id }

// Data returns the page's memory
func (p *Page) Data() []byte { return p.data }

// Size returns the size of the page in bytes
func (p *Page) Size() int { return len(p.data) }

// Stats reports the aggregate page traffic of a Provider
type Stats struct {
	Requested int
	Freed     int
	InUse     int
	PageSize  int
}

// Provider is the source of pages for an allocator
type Provider interface {
	// AcquirePage returns a new page of PageSize bytes, or an error wrapping ErrPagesExhausted
	// if none remain.
	AcquirePage() (*Page, error)
	// ReleasePage returns a page to the provider. It is an error to release a page that was not
	// acquired from this provider or that has already been released.
	ReleasePage(page *Page) error
	// Stats returns a snapshot of the provider's counters
	Stats() Stats
	// PageSize returns the size in bytes of every page handed out by this provider
	PageSize() int
}
