package kma

import "fmt"

// Pointer addresses the payload of an allocation: the id of the page that holds it and the offset
// of the first payload byte within that page. The zero Pointer is null, since a payload always
// sits after its block header.
type Pointer struct {
	PageID int
	Offset int
}

// IsNull returns true for the zero Pointer
func (p Pointer) IsNull() bool {
	return p.Offset == 0
}

func (p Pointer) String() string {
	if p.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d:%d", p.PageID, p.Offset)
}
