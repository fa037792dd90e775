package kma

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Algorithm selects the strategy an Allocator uses to turn pages into blocks
type Algorithm int32

const (
	// AlgorithmBuddy splits whole pages top-down into buddy blocks and merges buddies back
	// together as they are freed. A page is returned to the provider as soon as it has been
	// merged back into a single free block.
	AlgorithmBuddy Algorithm = iota
	// AlgorithmPowerOfTwo carves each new page directly into blocks of the size class that ran
	// out. Blocks never change class, and all of a class's pages are returned to the provider
	// once none of its blocks are allocated.
	AlgorithmPowerOfTwo
	// AlgorithmPagePerRequest dedicates a whole page to every allocation
	AlgorithmPagePerRequest
)

var algorithmMapping = map[Algorithm]string{
	AlgorithmBuddy:          "AlgorithmBuddy",
	AlgorithmPowerOfTwo:     "AlgorithmPowerOfTwo",
	AlgorithmPagePerRequest: "AlgorithmPagePerRequest",
}

func (a Algorithm) String() string {
	str, ok := algorithmMapping[a]
	if !ok {
		return fmt.Sprintf("Algorithm(%d)", int32(a))
	}
	return str
}

var algorithmNames = map[string]Algorithm{
	"buddy": AlgorithmBuddy,
	"p2fl":  AlgorithmPowerOfTwo,
	"dummy": AlgorithmPagePerRequest,
}

// ParseAlgorithm accepts the short algorithm names "buddy", "p2fl" and "dummy"
func ParseAlgorithm(name string) (Algorithm, error) {
	algorithm, ok := algorithmNames[strings.ToLower(name)]
	if !ok {
		return 0, errors.Errorf("unknown allocation algorithm %q", name)
	}
	return algorithm, nil
}

// blockAlgorithm is the part of an Allocator that decides where free blocks come from and
// where freed blocks go
type blockAlgorithm interface {
	// classFor maps the smallest class that fits a request to the class it is served from
	classFor(class int) int
	// ensureFree makes sure the class's free list is not empty. It must not change any state
	// if it fails.
	ensureFree(class int) error
	// claimed is called after a block has been taken off a free list and handed out
	claimed(frame *pageFrame, class int)
	// release takes back an allocated block whose counts have already been decremented
	release(frame *pageFrame, offset int, class int)
}
