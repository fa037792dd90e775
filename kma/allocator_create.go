package kma

import (
	"strings"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/kma/internal/utils"
	"github.com/vkngwrapper/kma/memutils"
	"github.com/vkngwrapper/kma/page"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one goroutine at a time or is
	// synchronized by some other mechanism, but performance may improve because internal mutexes
	// are not used.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

var allocatorCreateFlagsMapping = map[CreateFlags]string{
	AllocatorCreateExternallySynchronized: "AllocatorCreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := AllocatorCreateExternallySynchronized; bit <= AllocatorCreateExternallySynchronized; bit <<= 1 {
		if f&bit != 0 {
			names = append(names, allocatorCreateFlagsMapping[bit])
		}
	}
	return strings.Join(names, "|")
}

const (
	// DefaultMinBlockSize is the smallest block size used when CreateOptions.MinBlockSize is left
	// at zero
	DefaultMinBlockSize int = 32
)

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// Algorithm is the strategy used to carve pages into blocks. The zero value is AlgorithmBuddy.
	Algorithm Algorithm
	// MinBlockSize is the size of the smallest size class. It must be a power of two no smaller
	// than 16 and no larger than the provider's page size.
	MinBlockSize int
}

// New creates a new Allocator
//
// logger - Receives page traffic at debug level and leaked allocations at error level. If nil,
// slog.Default() is used.
//
// provider - The source of the pages that blocks are carved from. The provider's page size must
// be a power of two.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, provider page.Provider, options CreateOptions) (*Allocator, error) {
	if provider == nil {
		return nil, errors.New("kma.New requires a page provider")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pageSize := provider.PageSize()
	err := memutils.CheckPow2(pageSize, "page size")
	if err != nil {
		return nil, err
	}

	minBlockSize := options.MinBlockSize
	if minBlockSize == 0 {
		minBlockSize = DefaultMinBlockSize
	}
	err = memutils.CheckPow2(minBlockSize, "CreateOptions.MinBlockSize")
	if err != nil {
		return nil, err
	}
	if minBlockSize < minimumBlockSize {
		return nil, cerrors.Newf("CreateOptions.MinBlockSize must be at least %d, but it was %d", minimumBlockSize, minBlockSize)
	}
	if minBlockSize > pageSize {
		return nil, cerrors.Newf("CreateOptions.MinBlockSize (%d) is larger than the page size (%d)", minBlockSize, pageSize)
	}
	if pageSize-HeaderSize-memutils.DebugMargin <= 0 {
		return nil, cerrors.Newf("a page size of %d leaves no room for a payload", pageSize)
	}

	minShift := memutils.Log2(minBlockSize)
	unitShift := memutils.Log2(pageSize) - minShift
	if unitShift >= 32 {
		return nil, cerrors.Newf("a page of %d bytes holds too many %d-byte blocks to address", pageSize, minBlockSize)
	}

	allocator := &Allocator{
		logger:         logger,
		mutex:          utils.NewOptionalMutex(options.Flags&AllocatorCreateExternallySynchronized == 0),
		createFlags:    options.Flags,
		algorithmKind:  options.Algorithm,
		provider:       provider,
		pageSize:       pageSize,
		minBlockSize:   minBlockSize,
		minShift:       minShift,
		maxRequestSize: pageSize - HeaderSize - memutils.DebugMargin,
		classes:        newSizeClasses(minBlockSize, pageSize),
	}
	allocator.table = newPageTable(logger, provider, pageSize, len(allocator.classes), minShift, unitShift)

	switch options.Algorithm {
	case AlgorithmBuddy:
		allocator.algorithm = &buddyAlgorithm{allocator: allocator}
	case AlgorithmPowerOfTwo:
		allocator.algorithm = &powerOfTwoAlgorithm{allocator: allocator}
	case AlgorithmPagePerRequest:
		allocator.algorithm = &pagePerRequestAlgorithm{allocator: allocator}
	default:
		return nil, cerrors.Newf("unknown allocation algorithm: %s", options.Algorithm)
	}

	return allocator, nil
}
