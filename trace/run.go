package trace

import (
	"bytes"
	"context"
	"fmt"
	"io"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/kma/kma"
	"github.com/vkngwrapper/kma/page"
	"golang.org/x/exp/slog"
)

// Target is the allocator a trace is replayed against
type Target interface {
	Allocate(size int) (kma.Pointer, bool)
	Deallocate(ptr kma.Pointer, size int)
	Payload(ptr kma.Pointer, size int) []byte
	MaxRequestSize() int
}

var _ Target = &kma.Allocator{}

// RunOptions contains optional settings for Run
type RunOptions struct {
	// Logger receives failed allocations and payload mismatches. If nil, slog.Default() is used.
	Logger *slog.Logger
	// RecordSamples keeps a Sample for every command in Result.Samples
	RecordSamples bool
	// OnCommand, if set, is called after every command is replayed
	OnCommand func(index int)
}

// Sample is the memory use after a single command
type Sample struct {
	Index     int
	LiveBytes int
	PageBytes int
}

// Result is the outcome of replaying a trace
type Result struct {
	Commands int
	Requests int
	Frees    int
	// Rejected counts requests too large for the allocator, which it correctly refused
	Rejected int
	// Failed counts requests the allocator should have satisfied but refused
	Failed     int
	Mismatches int

	PageStats  page.Stats
	Samples    []Sample
	WasteRatio float64
}

// Check returns an error if pages leaked, if a request that fit failed, or if any payload
// changed between allocation and free
func (r *Result) Check() error {
	var err error
	if r.PageStats.Requested != r.PageStats.Freed || r.PageStats.InUse != 0 {
		err = cerrors.CombineErrors(err, errors.Errorf("not all pages freed: %d requested, %d freed, %d in use",
			r.PageStats.Requested, r.PageStats.Freed, r.PageStats.InUse))
	}
	if r.Failed > 0 {
		err = cerrors.CombineErrors(err, errors.Errorf("%d allocatable requests returned null", r.Failed))
	}
	if r.Mismatches > 0 {
		err = cerrors.CombineErrors(err, errors.Errorf("there were %d memory mismatches", r.Mismatches))
	}
	return err
}

type liveRequest struct {
	ptr      kma.Pointer
	size     int
	expected []byte
}

// Run replays a trace against target, which must draw its pages from provider. Every payload is
// filled with a running byte pattern when allocated and checked when freed. A null result is
// only accepted for requests larger than target.MaxRequestSize(), and a later FREE of such a
// request is skipped.
func Run(ctx context.Context, target Target, provider page.Provider, trace *Trace, options RunOptions) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := &Result{}
	if options.RecordSamples {
		result.Samples = make([]Sample, 0, len(trace.Commands)+1)
		result.Samples = append(result.Samples, Sample{})
	}

	live := make([]*liveRequest, trace.Requests)
	liveBytes := 0
	var val byte
	var ratioSum float64
	ratioCount := 0

	for index, command := range trace.Commands {
		if index%1024 == 0 {
			err := ctx.Err()
			if err != nil {
				return nil, cerrors.Wrapf(err, "trace replay stopped at command %d", index)
			}
		}

		if command.ID < 0 || command.ID >= len(live) {
			return nil, errors.Wrapf(ErrMalformedTrace, "command %d: request id %d is outside [0, %d)", index, command.ID, len(live))
		}

		switch command.Op {
		case OpRequest:
			if live[command.ID] != nil {
				return nil, errors.Wrapf(ErrMalformedTrace, "command %d: request id %d is already live", index, command.ID)
			}

			result.Requests++
			ptr, ok := target.Allocate(command.Size)
			if !ok {
				if command.Size > target.MaxRequestSize() {
					result.Rejected++
				} else {
					result.Failed++
					logger.LogAttrs(ctx, slog.LevelError, "got null for an allocatable request",
						slog.Int("command", index),
						slog.Int("id", command.ID),
						slog.Int("size", command.Size),
					)
				}
				break
			}

			payload := target.Payload(ptr, command.Size)
			expected := make([]byte, command.Size)
			for i := range payload {
				payload[i] = val
				val++
			}
			copy(expected, payload)

			live[command.ID] = &liveRequest{ptr: ptr, size: command.Size, expected: expected}
			liveBytes += command.Size

		case OpFree:
			request := live[command.ID]
			if request == nil {
				break
			}

			result.Frees++
			payload := target.Payload(request.ptr, request.size)
			if !bytes.Equal(payload, request.expected) {
				result.Mismatches++
				logger.LogAttrs(ctx, slog.LevelError, "memory mismatch",
					slog.Int("command", index),
					slog.Int("id", command.ID),
					slog.Int("position", firstDifference(payload, request.expected)),
				)
			}

			target.Deallocate(request.ptr, request.size)
			live[command.ID] = nil
			liveBytes -= request.size

		default:
			return nil, errors.Wrapf(ErrMalformedTrace, "command %d: unknown op %s", index, command.Op)
		}

		result.Commands++
		stats := provider.Stats()
		pageBytes := stats.InUse * stats.PageSize
		if liveBytes > 0 {
			ratioSum += float64(pageBytes-liveBytes) / float64(liveBytes)
			ratioCount++
		}
		if options.RecordSamples {
			result.Samples = append(result.Samples, Sample{Index: index + 1, LiveBytes: liveBytes, PageBytes: pageBytes})
		}
		if options.OnCommand != nil {
			options.OnCommand(index)
		}
	}

	result.PageStats = provider.Stats()
	if ratioCount > 0 {
		result.WasteRatio = ratioSum / float64(ratioCount)
	}

	return result, nil
}

func firstDifference(left, right []byte) int {
	for i := range left {
		if left[i] != right[i] {
			return i
		}
	}
	return -1
}

// WriteSamples writes one "index live total" line per sample
func WriteSamples(writer io.Writer, samples []Sample) error {
	var buffer bytes.Buffer
	for _, sample := range samples {
		fmt.Fprintf(&buffer, "%d %d %d\n", sample.Index, sample.LiveBytes, sample.PageBytes)
	}

	_, err := writer.Write(buffer.Bytes())
	return err
}
