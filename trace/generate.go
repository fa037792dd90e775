package trace

import "math/rand"

const (
	DefaultRequests  int = 1000
	DefaultMaxSize   int = 2048
	DefaultLiveLimit int = 128
)

// GenerateOptions contains optional settings for Generate
type GenerateOptions struct {
	// Requests is the number of REQUEST commands in the trace
	Requests int
	// MaxSize is the largest request size. Sizes are drawn uniformly from [1, MaxSize].
	MaxSize int
	// LiveLimit is the most requests that may be live at once
	LiveLimit int
}

// Generate builds a random, well-formed trace in which every request is eventually freed. Ids
// are never reused, so the trace has exactly Requests ids.
func Generate(rng *rand.Rand, options GenerateOptions) *Trace {
	requests := options.Requests
	if requests <= 0 {
		requests = DefaultRequests
	}
	maxSize := options.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	liveLimit := options.LiveLimit
	if liveLimit <= 0 {
		liveLimit = DefaultLiveLimit
	}

	trace := &Trace{
		Requests: requests,
		Commands: make([]Command, 0, 2*requests),
	}

	live := make([]int, 0, liveLimit)
	freeRandom := func() {
		index := rng.Intn(len(live))
		trace.Commands = append(trace.Commands, Command{Op: OpFree, ID: live[index]})
		live[index] = live[len(live)-1]
		live = live[:len(live)-1]
	}

	for id := 0; id < requests; {
		if len(live) > 0 && (len(live) >= liveLimit || rng.Intn(2) == 0) {
			freeRandom()
			continue
		}

		trace.Commands = append(trace.Commands, Command{Op: OpRequest, ID: id, Size: 1 + rng.Intn(maxSize)})
		live = append(live, id)
		id++
	}

	for len(live) > 0 {
		freeRandom()
	}

	return trace
}
