package trace_test

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/kma/kma"
	"github.com/vkngwrapper/kma/page"
	"github.com/vkngwrapper/kma/trace"
)

func newTarget(t *testing.T, algorithm kma.Algorithm) (*kma.Allocator, *page.Pool) {
	pool, err := page.NewPool(nil, page.PoolCreateOptions{})
	require.NoError(t, err)

	allocator, err := kma.New(nil, pool, kma.CreateOptions{Algorithm: algorithm})
	require.NoError(t, err)
	return allocator, pool
}

func TestRunScenario(t *testing.T) {
	allocator, pool := newTarget(t, kma.AlgorithmBuddy)

	parsed, err := trace.Parse(strings.NewReader("5\nREQUEST 0 10\nREQUEST 1 9000\nREQUEST 2 5000\nFREE 1\nFREE 2\nFREE 0\n"))
	require.NoError(t, err)

	var seen []int
	result, err := trace.Run(context.Background(), allocator, pool, parsed, trace.RunOptions{
		RecordSamples: true,
		OnCommand: func(index int) {
			seen = append(seen, index)
		},
	})
	require.NoError(t, err)
	require.NoError(t, result.Check())

	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, seen)
	require.Equal(t, 6, result.Commands)
	require.Equal(t, 3, result.Requests)
	require.Equal(t, 2, result.Frees)
	require.Equal(t, 1, result.Rejected)
	require.Zero(t, result.Failed)
	require.Zero(t, result.Mismatches)
	require.Equal(t, page.Stats{Requested: 2, Freed: 2, PageSize: 8192}, result.PageStats)

	require.Equal(t, []trace.Sample{
		{Index: 0},
		{Index: 1, LiveBytes: 10, PageBytes: 8192},
		{Index: 2, LiveBytes: 10, PageBytes: 8192},
		{Index: 3, LiveBytes: 5010, PageBytes: 16384},
		{Index: 4, LiveBytes: 5010, PageBytes: 16384},
		{Index: 5, LiveBytes: 10, PageBytes: 8192},
		{Index: 6},
	}, result.Samples)

	var out bytes.Buffer
	require.NoError(t, trace.WriteSamples(&out, result.Samples[:3]))
	require.Equal(t, "0 0 0\n1 10 8192\n2 10 8192\n", out.String())

	expectedRatio := (float64(8182)/10*3 + float64(16384-5010)/5010*2) / 5
	require.InDelta(t, expectedRatio, result.WasteRatio, 1e-9)
}

func TestRunGeneratedTraces(t *testing.T) {
	algorithms := []kma.Algorithm{kma.AlgorithmBuddy, kma.AlgorithmPowerOfTwo, kma.AlgorithmPagePerRequest}

	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			allocator, pool := newTarget(t, algorithm)
			generated := trace.Generate(rand.New(rand.NewSource(3)), trace.GenerateOptions{
				Requests:  2000,
				MaxSize:   8192,
				LiveLimit: 100,
			})

			result, err := trace.Run(context.Background(), allocator, pool, generated, trace.RunOptions{})
			require.NoError(t, err)
			require.NoError(t, result.Check())
			require.Equal(t, 2000, result.Requests)
			require.Equal(t, 2000, result.Frees+result.Rejected)
			require.NoError(t, allocator.Validate())
			require.Nil(t, result.Samples)
		})
	}
}

func TestRunDetectsLeaks(t *testing.T) {
	allocator, pool := newTarget(t, kma.AlgorithmBuddy)

	parsed, err := trace.Parse(strings.NewReader("2\nREQUEST 0 10\nREQUEST 1 20\nFREE 0\n"))
	require.NoError(t, err)

	result, err := trace.Run(context.Background(), allocator, pool, parsed, trace.RunOptions{})
	require.NoError(t, err)
	require.Error(t, result.Check())
	require.Equal(t, 1, result.PageStats.InUse)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	allocator, pool := newTarget(t, kma.AlgorithmBuddy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	generated := trace.Generate(rand.New(rand.NewSource(3)), trace.GenerateOptions{Requests: 10})
	_, err := trace.Run(ctx, allocator, pool, generated, trace.RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, pool.Stats().Requested)
}
