package trace_test

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/kma/trace"
)

func TestParse(t *testing.T) {
	input := "3\nREQUEST 0 10\nREQUEST 1 5000\nFREE 0\nREQUEST 2 40\nREQUEST 0 7\nFREE 1\nFREE 2\nFREE 0\n"

	parsed, err := trace.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, &trace.Trace{
		Requests: 3,
		Commands: []trace.Command{
			{Op: trace.OpRequest, ID: 0, Size: 10},
			{Op: trace.OpRequest, ID: 1, Size: 5000},
			{Op: trace.OpFree, ID: 0},
			{Op: trace.OpRequest, ID: 2, Size: 40},
			{Op: trace.OpRequest, ID: 0, Size: 7},
			{Op: trace.OpFree, ID: 1},
			{Op: trace.OpFree, ID: 2},
			{Op: trace.OpFree, ID: 0},
		},
	}, parsed)

	var out bytes.Buffer
	written, err := parsed.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(len(input)), written)
	require.Equal(t, input, out.String())
}

func TestParseRejectsMalformedTraces(t *testing.T) {
	inputs := map[string]string{
		"empty":           "",
		"bad count":       "many",
		"negative count":  "-1",
		"unknown command": "1\nALLOC 0 10",
		"missing size":    "1\nREQUEST 0",
		"bad size":        "1\nREQUEST 0 big",
		"zero size":       "1\nREQUEST 0 0",
		"id out of range": "1\nREQUEST 1 10",
		"negative id":     "1\nFREE -1",
		"double request":  "1\nREQUEST 0 10\nREQUEST 0 10",
		"free not live":   "2\nREQUEST 0 10\nFREE 1",
		"double free":     "1\nREQUEST 0 10\nFREE 0\nFREE 0",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := trace.Parse(strings.NewReader(input))
			require.ErrorIs(t, err, trace.ErrMalformedTrace)
		})
	}
}

func TestGenerateIsWellFormed(t *testing.T) {
	generated := trace.Generate(rand.New(rand.NewSource(7)), trace.GenerateOptions{
		Requests:  500,
		MaxSize:   300,
		LiveLimit: 20,
	})
	require.Equal(t, 500, generated.Requests)
	require.Len(t, generated.Commands, 1000)

	live := 0
	for _, command := range generated.Commands {
		if command.Op == trace.OpRequest {
			require.GreaterOrEqual(t, command.Size, 1)
			require.LessOrEqual(t, command.Size, 300)
			live++
		} else {
			live--
		}
		require.LessOrEqual(t, live, 20)
		require.GreaterOrEqual(t, live, 0)
	}
	require.Zero(t, live)

	// Anything Generate produces must survive a trip through the text format
	var out bytes.Buffer
	_, err := generated.WriteTo(&out)
	require.NoError(t, err)

	parsed, err := trace.Parse(&out)
	require.NoError(t, err)
	require.Equal(t, generated, parsed)
}

func TestGenerateDefaults(t *testing.T) {
	generated := trace.Generate(rand.New(rand.NewSource(1)), trace.GenerateOptions{})
	require.Equal(t, trace.DefaultRequests, generated.Requests)
	require.Len(t, generated.Commands, 2*trace.DefaultRequests)
}
