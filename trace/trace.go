// Package trace reads, writes, generates and replays allocation traces. A trace is a count of
// request ids followed by REQUEST and FREE commands:
//
//	4
//	REQUEST 0 10
//	REQUEST 1 5000
//	FREE 0
//	FREE 1
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
)

// ErrMalformedTrace is wrapped by every error Parse returns for bad input
var ErrMalformedTrace error = errors.New("malformed trace")

// Op is the kind of a trace command
type Op int8

const (
	OpRequest Op = iota
	OpFree
)

var opMapping = map[Op]string{
	OpRequest: "REQUEST",
	OpFree:    "FREE",
}

func (o Op) String() string {
	str, ok := opMapping[o]
	if !ok {
		return fmt.Sprintf("Op(%d)", int8(o))
	}
	return str
}

// Command is a single line of a trace. Size is only meaningful for OpRequest.
type Command struct {
	Op   Op
	ID   int
	Size int
}

// Trace is a parsed allocation trace. Every ID is in [0, Requests).
type Trace struct {
	Requests int
	Commands []Command
}

type tokenReader struct {
	scanner *bufio.Scanner
	command int
}

func (r *tokenReader) next(what string) (string, error) {
	if !r.scanner.Scan() {
		err := r.scanner.Err()
		if err != nil {
			return "", cerrors.Wrapf(err, "failed to read %s", what)
		}
		return "", errors.Wrapf(ErrMalformedTrace, "command %d: missing %s", r.command, what)
	}
	return r.scanner.Text(), nil
}

func (r *tokenReader) nextInt(what string) (int, error) {
	token, err := r.next(what)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(token)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedTrace, "command %d: %s %q is not a number", r.command, what, token)
	}
	return value, nil
}

// Parse reads a trace. The trace must be well formed: an id may only be requested while it is
// not live and only freed while it is.
func Parse(reader io.Reader) (*Trace, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Split(bufio.ScanWords)
	tokens := &tokenReader{scanner: scanner}

	requests, err := tokens.nextInt("request count")
	if err != nil {
		return nil, err
	}
	if requests < 0 {
		return nil, errors.Wrapf(ErrMalformedTrace, "request count %d is negative", requests)
	}

	trace := &Trace{Requests: requests}
	live := make([]bool, requests)

	for scanner.Scan() {
		tokens.command++
		word := scanner.Text()

		var command Command
		switch word {
		case "REQUEST":
			command.Op = OpRequest
		case "FREE":
			command.Op = OpFree
		default:
			return nil, errors.Wrapf(ErrMalformedTrace, "command %d: unknown command %q", tokens.command, word)
		}

		command.ID, err = tokens.nextInt("request id")
		if err != nil {
			return nil, err
		}
		if command.ID < 0 || command.ID >= requests {
			return nil, errors.Wrapf(ErrMalformedTrace, "command %d: request id %d is outside [0, %d)", tokens.command, command.ID, requests)
		}

		if command.Op == OpRequest {
			command.Size, err = tokens.nextInt("request size")
			if err != nil {
				return nil, err
			}
			if command.Size <= 0 {
				return nil, errors.Wrapf(ErrMalformedTrace, "command %d: request size %d is not positive", tokens.command, command.Size)
			}
			if live[command.ID] {
				return nil, errors.Wrapf(ErrMalformedTrace, "command %d: request id %d is already live", tokens.command, command.ID)
			}
		} else if !live[command.ID] {
			return nil, errors.Wrapf(ErrMalformedTrace, "command %d: request id %d is not live", tokens.command, command.ID)
		}

		live[command.ID] = command.Op == OpRequest
		trace.Commands = append(trace.Commands, command)
	}

	err = scanner.Err()
	if err != nil {
		return nil, cerrors.Wrap(err, "failed to read trace")
	}

	return trace, nil
}

// WriteTo writes the trace in the format Parse reads
func (t *Trace) WriteTo(writer io.Writer) (int64, error) {
	buffered := bufio.NewWriter(writer)
	var written int64

	n, err := fmt.Fprintf(buffered, "%d\n", t.Requests)
	written += int64(n)
	if err != nil {
		return written, err
	}

	for _, command := range t.Commands {
		if command.Op == OpRequest {
			n, err = fmt.Fprintf(buffered, "%s %d %d\n", command.Op, command.ID, command.Size)
		} else {
			n, err = fmt.Fprintf(buffered, "%s %d\n", command.Op, command.ID)
		}
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, buffered.Flush()
}
