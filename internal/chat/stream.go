package chat

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// StreamState tracks how much of one in-progress assistant message has been
// materialized on the display.
type StreamState int

const (
	// StreamFresh means nothing has been emitted yet.
	StreamFresh StreamState = iota
	// StreamRoleEmitted means the role tag has been written but no content.
	StreamRoleEmitted
	// StreamContentEmitted means at least one content fragment is out.
	StreamContentEmitted
)

// Delta is one incremental update frame from a streaming response. Both
// fields are optional and may be present independently.
type Delta struct {
	Role    *Role   `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Next applies a single delta to the stream state and returns the new state
// together with the exact text to emit. It is pure: display writes and
// buffering are the caller's concern.
//
// The first content fragment of a message is left-trimmed and a redundant
// "<label>:" echo of the assistant tag is removed once; later fragments pass
// through verbatim. A role field yields the role's tag followed by ": " and
// is expected at most once per stream, though the machine stays well-defined
// if it recurs.
func Next(state StreamState, d Delta, labels Labels) (StreamState, string) {
	var emit strings.Builder

	if d.Role != nil {
		emit.WriteString(labels.For(*d.Role))
		emit.WriteString(": ")
		state = StreamRoleEmitted
	}

	if d.Content != nil {
		fragment := *d.Content
		if state != StreamContentEmitted {
			fragment = strings.TrimLeftFunc(fragment, unicode.IsSpace)
			echo := labels.Assistant + ":"
			if strings.HasPrefix(fragment, echo) {
				fragment = strings.TrimLeftFunc(strings.TrimPrefix(fragment, echo), unicode.IsSpace)
			}
		}
		emit.WriteString(fragment)
		state = StreamContentEmitted
	}

	return state, emit.String()
}

// Assembler folds a stream of deltas into one assistant message while
// mirroring every emitted fragment to a display sink. Each stream owns its
// own Assembler; it is not safe for concurrent use.
type Assembler struct {
	labels Labels
	sink   io.Writer
	state  StreamState
	buf    strings.Builder
}

// NewAssembler returns a fresh assembler writing incremental output to sink.
// A nil sink discards display output.
func NewAssembler(labels Labels, sink io.Writer) *Assembler {
	if sink == nil {
		sink = io.Discard
	}
	return &Assembler{labels: labels, sink: sink, state: StreamFresh}
}

// State reports how much of the message has been materialized so far.
func (a *Assembler) State() StreamState { return a.state }

// Consume applies one delta. The emitted fragment reaches the sink before
// Consume returns so display output keeps pace with arrival order; sink
// write failures are surfaced to the caller.
func (a *Assembler) Consume(d Delta) error {
	next, emit := Next(a.state, d, a.labels)
	a.state = next
	if emit == "" {
		return nil
	}
	a.buf.WriteString(emit)
	return a.write(emit)
}

// Finish terminates the stream. When anything was emitted a single trailing
// newline is appended to both the display and the assembled message; an
// empty stream yields an empty message with no newline. The boolean reports
// whether the stream produced any output at all.
func (a *Assembler) Finish() (Message, bool, error) {
	if a.state == StreamFresh {
		return Message{Role: RoleAssistant}, false, nil
	}
	a.buf.WriteString("\n")
	if err := a.write("\n"); err != nil {
		return Message{}, true, err
	}
	return Message{Role: RoleAssistant, Content: a.buf.String()}, true, nil
}

func (a *Assembler) write(s string) error {
	if _, err := io.WriteString(a.sink, s); err != nil {
		return fmt.Errorf("write stream output: %w", err)
	}
	if f, ok := a.sink.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush stream output: %w", err)
		}
	}
	return nil
}
