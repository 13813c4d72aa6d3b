package openai

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gochat/internal/chat"
)

// doneSentinel marks end-of-stream. It is matched literally and never
// parsed as JSON.
const doneSentinel = "[DONE]"

// eventStream reads server-sent event frames from a streaming response body
// and yields one delta per data frame.
type eventStream struct {
	body io.ReadCloser
	r    *bufio.Reader
}

func newEventStream(body io.ReadCloser) *eventStream {
	return &eventStream{body: body, r: bufio.NewReader(body)}
}

// Recv returns the next delta. done is true only at the termination
// sentinel; input ending before the sentinel is a truncated stream and fails,
// so a cut-off reply is never mistaken for a complete one. A transport
// failure closes the underlying body and ends the stream; frames that fail
// to decode are surfaced rather than skipped.
func (s *eventStream) Recv() (chat.Delta, bool, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			s.body.Close()
			if errors.Is(err, io.EOF) {
				return chat.Delta{}, true, fmt.Errorf("event stream ended before %s: %w", doneSentinel, io.ErrUnexpectedEOF)
			}
			return chat.Delta{}, true, fmt.Errorf("read event stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneSentinel {
			return chat.Delta{}, true, nil
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			return chat.Delta{}, false, fmt.Errorf("decode stream frame: %w", err)
		}
		if len(frame.Choices) == 0 {
			continue
		}
		return frame.Choices[0].Delta, false, nil
	}
}

func (s *eventStream) Close() error { return s.body.Close() }
