package chat

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DeltaStream is an open event stream of incremental updates. Recv reports
// done=true on the termination sentinel; a transport error ends the stream
// immediately.
type DeltaStream interface {
	Recv() (Delta, bool, error)
	Close() error
}

// Backend issues chat requests against the remote service.
type Backend interface {
	// Chat performs a buffered request and returns the first choice's raw
	// message content.
	Chat(ctx context.Context, messages []Message, temperature float64) (string, error)
	// ChatStream opens a streaming request for the same conversation.
	ChatStream(ctx context.Context, messages []Message, temperature float64) (DeltaStream, error)
}

// Prompter supplies the next user entry between turns. Next returns false
// when input is exhausted.
type Prompter interface {
	Next() (string, bool)
}

// Transcript persists the conversation and renders it as the outbound
// message list.
type Transcript interface {
	Messages() ([]Message, error)
	AppendUser(entry string) error
	AppendReply(text string) error
}

// Engine drives one conversation: build context, send, assemble the reply,
// persist it, then either finish or pull the next user entry.
type Engine struct {
	Backend     Backend
	Transcript  Transcript
	Prompter    Prompter
	Labels      Labels
	Temperature float64
	Stream      bool
	Once        bool
	Quiet       bool
	Out         io.Writer
}

// stepResult is the tri-state continuation of one request/response turn.
type stepResult int

const (
	stepCompleted stepResult = iota
	stepContinue
	stepStop
)

// Run executes turns until a final reply is produced or input runs out. The
// returned message is zero-valued when the conversation ended without a
// completing turn.
func (e *Engine) Run(ctx context.Context) (Message, error) {
	for {
		res, msg, err := e.step(ctx)
		if err != nil {
			return Message{}, err
		}
		switch res {
		case stepCompleted:
			return msg, nil
		case stepStop:
			return Message{}, nil
		}
	}
}

func (e *Engine) step(ctx context.Context) (stepResult, Message, error) {
	messages, err := e.Transcript.Messages()
	if err != nil {
		return stepStop, Message{}, err
	}

	var reply string
	if e.Stream {
		reply, err = e.streamTurn(ctx, messages)
	} else {
		reply, err = e.syncTurn(ctx, messages)
	}
	if err != nil {
		return stepStop, Message{}, err
	}

	if reply != "" {
		if err := e.Transcript.AppendReply(reply); err != nil {
			return stepStop, Message{}, fmt.Errorf("persist reply: %w", err)
		}
		if e.Once {
			return stepCompleted, Message{Role: RoleAssistant, Content: reply}, nil
		}
	}

	entry, ok := e.Prompter.Next()
	if !ok {
		return stepStop, Message{}, nil
	}
	if err := e.Transcript.AppendUser(entry); err != nil {
		return stepStop, Message{}, fmt.Errorf("persist entry: %w", err)
	}
	return stepContinue, Message{}, nil
}

func (e *Engine) syncTurn(ctx context.Context, messages []Message) (string, error) {
	content, err := e.Backend.Chat(ctx, messages, e.Temperature)
	if err != nil {
		return "", err
	}
	text := LabelReply(content, e.Labels.Assistant)
	if !e.Quiet {
		if _, err := fmt.Fprintln(e.out(), text); err != nil {
			return "", fmt.Errorf("write reply: %w", err)
		}
	}
	return text, nil
}

// streamTurn assembles one streamed reply. An error mid-stream discards the
// partial buffer; whatever already reached the display stays visible.
func (e *Engine) streamTurn(ctx context.Context, messages []Message) (string, error) {
	stream, err := e.Backend.ChatStream(ctx, messages, e.Temperature)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	sink := e.out()
	if e.Quiet {
		sink = io.Discard
	}
	asm := NewAssembler(e.Labels, sink)
	for {
		d, done, err := stream.Recv()
		if err != nil {
			return "", err
		}
		if done {
			break
		}
		if err := asm.Consume(d); err != nil {
			return "", err
		}
	}

	msg, emitted, err := asm.Finish()
	if err != nil {
		return "", err
	}
	if !emitted {
		return "", nil
	}
	return msg.Content, nil
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}
