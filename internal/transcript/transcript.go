// Package transcript persists conversations as plain-text files with
// labeled lines ("USER: ...", "AI: ...") and renders them back into the
// outbound message list, trimmed to a context token budget.
package transcript

import (
	"fmt"
	"os"
	"strings"

	"gochat/internal/chat"
)

// Budget bounds how much conversation history is sent as context. The
// history share of the window is TokensMax scaled by TokensBalance; the rest
// is left for the reply.
type Budget struct {
	TokensMax     int
	TokensBalance float64
}

// File is a conversation transcript. A line starting with a known
// "<label>: " tag begins a new message; any other line continues the
// previous one. An empty path keeps the transcript in memory only.
type File struct {
	path    string
	labels  chat.Labels
	system  string
	budget  Budget
	content string
}

// Open loads the transcript at path. A missing file starts an empty
// conversation.
func Open(path string, labels chat.Labels, system string, budget Budget) (*File, error) {
	f := &File{path: path, labels: labels, system: system, budget: budget}
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("read transcript %q: %w", path, err)
	}
	f.content = string(data)
	return f, nil
}

// Content returns the raw transcript text.
func (f *File) Content() string { return f.content }

// AppendUser records a user entry, adding the user label when missing.
func (f *File) AppendUser(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	label := f.labels.User + ": "
	if !strings.HasPrefix(entry, label) {
		entry = label + entry
	}
	return f.append(entry + "\n")
}

// AppendReply records an assistant reply, normalized to a single trailing
// newline. Write failures are returned, never discarded.
func (f *File) AppendReply(text string) error {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return f.append(text + "\n")
}

// append persists the grown transcript before adopting it in memory, so a
// failed write leaves the in-memory state matching what is on disk.
func (f *File) append(chunk string) error {
	next := f.content + chunk
	if f.path != "" {
		if err := os.WriteFile(f.path, []byte(next), 0o600); err != nil {
			return fmt.Errorf("write transcript %q: %w", f.path, err)
		}
	}
	f.content = next
	return nil
}

// Messages renders the transcript as a role-labeled message list, prefixed
// with the system message and trimmed to the context budget.
func (f *File) Messages() ([]chat.Message, error) {
	msgs := trimToBudget(parseMessages(f.content, f.labels), f.budget)

	out := make([]chat.Message, 0, len(msgs)+1)
	if f.system != "" {
		out = append(out, chat.Message{Role: chat.RoleSystem, Content: f.system})
	}
	return append(out, msgs...), nil
}

func parseMessages(content string, labels chat.Labels) []chat.Message {
	userLabel := labels.User + ": "
	assistantLabel := labels.Assistant + ": "

	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var msgs []chat.Message
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, userLabel):
			msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: strings.TrimPrefix(line, userLabel)})
		case strings.HasPrefix(line, assistantLabel):
			msgs = append(msgs, chat.Message{Role: chat.RoleAssistant, Content: strings.TrimPrefix(line, assistantLabel)})
		default:
			if len(msgs) == 0 {
				// Preamble with no label has no owner; skip it.
				continue
			}
			msgs[len(msgs)-1].Content += "\n" + line
		}
	}
	return msgs
}

// estimateTokens approximates the service tokenizer at four characters per
// token, close enough for budgeting context.
func estimateTokens(s string) int {
	return len(s)/4 + 1
}

// trimToBudget drops the oldest turns until the history fits the budget. The
// most recent message always survives.
func trimToBudget(msgs []chat.Message, budget Budget) []chat.Message {
	if budget.TokensMax <= 0 || budget.TokensBalance <= 0 {
		return msgs
	}
	limit := int(float64(budget.TokensMax) * budget.TokensBalance)

	total := 0
	for _, m := range msgs {
		total += estimateTokens(m.Content)
	}
	for len(msgs) > 1 && total > limit {
		total -= estimateTokens(msgs[0].Content)
		msgs = msgs[1:]
	}
	return msgs
}
