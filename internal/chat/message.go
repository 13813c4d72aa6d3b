package chat

import "strings"

// Role identifies the author of a conversational message. Values match the
// wire-level role names of the chat completions API.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-labeled entry in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Labels maps roles to the human-readable tags used in transcripts and on
// the terminal, e.g. "USER" and "AI".
type Labels struct {
	System    string
	User      string
	Assistant string
}

// DefaultLabels returns the transcript tags used when none are configured.
func DefaultLabels() Labels {
	return Labels{System: "SYSTEM", User: "USER", Assistant: "AI"}
}

// For returns the tag for the given role.
func (l Labels) For(role Role) string {
	switch role {
	case RoleSystem:
		return l.System
	case RoleUser:
		return l.User
	default:
		return l.Assistant
	}
}

// LabelReply normalizes a completed assistant reply for the transcript: the
// content is trimmed and prefixed with "<label>: " unless it already starts
// with the label, compared case-insensitively.
func LabelReply(content, label string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) >= len(label) && strings.EqualFold(trimmed[:len(label)], label) {
		return trimmed
	}
	return label + ": " + trimmed
}
