package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gochat/internal/chat"
)

// ChatRequest is the outbound chat completions payload. Construction is
// pure: the model must already be resolved and the temperature validated by
// the caller.
type ChatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []WireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
}

// CompletionRequest is the outbound legacy completions payload.
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	N           int     `json:"n"`
}

// WireMessage mirrors one conversation message on the wire.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EncodeMessages converts conversation messages into their wire shape.
func EncodeMessages(messages []chat.Message) []WireMessage {
	out := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, WireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// ChatResponse is the decoded buffered chat completions response.
type ChatResponse struct {
	ID      string       `json:"id"`
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice is a single choice in a chat response.
type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *WireMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// CompletionResponse is the decoded legacy completions response.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Choices []CompletionChoice `json:"choices"`
}

// CompletionChoice is a single choice in a completion response.
type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

// streamFrame decodes one SSE data payload of a streaming chat response.
type streamFrame struct {
	Choices []struct {
		Delta        chat.Delta `json:"delta"`
		FinishReason string     `json:"finish_reason"`
		Index        int        `json:"index"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// parseAPIError surfaces a non-success response as a RemoteError, carrying
// the remote error body verbatim when it decodes.
func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &RemoteError{Status: resp.StatusCode, Type: apiErr.Error.Type, Message: apiErr.Error.Message}
	}
	return &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode service response: %w", err)
	}
	return nil
}
