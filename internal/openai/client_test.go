package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Token: "sk-test", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Config{Token: "   "}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateChatSendsExpectedRequest(t *testing.T) {
	var got ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"hey there"},"finish_reason":"stop"}]}`)
	})

	resp, err := client.CreateChat(context.Background(), ChatRequest{
		Model:       "gpt-4",
		Temperature: 0.8,
		Messages: []WireMessage{
			{Role: "system", Content: "be nice"},
			{Role: "user", Content: "hi"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 0.8, got.Temperature)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[1].Role)

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hey there", resp.Choices[0].Message.Content)
}

func TestChatReturnsFirstChoiceContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"first"}},{"message":{"role":"assistant","content":"second"}}]}`)
	})

	content, err := client.Chat(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", content)
}

func TestChatErrorsWithoutChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := client.Chat(context.Background(), nil, 1)
	assert.Error(t, err)
}

func TestCreateChatSurfacesRemoteError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"requests"}}`)
	})

	_, err := client.CreateChat(context.Background(), ChatRequest{Model: "gpt-4"})
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusTooManyRequests, remote.Status)
	assert.Equal(t, "requests", remote.Type)
	assert.Equal(t, "rate limit exceeded", remote.Message)
}

func TestCreateChatKeepsOpaqueErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream on fire")
	})

	_, err := client.CreateChat(context.Background(), ChatRequest{Model: "gpt-4"})
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadGateway, remote.Status)
	assert.Equal(t, "upstream on fire", remote.Message)
}

func TestCreateChatStreamDecodesDeltas(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"},\"index\":0}]}\n")
		io.WriteString(w, "\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hey\"},\"index\":0}]}\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" there\"},\"index\":0}]}\n")
		io.WriteString(w, "data: [DONE]\n")
	})

	stream, err := client.ChatStream(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, 1)
	require.NoError(t, err)
	defer stream.Close()

	d, done, err := stream.Recv()
	require.NoError(t, err)
	require.False(t, done)
	require.NotNil(t, d.Role)
	assert.Equal(t, chat.RoleAssistant, *d.Role)

	var fragments []string
	for {
		d, done, err = stream.Recv()
		require.NoError(t, err)
		if done {
			break
		}
		require.NotNil(t, d.Content)
		fragments = append(fragments, *d.Content)
	}
	assert.Equal(t, []string{"hey", " there"}, fragments)
}

func TestEventStreamErrorsWhenEndingWithoutSentinel(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"partial answer\"},\"index\":0}]}\n"
	stream := newEventStream(io.NopCloser(strings.NewReader(body)))

	d, done, err := stream.Recv()
	require.NoError(t, err)
	require.False(t, done)
	require.NotNil(t, d.Content)
	assert.Equal(t, "partial answer", *d.Content)

	_, done, err = stream.Recv()
	require.Error(t, err)
	assert.True(t, done)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCreateChatStreamSurfacesMalformedFrame(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {not json}\n")
	})

	stream, err := client.CreateChatStream(context.Background(), ChatRequest{Model: "gpt-4"})
	require.NoError(t, err)
	defer stream.Close()

	_, _, err = stream.Recv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stream frame")
}

func TestCreateChatStreamErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	})

	_, err := client.CreateChatStream(context.Background(), ChatRequest{Model: "gpt-4"})
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnauthorized, remote.Status)
}

func TestCreateCompletionCollectsChoiceTexts(t *testing.T) {
	var got CompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"id":"cmpl-1","choices":[{"text":"fn main() {}","index":0},{"text":"print(1)","index":1}]}`)
	})

	texts, err := client.CreateCompletion(context.Background(), ModelCodeDavinci, "write a program", 0.2, 2)
	require.NoError(t, err)

	assert.Equal(t, "code-davinci-002", got.Model)
	assert.Equal(t, "write a program", got.Prompt)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.Equal(t, 2, got.N)
	assert.Equal(t, []string{"fn main() {}", "print(1)"}, texts)
}
