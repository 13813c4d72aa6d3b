package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"gochat/internal/chat"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "gochat/0.1"

	defaultBaseURL   = "https://api.openai.com/v1"
	defaultChatModel = "gpt-4"

	// The completions endpoint requires an explicit output budget.
	completionMaxTokens = 1000

	defaultHTTPTimeout     = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Config carries the resolved parameters for a Client. The bearer token must
// be resolved by the caller; the client never consults the process
// environment.
type Config struct {
	Token     string
	BaseURL   string
	ChatModel string
}

// Client talks to an OpenAI-compatible text-generation service.
type Client struct {
	token         string
	chatModel     string
	client        *http.Client
	chatURL       string
	completionURL string
}

// NewClient constructs a Client. An empty base URL selects the public
// endpoint; an empty token fails with ErrUnauthorized before any request can
// be issued.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrUnauthorized
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(defaultHTTPTimeout)
	}

	return &Client{
		token:         cfg.Token,
		chatModel:     chatModel,
		client:        httpClient,
		chatURL:       baseURL + "/chat/completions",
		completionURL: baseURL + "/completions",
	}, nil
}

// NewHTTPClient builds an http.Client with sane transport limits.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// CreateChat sends a buffered chat request and decodes the response.
func (c *Client) CreateChat(ctx context.Context, payload ChatRequest) (*ChatResponse, error) {
	httpReq, err := c.newRequest(ctx, c.chatURL, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(httpResp)
	}

	var resp ChatResponse
	if err := decodeJSON(httpResp.Body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateChatStream sends the chat request with streaming enabled and returns
// the open delta stream. The caller owns the stream and must close it.
func (c *Client) CreateChatStream(ctx context.Context, payload ChatRequest) (chat.DeltaStream, error) {
	payload.Stream = true

	httpReq, err := c.newRequest(ctx, c.chatURL, payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat stream request failed: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, parseAPIError(httpResp)
	}

	return newEventStream(httpResp.Body), nil
}

// CreateCompletion sends a single-prompt request and returns the text of
// every choice, in order.
func (c *Client) CreateCompletion(ctx context.Context, model Model, prompt string, temperature float64, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	payload := CompletionRequest{
		Model:       string(model),
		Prompt:      prompt,
		MaxTokens:   completionMaxTokens,
		Temperature: temperature,
		N:           n,
	}

	httpReq, err := c.newRequest(ctx, c.completionURL, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(httpResp)
	}

	var resp CompletionResponse
	if err := decodeJSON(httpResp.Body, &resp); err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		texts = append(texts, choice.Text)
	}
	return texts, nil
}

// Chat implements chat.Backend using the configured chat model. It returns
// the first choice's raw message content.
func (c *Client) Chat(ctx context.Context, messages []chat.Message, temperature float64) (string, error) {
	resp, err := c.CreateChat(ctx, ChatRequest{
		Model:       c.chatModel,
		Temperature: temperature,
		Messages:    EncodeMessages(messages),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", errors.New("chat response did not include a message")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements chat.Backend using the configured chat model.
func (c *Client) ChatStream(ctx context.Context, messages []chat.Message, temperature float64) (chat.DeltaStream, error) {
	return c.CreateChatStream(ctx, ChatRequest{
		Model:       c.chatModel,
		Temperature: temperature,
		Messages:    EncodeMessages(messages),
	})
}

func (c *Client) newRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.token)

	return req, nil
}
