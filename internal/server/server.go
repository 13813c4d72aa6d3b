// Package server implements a local OpenAI-compatible relay. It accepts
// chat completion requests, resolves abstract model names, injects the
// resolved credential, and forwards the call to the configured backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"gochat/internal/config"
	"gochat/internal/openai"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 45 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	backend *openai.Client
	app     *echo.Echo
	address string
}

// New constructs the relay wired with routing and middleware.
func New(cfg config.Config, backend *openai.Client) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend client must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		backend: backend,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the relay as an http.Handler.
func (s *Server) Handler() http.Handler { return s.app }

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting relay", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("relay shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req ChatCompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	model, err := s.resolveModel(req.Model)
	if err != nil {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}

	temperature := s.cfg.Chat.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	temperature, err = openai.ValidateTemperature(temperature)
	if err != nil {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}

	resp, err := s.backend.CreateChat(c.Request().Context(), openai.ChatRequest{
		Model:       model,
		Temperature: temperature,
		Messages:    req.wireMessages(),
	})
	if err != nil {
		return toHTTPError(err)
	}
	if len(resp.Choices) == 0 {
		return requestError{
			Status:  http.StatusBadGateway,
			Message: "upstream returned an empty response",
			Type:    "upstream_error",
		}
	}

	responseID := "chatcmpl-" + uuid.NewString()
	if req.Stream {
		return writeChunkStream(c, responseID, model, resp)
	}
	return c.JSON(http.StatusOK, newChatCompletionResponse(responseID, model, time.Now().Unix(), resp))
}

// resolveModel accepts either a concrete model id or an abstract
// "<focus>-<size>" name. Abstract names go through the resolution table;
// inexact matches are logged and substituted, never rejected.
func (s *Server) resolveModel(name string) (string, error) {
	focusPart, sizePart, found := strings.Cut(name, "-")
	if !found {
		return name, nil
	}

	focus, err := openai.ParseFocus(focusPart)
	if err != nil {
		return name, nil // not an abstract name; pass through
	}
	size, err := openai.ParseSize(sizePart)
	if err != nil {
		return name, nil
	}

	model, fallback, err := openai.ResolveModel(focus, size)
	if err != nil {
		return "", err
	}
	if fallback != nil {
		slog.Warn("inexact model match", "requested", name, "substituted", string(model), "detail", fallback.String())
	}
	return string(model), nil
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var remote *openai.RemoteError
	if errors.As(err, &remote) {
		return requestError{
			Status:  remote.Status,
			Message: remote.Message,
			Type:    "upstream_error",
		}
	}
	if errors.Is(err, openai.ErrNoMatchingModel) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}

	return requestError{
		Status:  http.StatusBadGateway,
		Message: "upstream provider error",
		Type:    "upstream_error",
	}
}
