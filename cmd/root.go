package cmd

import (
	"context"
	"fmt"
	"strings"

	"gochat/internal/config"
)

const usage = `gochat is a terminal client for OpenAI-compatible chat services.

Usage:
  gochat chat  [flags] [prompt]    Converse against the chat endpoint
  gochat ask   [flags] <prompt>    One-shot prompt against the completions endpoint
  gochat serve [flags]             Run the local OpenAI-compatible relay

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return printUsage()
	}

	switch args[0] {
	case "chat":
		return runChat(ctx, args[1:])
	case "ask":
		return runAsk(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}

// loadConfig reads the configuration file when one is given and falls back
// to the built-in defaults otherwise.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
