package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gochat/internal/openai"
	"gochat/internal/server"
)

const serveUsage = `Usage:
  gochat serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file
  --port   int      Override relay port from configuration`

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override relay port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	token, err := cfg.BearerToken()
	if err != nil {
		return err
	}
	backend, err := openai.NewClient(openai.Config{
		Token:     token,
		BaseURL:   cfg.BaseURL,
		ChatModel: cfg.Chat.Model,
	}, nil)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, backend)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
