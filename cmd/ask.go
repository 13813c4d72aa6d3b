package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gochat/internal/openai"
)

const askUsage = `Usage:
  gochat ask [flags] <prompt>

Flags:
  --config      string   Path to YAML configuration file
  --focus       string   Model focus: text or code (default text)
  --size        string   Model size: tiny, small, medium, large, xlarge, xxlarge (default medium)
  --temperature float    Sampling temperature (valid range [0, 3))
  -n            int      Number of completions to request (default 1)`

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, askUsage)
	}

	var (
		cfgPath     string
		focusName   string
		sizeName    string
		temperature float64
		count       int
	)
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&focusName, "focus", "text", "model focus")
	fs.StringVar(&sizeName, "size", "medium", "model size")
	fs.Float64Var(&temperature, "temperature", -1, "sampling temperature")
	fs.IntVar(&count, "n", 1, "number of completions")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse ask flags: %w", err)
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return errors.New("ask command requires a prompt")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if temperature < 0 {
		temperature = cfg.Chat.Temperature
	}

	focus, err := openai.ParseFocus(focusName)
	if err != nil {
		return err
	}
	size, err := openai.ParseSize(sizeName)
	if err != nil {
		return err
	}

	model, fallback, err := openai.ResolveModel(focus, size)
	if err != nil {
		return err
	}
	if fallback != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", fallback)
	}

	temperature, err = openai.ValidateTemperature(temperature)
	if err != nil {
		return err
	}

	token, err := cfg.BearerToken()
	if err != nil {
		return err
	}
	client, err := openai.NewClient(openai.Config{
		Token:   token,
		BaseURL: cfg.BaseURL,
	}, nil)
	if err != nil {
		return err
	}

	texts, err := client.CreateCompletion(ctx, model, prompt, temperature, count)
	if err != nil {
		return err
	}
	for _, text := range texts {
		fmt.Println(strings.TrimSpace(text))
	}
	return nil
}
