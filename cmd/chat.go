package cmd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gochat/internal/chat"
	"gochat/internal/openai"
	"gochat/internal/transcript"
)

const chatUsage = `Usage:
  gochat chat [flags] [prompt]

Flags:
  --config      string   Path to YAML configuration file
  --file        string   Transcript file to read and append to
  --model       string   Chat model override
  --system      string   System message override
  --temperature float    Sampling temperature (valid range [0, 3))
  --no-stream            Disable incremental streaming output
  --once                 Exit after the first reply
  --quiet                Suppress terminal output`

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, chatUsage)
	}

	var (
		cfgPath     string
		filePath    string
		model       string
		system      string
		temperature float64
		noStream    bool
		once        bool
		quiet       bool
	)
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&filePath, "file", "", "transcript file path")
	fs.StringVar(&model, "model", "", "chat model override")
	fs.StringVar(&system, "system", "", "system message override")
	fs.Float64Var(&temperature, "temperature", -1, "sampling temperature")
	fs.BoolVar(&noStream, "no-stream", false, "disable streaming")
	fs.BoolVar(&once, "once", false, "exit after the first reply")
	fs.BoolVar(&quiet, "quiet", false, "suppress terminal output")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse chat flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if model == "" {
		model = cfg.Chat.Model
	}
	if system == "" {
		system = cfg.Chat.System
	}
	if temperature < 0 {
		temperature = cfg.Chat.Temperature
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
		Token:     token,
		BaseURL:   cfg.BaseURL,
		ChatModel: model,
	}, nil)
	if err != nil {
		return err
	}

	labels := cfg.Labels()
	tokensMax, tokensBalance := cfg.Budget()
	file, err := transcript.Open(filePath, labels, system, transcript.Budget{
		TokensMax:     tokensMax,
		TokensBalance: tokensBalance,
	})
	if err != nil {
		return err
	}

	prompter := &stdinPrompter{
		in:    bufio.NewScanner(os.Stdin),
		out:   os.Stdout,
		label: labels.User,
		quiet: quiet,
	}

	if prompt := strings.TrimSpace(strings.Join(fs.Args(), " ")); prompt != "" {
		if err := file.AppendUser(prompt); err != nil {
			return err
		}
	} else if strings.TrimSpace(file.Content()) == "" {
		// Nothing to send yet; ask for the opening entry.
		entry, ok := prompter.Next()
		if !ok {
			return nil
		}
		if err := file.AppendUser(entry); err != nil {
			return err
		}
	}

	engine := &chat.Engine{
		Backend:     client,
		Transcript:  file,
		Prompter:    prompter,
		Labels:      labels,
		Temperature: temperature,
		Stream:      !noStream && !cfg.Chat.NoStream,
		Once:        once,
		Quiet:       quiet,
		Out:         os.Stdout,
	}

	_, err = engine.Run(ctx)
	return err
}

// stdinPrompter reads the next user entry from standard input, printing the
// user label first so the terminal mirrors the transcript format.
type stdinPrompter struct {
	in    *bufio.Scanner
	out   io.Writer
	label string
	quiet bool
}

func (p *stdinPrompter) Next() (string, bool) {
	for {
		if !p.quiet {
			fmt.Fprintf(p.out, "%s: ", p.label)
		}
		if !p.in.Scan() {
			return "", false
		}
		entry := strings.TrimSpace(p.in.Text())
		if entry != "" {
			return entry, true
		}
	}
}
