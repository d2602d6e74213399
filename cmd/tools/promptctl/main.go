package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/config"
	"github.com/zhouzirui/visa-assistant/client/internal/logging"
	"github.com/zhouzirui/visa-assistant/client/internal/service/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

// Backend is the part of the assistant API promptctl drives.
type Backend interface {
	prompt.Backend
	ImproveAI(ctx context.Context, req assistantapi.ImproveAIRequest) (*assistantapi.ImproveAIResponse, error)
	ImproveAIManually(ctx context.Context, req assistantapi.ImproveAIManuallyRequest) (*assistantapi.ImproveAIManuallyResponse, error)
}

type options struct {
	cmd          string
	file         string
	text         string
	out          string
	client       string
	reply        string
	history      string
	instructions string
}

var errUsage = errors.New("invalid arguments")

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "", "command: get, set, export, import, improve or instruct")
	flag.StringVar(&opts.file, "file", "", "prompt file for set/import")
	flag.StringVar(&opts.text, "text", "", "prompt text for set")
	flag.StringVar(&opts.out, "out", prompt.ExportFilename, "output file for export")
	flag.StringVar(&opts.client, "client", "", "client message for improve")
	flag.StringVar(&opts.reply, "reply", "", "consultant reply the assistant should have given (improve)")
	flag.StringVar(&opts.history, "history", "", "JSON file with the chat history preceding the client message (improve)")
	flag.StringVar(&opts.instructions, "instructions", "", "free-form instructions for instruct")
	baseURL := flag.String("api", cfg.Backend.BaseURL, "assistant backend base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "log requests")
	flag.Parse()

	logCfg := config.LogConfig{Level: "warn", Format: "console"}
	if *verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	backend := assistantapi.New(*baseURL, assistantapi.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, backend, logger, opts, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		log.Fatalf("%s failed: %v", opts.cmd, err)
	}
}

func run(ctx context.Context, backend Backend, logger *zap.SugaredLogger, opts options, stdout io.Writer) error {
	switch opts.cmd {
	case "get":
		resp, err := backend.GetPrompt(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, resp.Prompt)
		return err
	case "set":
		return runSet(ctx, backend, logger, opts, stdout)
	case "export":
		return runExport(ctx, backend, logger, opts, stdout)
	case "import":
		return runImport(ctx, backend, logger, opts, stdout)
	case "improve":
		return runImprove(ctx, backend, opts, stdout)
	case "instruct":
		if strings.TrimSpace(opts.instructions) == "" {
			return fmt.Errorf("%w: -instructions is required", errUsage)
		}
		resp, err := backend.ImproveAIManually(ctx, assistantapi.ImproveAIManuallyRequest{Instructions: opts.instructions})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, resp.UpdatedPrompt)
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, opts.cmd)
	}
}

func loadEditor(ctx context.Context, backend prompt.Backend, logger *zap.SugaredLogger) (*prompt.Editor, error) {
	editor := prompt.NewEditor(backend, logger)
	if err := editor.Load(ctx); err != nil {
		return nil, errors.New(prompt.LoadErrorText)
	}
	return editor, nil
}

func save(ctx context.Context, editor *prompt.Editor, stdout io.Writer) error {
	err := editor.Save(ctx)
	switch {
	case errors.Is(err, prompt.ErrNothingToSave):
		_, err = fmt.Fprintln(stdout, "Prompt unchanged, nothing to save")
		return err
	case err != nil:
		return errors.New(prompt.SaveErrorText)
	}
	stats := editor.Stats()
	_, err = fmt.Fprintf(stdout, "%s (%d characters, %d words, %d lines)\n",
		prompt.SavedText, stats.Characters, stats.Words, stats.Lines)
	return err
}

func runSet(ctx context.Context, backend prompt.Backend, logger *zap.SugaredLogger, opts options, stdout io.Writer) error {
	text := opts.text
	if opts.file != "" {
		content, err := os.ReadFile(opts.file)
		if err != nil {
			return fmt.Errorf("%s: %w", prompt.ImportErrorText, err)
		}
		text = string(content)
	}
	if text == "" {
		return fmt.Errorf("%w: -text or -file is required", errUsage)
	}

	editor, err := loadEditor(ctx, backend, logger)
	if err != nil {
		return err
	}
	if err := editor.SetDraft(text); err != nil {
		return err
	}
	return save(ctx, editor, stdout)
}

func runExport(ctx context.Context, backend prompt.Backend, logger *zap.SugaredLogger, opts options, stdout io.Writer) error {
	editor, err := loadEditor(ctx, backend, logger)
	if err != nil {
		return err
	}

	export := editor.Export()
	out := opts.out
	if out == "" {
		out = export.Filename
	}
	if out == "-" {
		_, err = stdout.Write(export.Body)
		return err
	}
	if err := os.WriteFile(out, export.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	_, err = fmt.Fprintf(stdout, "Prompt exported to %s\n", out)
	return err
}

func runImport(ctx context.Context, backend prompt.Backend, logger *zap.SugaredLogger, opts options, stdout io.Writer) error {
	if opts.file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	editor, err := loadEditor(ctx, backend, logger)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("%s: %w", prompt.ImportErrorText, err)
	}
	defer f.Close()

	if err := editor.Import(f); err != nil {
		return errors.New(prompt.ImportErrorText)
	}
	return save(ctx, editor, stdout)
}

func runImprove(ctx context.Context, backend Backend, opts options, stdout io.Writer) error {
	if strings.TrimSpace(opts.client) == "" || strings.TrimSpace(opts.reply) == "" {
		return fmt.Errorf("%w: -client and -reply are required", errUsage)
	}

	var history []assistantapi.ChatMessage
	if opts.history != "" {
		content, err := os.ReadFile(opts.history)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if err := json.Unmarshal(content, &history); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
	}

	resp, err := backend.ImproveAI(ctx, assistantapi.ImproveAIRequest{
		ClientSequence:  opts.client,
		ChatHistory:     history,
		ConsultantReply: opts.reply,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Predicted reply:\n%s\n\nUpdated prompt:\n%s\n", resp.PredictedReply, resp.UpdatedPrompt)
	return err
}
