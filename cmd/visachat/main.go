package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/config"
	"github.com/zhouzirui/visa-assistant/client/internal/logging"
	chatService "github.com/zhouzirui/visa-assistant/client/internal/service/chat"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	baseURL := flag.String("api", cfg.Backend.BaseURL, "assistant backend base URL")
	logFile := flag.String("log", cfg.Log.Output, "write logs to this file (discarded when empty)")
	flag.Parse()

	// Anything on stderr would corrupt the terminal UI.
	logger := zap.NewNop().Sugar()
	if *logFile != "" {
		logCfg := cfg.Log
		logCfg.Output = *logFile
		if logger, err = logging.New(logCfg); err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := assistantapi.New(*baseURL, assistantapi.WithLogger(logger.Named("assistantapi")))
	conv := chatService.NewConversation(backend, logger.Named("chat"))
	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(newChatModel(ctx, conv, updates), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
