package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/config"
	"github.com/zhouzirui/visa-assistant/client/internal/handler"
	"github.com/zhouzirui/visa-assistant/client/internal/logging"
	"github.com/zhouzirui/visa-assistant/client/internal/service/chat"
	"github.com/zhouzirui/visa-assistant/client/internal/service/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Desugar())

	backend := assistantapi.New(cfg.Backend.BaseURL, assistantapi.WithLogger(logger.Named("assistantapi")))
	logger.Infow("assistant backend configured", "baseURL", backend.BaseURL())

	chatService := chat.NewService(backend, logger.Named("chat"))
	promptService := prompt.NewService(backend, logger.Named("prompt"))

	router, err := handler.NewRouter(cfg, chatService, promptService, logger)
	if err != nil {
		logger.Fatalw("failed to build router", "error", err)
	}

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.SugaredLogger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Infow("visa assistant client listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Fatalw("server error", "error", err)
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
