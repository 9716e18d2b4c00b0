package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bxxst/aixbt-agent/internal/app"
	"github.com/bxxst/aixbt-agent/internal/config"
	"github.com/bxxst/aixbt-agent/internal/infra/httpserver"
	"github.com/bxxst/aixbt-agent/internal/infra/mcpserver"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aixbt-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// load config (.env, config.yaml, environment)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := app.InitLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Shutdown(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	handler := httpserver.NewRouter(a.Digest, httpserver.Options{
		APIKeys:        map[string]string{"openserv": cfg.Agent.APIKey},
		RatePerMinute:  cfg.Server.RatePerMinute,
		RateBurst:      cfg.Server.RateBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthCheckers: a.HealthCheckers,
		MCP:            mcpserver.NewHTTPHandler(a.MCP),
		Context:        ctx,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Server listening", "addr", addr, "version", app.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// graceful shutdown
	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
