// Command mcp serves the scrapeTweets tool over MCP stdio for agent runtimes.
// Stdout carries the protocol, so every log line goes to stderr.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bxxst/aixbt-agent/internal/app"
	"github.com/bxxst/aixbt-agent/internal/config"
	"github.com/bxxst/aixbt-agent/internal/infra/mcpserver"
	"github.com/bxxst/aixbt-agent/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aixbt-agent-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := app.InitLogger(cfg, func(lc *logger.LogConfig) { lc.Output = os.Stderr }); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Shutdown(context.Background()) }()

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		return err
	}

	logger.Info(context.Background(), "MCP stdio server starting", "tool", mcpserver.ToolName)
	return mcpserver.ServeStdio(a.MCP)
}
