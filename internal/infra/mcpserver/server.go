// Package mcpserver exposes the scrapeTweets capability as an MCP tool.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	appdigest "github.com/bxxst/aixbt-agent/internal/application/digest"
	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/logger"
	"github.com/bxxst/aixbt-agent/internal/middleware"
)

const (
	ServerName = "aixbt-agent"
	ToolName   = "scrapeTweets"
)

// Capability is the use case behind the tool.
type Capability interface {
	ScrapeTweets(ctx context.Context, count int) (*digest.Batch, error)
}

// ScrapeTweetsTool returns the scrapeTweets tool definition.
func ScrapeTweetsTool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Scrape the latest posts of the tracked account and enrich every post "+
			"with its ticker, a dexscreener link and a generated project analysis"),
		mcp.WithNumber("count",
			mcp.Description(fmt.Sprintf("Number of posts to scrape (default: %d, max: %d)", appdigest.DefaultCount, appdigest.MaxCount)),
			mcp.DefaultNumber(appdigest.DefaultCount),
			mcp.Min(1),
			mcp.Max(appdigest.MaxCount),
		),
	)
}

// HandleScrapeTweets implements the scrapeTweets tool. Failures are returned
// as tool errors, never as partial output.
func HandleScrapeTweets(svc Capability) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		count := request.GetInt("count", appdigest.DefaultCount)

		b, err := svc.ScrapeTweets(ctx, count)
		if err != nil {
			middleware.IncrementBatchesFailed()
			logger.ErrorWithErr(ctx, "scrapeTweets tool failed", err, "count", count)
			return mcp.NewToolResultError(fmt.Sprintf("scrapeTweets failed: %v", err)), nil
		}
		middleware.RecordBatch(b.Stats)
		return mcp.NewToolResultText(b.Text()), nil
	}
}

// New builds the MCP server with every tool registered.
func New(svc Capability, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTool(ScrapeTweetsTool(), HandleScrapeTweets(svc))
	return s
}

// NewHTTPHandler serves the MCP server over streamable HTTP.
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s)
}

// ServeStdio blocks serving the MCP server on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
