// Package app wires configuration into the services both binaries run.
package app

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bxxst/aixbt-agent/internal/application"
	appanalysis "github.com/bxxst/aixbt-agent/internal/application/analysis"
	appdigest "github.com/bxxst/aixbt-agent/internal/application/digest"
	"github.com/bxxst/aixbt-agent/internal/application/enrich"
	"github.com/bxxst/aixbt-agent/internal/config"
	"github.com/bxxst/aixbt-agent/internal/domain/analysis"
	"github.com/bxxst/aixbt-agent/internal/domain/digest"
	"github.com/bxxst/aixbt-agent/internal/infra/ai/claude"
	"github.com/bxxst/aixbt-agent/internal/infra/ai/gemini"
	"github.com/bxxst/aixbt-agent/internal/infra/ai/openai"
	"github.com/bxxst/aixbt-agent/internal/infra/mcpserver"
	"github.com/bxxst/aixbt-agent/internal/infra/notify"
	"github.com/bxxst/aixbt-agent/internal/infra/storage"
	"github.com/bxxst/aixbt-agent/internal/infra/xapi"
	"github.com/bxxst/aixbt-agent/internal/logger"
	"github.com/bxxst/aixbt-agent/internal/middleware"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// App holds the assembled services.
type App struct {
	Config         *config.Config
	Digest         *appdigest.Service
	MCP            *server.MCPServer
	HealthCheckers map[string]middleware.HealthChecker
}

// New builds every collaborator from cfg. Optional publishers that fail to
// initialize are logged and skipped.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clock := application.SystemClock{}
	analyzer := appanalysis.NewService(completer, appanalysis.Options{
		Timeout:     cfg.Analysis.Timeout,
		MaxAttempts: cfg.Analysis.MaxAttempts,
		BaseDelay:   cfg.Analysis.BaseDelay,
		MaxDelay:    cfg.Analysis.MaxDelay,
	}, clock)

	source := xapi.NewClient(cfg.Source.BearerToken,
		xapi.WithBaseURL(cfg.Source.BaseURL),
		xapi.WithRateLimit(cfg.Source.RequestsPerSecond),
		xapi.WithTimeout(cfg.Source.Timeout),
	)

	a := &App{Config: cfg, HealthCheckers: map[string]middleware.HealthChecker{}}
	publishers := a.publishers(ctx, cfg)

	a.Digest = &appdigest.Service{
		Source:     source,
		Enricher:   enrich.NewService(analyzer, cfg.Analysis.MaxInFlight),
		Publishers: publishers,
		Clock:      clock,
		Account:    cfg.Source.Account,
	}
	a.MCP = mcpserver.New(a.Digest, Version)

	logger.Info(ctx, "Agent initialized",
		"account", cfg.Source.Account,
		"provider", cfg.Analysis.Provider,
		"model", cfg.Analysis.Model,
		"max_in_flight", cfg.Analysis.MaxInFlight,
		"publishers", len(publishers),
	)
	return a, nil
}

func newCompleter(ctx context.Context, cfg *config.Config) (analysis.Completer, error) {
	ac := cfg.Analysis
	switch ac.Provider {
	case "", "openai":
		return openai.NewClient(ac.APIKey, ac.Model, ac.BaseURL, ac.MaxTokens), nil
	case "gemini":
		c, err := gemini.NewClient(ctx, ac.APIKey, modelFor(ac.Model, "gemini"), ac.BaseURL, ac.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		return c, nil
	case "claude":
		return claude.NewClient(ac.APIKey, modelFor(ac.Model, "claude"), ac.BaseURL, ac.MaxTokens), nil
	default:
		return nil, &config.Error{Problems: []string{fmt.Sprintf("unknown analysis provider %q", ac.Provider)}}
	}
}

// modelFor drops the openai default model when another provider is selected,
// letting that client apply its own default.
func modelFor(model, provider string) string {
	if model == config.Default().Analysis.Model && provider != "openai" {
		return ""
	}
	return model
}

func (a *App) publishers(ctx context.Context, cfg *config.Config) []digest.Publisher {
	var pubs []digest.Publisher

	if cfg.Minio.Enabled {
		m := cfg.Minio
		store, err := storage.New(ctx, m.Endpoint, m.Region, m.BucketName, m.AccessKey, m.SecretKey, m.Prefix, m.UseSSL)
		if err != nil {
			logger.ErrorWithErr(ctx, "MinIO publisher disabled", err, "endpoint", m.Endpoint)
		} else {
			pubs = append(pubs, store)
			a.HealthCheckers["minio"] = store
		}
	}

	if cfg.Email.Enabled {
		e := cfg.Email
		pubs = append(pubs, notify.NewEmailSender(notify.EmailConfig{
			SMTPServer: e.SMTPServer,
			SMTPPort:   e.SMTPPort,
			SMTPUser:   e.SMTPUser,
			SMTPPass:   e.SMTPPass,
			FromEmail:  e.From,
			ToEmails:   e.To,
		}))
	}
	return pubs
}

// InitLogger configures logging from cfg; opts adjust the result (e.g. the output writer).
func InitLogger(cfg *config.Config, opts ...func(*logger.LogConfig)) error {
	lc := logger.LogConfig{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Detailed: cfg.Log.Detailed,
		Tracing:  cfg.Log.Tracing,
	}
	for _, o := range opts {
		o(&lc)
	}
	return logger.InitWithConfig(lc)
}
