package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/germanamz/finassist/pkg/alphavantage"
	"github.com/germanamz/finassist/pkg/assistant"
	"github.com/germanamz/finassist/pkg/config"
	"github.com/germanamz/finassist/pkg/financetools"
	"github.com/germanamz/finassist/pkg/logging"
	"github.com/germanamz/finassist/pkg/telemetry"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"go.uber.org/zap"
)

const (
	serverName    = "financial-assistant"
	serverVersion = "1.0.0"
)

// app holds what every command needs before it builds its own surface.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	closeLog func()
	metrics  *telemetry.Metrics
	shutdown telemetry.ShutdownFunc
}

// bootstrap loads configuration and sets up logging and tracing. With
// stdoutReserved, logs configured for stdout are moved to stderr.
func bootstrap(configPath, envPath string, stdoutReserved bool) (*app, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, err
	}

	if stdoutReserved && cfg.LogOutput == "stdout" {
		cfg.LogOutput = "stderr"
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput)
	if err != nil {
		return nil, err
	}

	// Spans go to stderr: stdout is the MCP channel.
	shutdown, err := telemetry.SetupTracing(cfg.TracingExporter, serverName, serverVersion, os.Stderr)
	if err != nil {
		closeLog()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  telemetry.NewMetrics(),
		shutdown: shutdown,
	}, nil
}

// toolBox builds the registry: every market-data series plus the chat tool,
// with metrics and tracing around each handler.
func (a *app) toolBox() (*toolbox.ToolBox, *assistant.Assistant, error) {
	tb := toolbox.New()
	tb.Use(a.metrics.ToolMiddleware())

	av := alphavantage.New(a.cfg.AlphaVantageAPIKey,
		alphavantage.WithBaseURL(a.cfg.AlphaVantageBaseURL),
		alphavantage.WithTimeout(a.cfg.HTTPClientTimeout),
		alphavantage.WithLogger(a.logger.Named("alphavantage")),
	)
	if err := financetools.Register(tb, av); err != nil {
		return nil, nil, fmt.Errorf("register finance tools: %w", err)
	}

	asst := assistant.New(assistant.Config{
		APIKey:      a.cfg.OpenAIAPIKey,
		BaseURL:     a.cfg.OpenAIBaseURL,
		Model:       a.cfg.OpenAIModel,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}, tb, assistant.WithLogger(a.logger.Named("assistant")))

	if err := tb.Register(asst.Tool()); err != nil {
		return nil, nil, fmt.Errorf("register %s: %w", assistant.ToolName, err)
	}

	return tb, asst, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("tracing shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
	a.closeLog()
}
