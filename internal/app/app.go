package app

import (
	"context"
	"fmt"
	"time"

	"github.com/auto-dns/harbinger/internal/classify"
	"github.com/auto-dns/harbinger/internal/config"
	"github.com/auto-dns/harbinger/internal/core"
	"github.com/auto-dns/harbinger/internal/delivery"
	"github.com/auto-dns/harbinger/internal/event"
	"github.com/auto-dns/harbinger/internal/format"
	"github.com/auto-dns/harbinger/internal/httpserver"
	"github.com/auto-dns/harbinger/internal/logs"
	"github.com/auto-dns/harbinger/internal/pipeline"
	"github.com/auto-dns/harbinger/internal/state"
	dockerCli "github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

const httpShutdownTimeout = 5 * time.Second

type App struct {
	dockerClient *dockerCli.Client
	dispatcher   *pipeline.Dispatcher
	engine       *core.Engine
	httpServer   *httpserver.Server
	logger       zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	coreCfg := cfg.Core()
	actions, err := cfg.ParsedActions()
	if err != nil {
		return nil, &config.ConfigurationError{Key: "app.actions", Reason: err.Error()}
	}

	// Slack
	sender, err := delivery.NewSlackSender(coreCfg.SinkURL, cfg.Sink.Timeout)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "sink.webhook_url", Reason: err.Error()}
	}

	// Docker CLI
	dockerClient, err := dockerCli.NewClientWithOpts(dockerCli.FromEnv, dockerCli.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	gen := event.NewDockerGenerator(dockerClient, logger)
	fetcher := logs.NewDockerFetcher(dockerClient, cfg.Watch.LogFetchTimeout, logger)

	// Pipeline
	manager := delivery.NewManager(sender, delivery.Config{
		MaxRetries:   cfg.Sink.MaxRetries,
		RetryInitial: cfg.Sink.RetryInitial,
		RetryMax:     cfg.Sink.RetryMax,
	}, logger)
	notifier := pipeline.NewNotifier(fetcher, format.New(coreCfg.LogLineCount, coreCfg.HostLabel), manager, coreCfg.LogLineCount, logger)
	dispatcher := pipeline.NewDispatcher(notifier, cfg.Watch.Workers, cfg.Watch.QueueSize, logger)

	// Engine
	engine := core.NewEngine(logger, core.Config{
		ReconnectInitial: cfg.Watch.ReconnectInitial,
		ReconnectMax:     cfg.Watch.ReconnectMax,
		IdleTTL:          cfg.Watch.IdleTTL,
		EvictionInterval: cfg.Watch.EvictionInterval,
		ShutdownGrace:    cfg.Watch.ShutdownGrace,
		Actions:          actions,
	}, gen, state.NewRegistry(), classify.New(coreCfg.HostLabel, coreCfg.EnvLabel), dispatcher)

	a := &App{
		dockerClient: dockerClient,
		dispatcher:   dispatcher,
		engine:       engine,
		logger:       logger,
	}
	if cfg.HTTP.Enabled {
		a.httpServer = httpserver.New(logger, engine, cfg.HTTP.Addr)
	}
	return a, nil
}

// Run starts the HTTP endpoint and the dispatcher, then blocks in the watch loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("Application starting")

	if a.httpServer != nil {
		if err := a.httpServer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
			defer cancel()
			_ = a.httpServer.Shutdown(shutdownCtx)
		}()
	}

	a.dispatcher.Start(ctx)
	return a.engine.Run(ctx)
}

func (a *App) Close() error {
	if a.dockerClient != nil {
		if err := a.dockerClient.Close(); err != nil {
			return fmt.Errorf("close docker client: %w", err)
		}
	}
	return nil
}
