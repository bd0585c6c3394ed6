package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fpt/klein-bot/internal/ai"
	"github.com/fpt/klein-bot/internal/bot"
	"github.com/fpt/klein-bot/internal/config"
	"github.com/fpt/klein-bot/internal/groupcache"
	"github.com/fpt/klein-bot/internal/infra"
	"github.com/fpt/klein-bot/internal/maintenance"
	"github.com/fpt/klein-bot/internal/media"
	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/internal/transport/console"
	"github.com/fpt/klein-bot/internal/transport/discord"
	"github.com/fpt/klein-bot/pkg/logger"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the configured network and serve commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), opts, "")
		},
	}
}

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Try commands in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), opts, "console")
		},
	}
}

func runBot(parent context.Context, opts *rootOptions, transportName string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(opts.path())
	if err != nil {
		return err
	}
	if transportName != "" {
		cfg.Transport = transportName
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := setupLogging(level, os.Stderr)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := media.NewWorkspace(cfg.Media.TempDir)
	if err != nil {
		return err
	}
	tools := media.Tools{FFmpeg: cfg.Media.FFmpeg, WebPMux: cfg.Media.WebPMux, YtDlp: cfg.Media.YtDlp}
	if err := tools.Check(); err != nil {
		log.Warn("media tools missing, media commands will fail", "error", err)
	}
	runner := media.ExecRunner{}

	var (
		generator ai.Generator
		purgers   maintenance.Purgers
	)
	if conv, err := ai.NewGenerator(ctx, cfg.AI); err != nil {
		log.Warn("AI backend unavailable, AI commands are disabled", "backend", cfg.AI.Backend, "error", err)
	} else {
		generator = conv
		purgers = append(purgers, conv)
		log.InfoWithIntention(logger.IntentionAI, "AI backend ready", "backend", conv.Backend().Name(), "model", cfg.AI.Model)
	}

	groups := groupcache.New(cfg.GroupCacheTTL())
	httpClient := &http.Client{Timeout: 30 * time.Second}
	pipeline := bot.NewPipeline(bot.Options{
		Config:     cfg,
		Generator:  generator,
		Transcoder: media.NewTranscoder(tools, runner, ws),
		Videos:     media.NewDownloader(tools, runner, ws),
		Groups:     groups,
		HTTPClient: httpClient,
		Logger:     log.WithComponent("pipeline"),
	})
	purgers = append(purgers, groups, pipeline)

	var (
		transport session.Transport
		store     session.CredentialStore
	)
	switch cfg.Transport {
	case "console":
		transport = console.New(console.Config{
			Workspace:   ws,
			Completions: pipeline.CommandNames(),
			OnQuit:      stop,
			Logger:      log,
		})
		store = infra.NewMemoryCredentialStore()
	default:
		transport = discord.New(cfg.Discord, log,
			discord.WithHTTPClient(httpClient),
			discord.WithFetchLimit(cfg.Media.FetchLimit),
		)
		store = infra.NewFileCredentialStore(cfg.CredentialsPath())
	}

	lifecycle := session.NewLifecycle(session.LifecycleConfig{
		Transport: transport,
		Store:     store,
		Backoff:   session.Backoff{Base: cfg.ReconnectBase(), Max: cfg.ReconnectMax()},
		Logger:    log.WithComponent("lifecycle"),
		Clock:     session.RealClock(),
		Handlers:  pipeline.Handlers,
		OnOpen:    pipeline.OnOpen,
		Maintenance: maintenance.NewSweeper(maintenance.Config{
			Schedule: cfg.Maintenance.Schedule,
			TempDir:  ws.Dir(),
			MaxAge:   cfg.MaintenanceMaxAge(),
		}, purgers, log.WithComponent("maintenance")),
	})

	log.InfoWithIntention(logger.IntentionStatus, "kleinbot starting", "transport", cfg.Transport, "prefix", cfg.Prefix, "workers", cfg.MaxConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lifecycle.Run(gctx) })
	g.Go(func() error { return pipeline.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.InfoWithIntention(logger.IntentionCancel, "kleinbot stopped")
	return nil
}

// setupLogging installs the process logger. The log file is opened once and
// every component logger shares it.
func setupLogging(level string, w io.Writer) *logger.Logger {
	logger.SetGlobalLoggerWithConsoleWriter(logger.LogLevel(level), w)
	return logger.Default
}
