package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	apiPkg "github.com/h1v3-io/modcogs/internal/api"
	"github.com/h1v3-io/modcogs/internal/claim"
	"github.com/h1v3-io/modcogs/internal/closerequest"
	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/config"
	"github.com/h1v3-io/modcogs/internal/confirm"
	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/connector/discord"
	"github.com/h1v3-io/modcogs/internal/connector/slack"
	"github.com/h1v3-io/modcogs/internal/connector/telegram"
	"github.com/h1v3-io/modcogs/internal/connector/webhook"
	"github.com/h1v3-io/modcogs/internal/hiring"
	"github.com/h1v3-io/modcogs/internal/logbuf"
	"github.com/h1v3-io/modcogs/internal/metrics"
	"github.com/h1v3-io/modcogs/internal/notify"
	"github.com/h1v3-io/modcogs/internal/responsetime"
	"github.com/h1v3-io/modcogs/internal/scheduler"
	"github.com/h1v3-io/modcogs/internal/store"
	"github.com/h1v3-io/modcogs/internal/thread"
	"github.com/h1v3-io/modcogs/internal/ticket"
	"github.com/h1v3-io/modcogs/internal/uptime"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON or YAML file")
	envFile := flag.String("env", ".env", "Dotenv file loaded before reading the environment")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load env file", "path", *envFile, "error", err)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger, logBuf); err != nil {
		logger.Error("modcogsd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("modcogsd stopped")
}

func run(cfg *config.Config, logger *slog.Logger, logBuf *logbuf.Buffer) error {
	logger.Info("modcogsd starting", "guild_id", cfg.Bot.GuildID, "prefix", cfg.Bot.Prefix)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Storage
	if err := os.MkdirAll(cfg.Bot.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	docs, err := store.Open(filepath.Join(cfg.Bot.DataDir, "modcogs.db"))
	if err != nil {
		return err
	}
	defer docs.Close()
	tickets, err := ticket.NewSQLiteStore(docs.DB())
	if err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return err
	}

	// 2. Discord, threads and command routing. The router is created after
	// the connector it sends through, so the handlers close over it.
	var router *command.Router
	dc, err := discord.New(discord.Config{Token: cfg.Bot.Token, GuildID: cfg.Bot.GuildID},
		func(ctx context.Context, msg connector.InboundMessage) error { return router.HandleMessage(ctx, msg) },
		func(ctx context.Context, in connector.Interaction) error { return router.Dispatch(ctx, in) },
		logger.With("component", "discord"),
	)
	if err != nil {
		return err
	}
	threads := thread.NewManager(dc, tickets, cfg.Bot.CategoryID, logger.With("component", "thread"))
	router = command.NewRouter(cfg.Bot.Prefix, dc, threads, command.Roles{
		Supporter:     cfg.Bot.SupporterRoles,
		Administrator: cfg.Bot.AdminRoles,
		Owners:        cfg.Bot.Owners,
	}, logger.With("component", "router"))
	router.OnDirect(threads.HandleDirect)

	// 3. Operator alert sinks
	svc := &botService{tickets: tickets}
	var sinks []notify.Sink
	var background []func(context.Context) error
	if sc := cfg.Alerts.Slack; sc != nil {
		var conn *slack.Connector
		conn, err = slack.New(slack.Config{BotToken: sc.BotToken, AppToken: sc.AppToken, AlertChannel: sc.Channel},
			statusHandler(svc, func(ctx context.Context, msg connector.OutboundMessage) error { return conn.Send(ctx, msg) }),
			logger.With("component", "slack"))
		if err != nil {
			return err
		}
		sinks = append(sinks, conn)
		background = append(background, conn.Start)
	}
	if tc := cfg.Alerts.Telegram; tc != nil {
		var conn *telegram.Connector
		conn, err = telegram.New(telegram.Config{Token: tc.Token, ChatIDs: tc.ChatIDs, AllowFrom: tc.AllowFrom},
			statusHandler(svc, func(ctx context.Context, msg connector.OutboundMessage) error { return conn.Send(ctx, msg) }),
			logger.With("component", "telegram"))
		if err != nil {
			return err
		}
		sinks = append(sinks, conn)
		background = append(background, conn.Start)
	}
	alerts := notify.New(logger.With("component", "notify"), sinks...)

	// 4. Cogs
	sched := scheduler.New(logger.With("component", "scheduler"))
	workflow := confirm.New(logger.With("component", "confirm"), confirm.WithMetrics(m))
	defer workflow.Close()

	closeCog, err := closerequest.New(ctx, workflow, threads, dc, docs.Partition("closerequest"), logger)
	if err != nil {
		return err
	}
	claimCog := claim.New(dc, docs.Partition("claim"), logger)
	rtCog, err := responsetime.New(ctx, dc, docs.Partition("responsetime"), m, logger)
	if err != nil {
		return err
	}
	threads.OnThreadReady(rtCog.OnThreadReady)
	threads.OnThreadReply(rtCog.OnThreadReply)
	threads.OnThreadClose(rtCog.OnThreadClose)

	upCog, err := uptime.New(ctx, uptime.Deps{
		Sender:    dc,
		Scheduler: sched,
		Alerts:    alerts,
		Client:    &http.Client{},
		Store:     docs.Partition("uptime"),
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	hireCog, err := hiring.New(ctx, hiring.Deps{
		Sender:    dc,
		Scheduler: sched,
		Client:    &http.Client{},
		Store:     docs.Partition("hiring"),
		Metrics:   m,
		GuildID:   cfg.Bot.GuildID,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer hireCog.Close()

	svc.workflow, svc.response, svc.uptime = workflow, rtCog, upCog

	for _, cmds := range [][]*command.Command{
		command.ThreadCommands(threads),
		closeCog.Commands(),
		claimCog.Commands(),
		rtCog.Commands(),
		upCog.Commands(),
		hireCog.Commands(),
	} {
		if err := router.Register(cmds...); err != nil {
			return err
		}
	}
	router.HandleInteraction(confirm.ButtonPrefix, closeCog.HandleInteraction)
	router.HandleInteraction(hiring.InteractionPrefix, hireCog.HandleInteraction)

	// 5. Admin API and inbound alert webhooks
	var hooks http.Handler
	if len(cfg.Webhooks) > 0 {
		endpoints := make(map[string]webhook.Endpoint, len(cfg.Webhooks))
		for name, w := range cfg.Webhooks {
			endpoints[name] = webhook.Endpoint{Secret: w.Secret, BearerToken: w.BearerToken, LogChannelID: w.LogChannelID}
		}
		hooks = webhook.New(endpoints, alerts, dc, logger)
	}
	apiSrv := apiPkg.NewServer(svc, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger, logBuf, hooks)

	// 6. Start everything
	go safeGo(logger, "discord", func() { logIfFailed(logger, "discord", dc.Start(ctx)) })
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })
	go safeGo(logger, "api-server", func() { logIfFailed(logger, "api-server", apiSrv.Start(ctx)) })
	for i, start := range background {
		name := sinks[i].Name()
		go safeGo(logger, name, func() { logIfFailed(logger, name, start(ctx)) })
	}
	logger.Info("modcogsd started", "alert_sinks", len(sinks), "webhooks", len(cfg.Webhooks), "api_port", cfg.API.Port)

	// 7. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	return nil
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

func logIfFailed(logger *slog.Logger, name string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped", "name", name, "error", err)
	}
}
