package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/matchbot/internal/bot"
	"github.com/edgard/matchbot/internal/bot/handlers"
	"github.com/edgard/matchbot/internal/bot/tasks"
	"github.com/edgard/matchbot/internal/config"
	"github.com/edgard/matchbot/internal/conversation"
	"github.com/edgard/matchbot/internal/database"
	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/geo"
	"github.com/edgard/matchbot/internal/i18n"
	"github.com/edgard/matchbot/internal/logger"
	"github.com/edgard/matchbot/internal/matching"
	"github.com/edgard/matchbot/internal/metrics"
	"github.com/edgard/matchbot/internal/pending"
	"github.com/edgard/matchbot/internal/sanitize"
	"github.com/edgard/matchbot/internal/telegram"
)

// runBot initializes every component, polls Telegram until ctx is cancelled
// and shuts down gracefully.
func runBot(ctx context.Context, path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	catalog, err := i18n.Load(domain.Language(cfg.Matching.DefaultLanguage))
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	queue, err := pending.Open(ctx, pending.Options{
		Backend:    cfg.Pending.Backend,
		RedisURL:   cfg.Pending.RedisURL,
		KeyPrefix:  cfg.Pending.KeyPrefix,
		BadgerPath: cfg.Pending.BadgerPath,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open pending queue: %w", err)
	}

	// The default handler needs the conversation, which needs the client to
	// send replies, so it is bound after the client exists.
	hDeps := &handlers.HandlerDeps{Logger: log, Config: cfg, Catalog: catalog}
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			handlers.NewConversationHandler(*hDeps)(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		_ = queue.Close()
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		_ = queue.Close()
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	sender := telegram.NewSender(tg, log)
	notifier := conversation.NewNotifier(store, catalog, sender, log)
	engine := matching.NewEngine(store, queue, notifier, matching.Config{
		Window:       cfg.Matching.Window,
		MaxDecisions: cfg.Matching.MaxDecisions,
	}, log)
	resolver := geo.NewNominatim(geo.Config{
		BaseURL:           cfg.Geocoder.BaseURL,
		UserAgent:         cfg.Geocoder.UserAgent,
		Timeout:           cfg.Geocoder.Timeout,
		RequestsPerSecond: cfg.Geocoder.RequestsPerSecond,
		MaxResults:        cfg.Geocoder.MaxResults,
		ReverseLanguage:   domain.Language(cfg.Geocoder.ReverseLanguage),
		MaxAttempts:       cfg.Geocoder.MaxAttempts,
		BreakerFailures:   cfg.Geocoder.BreakerFailures,
		BreakerCooldown:   cfg.Geocoder.BreakerCooldown,
	}, log)

	hDeps.Conversation = conversation.NewMachine(conversation.Deps{
		Store:    store,
		Engine:   engine,
		Geo:      resolver,
		Catalog:  catalog,
		Sender:   sender,
		Sessions: conversation.NewSessionStore(),
		Logger:   log,
	}, conversation.Options{
		AdminID:         domain.UserID(cfg.Telegram.AdminID),
		SupportUsername: cfg.Telegram.SupportUsername,
		BotUsername:     cfg.Telegram.BotInfo.Username,
	})

	cmdHandlers := handlers.RegisterAllCommands(*hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		_ = queue.Close()
		return fmt.Errorf("failed to register Telegram handlers: %w", err)
	}
	if err := telegram.PublishCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Config:  cfg,
		Catalog: catalog,
		Sender:  sender,
	}))
	if err != nil {
		_ = queue.Close()
		return err
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Address, log)
	}

	app := bot.NewBot(log, tg, sched, metricsServer, queue)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return runErr
	}

	log.Info("Bot stopped gracefully.")
	return nil
}

// runMigrate opens the database, which applies pending migrations.
func runMigrate(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to migrate database %s: %w", cfg.Database.Path, err)
	}
	database.CloseDB(db)

	log.Info("Database is up to date", "path", cfg.Database.Path)
	return nil
}

// runStats renders the admin report as plain text.
func runStats(ctx context.Context, path, lang string) (string, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

	catalog, err := i18n.Load(domain.Language(cfg.Matching.DefaultLanguage))
	if err != nil {
		return "", err
	}
	reportLang := catalog.Fallback()
	if lang != "" {
		l, ok := domain.ParseLanguage(lang)
		if !ok {
			return "", fmt.Errorf("unsupported language %q", lang)
		}
		reportLang = l
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	defer database.CloseDB(db)

	report, err := conversation.StatsReport(ctx, database.NewStore(db, slog.Default()), catalog, reportLang, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return sanitize.StripMarkup(report), nil
}
