// Package bot wires the long-running components of the matchmaking bot and
// manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/matchbot/internal/metrics"
)

// Poller receives updates until its context ends. *bot.Bot satisfies it.
type Poller interface {
	Start(ctx context.Context)
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	poller    Poller
	scheduler *Scheduler
	metrics   *metrics.Server
	queue     io.Closer
}

// NewBot creates the orchestrator. metricsServer may be nil when the
// endpoint is disabled; queue is closed once every component has stopped.
func NewBot(logger *slog.Logger, poller Poller, scheduler *Scheduler, metricsServer *metrics.Server, queue io.Closer) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		poller:    poller,
		scheduler: scheduler,
		metrics:   metricsServer,
		queue:     queue,
	}
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.poller.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.metrics != nil {
		g.Go(func() error {
			if err := b.metrics.Run(gCtx); err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if b.queue != nil {
		if cerr := b.queue.Close(); cerr != nil {
			b.logger.Error("Failed to close pending queue", "error", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
