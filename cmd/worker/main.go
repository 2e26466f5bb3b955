// Command worker drains the check-in event queue: audit events are stored
// in MySQL and appended to logs/checkin.log, boarding pass requests are
// handed to the notifier.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/airport-checkin/internal/config"
	"github.com/iliyamo/airport-checkin/internal/database"
	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/queue"
	"github.com/iliyamo/airport-checkin/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	logger.SetDefault(log)

	if cfg.AMQPURL == "" {
		log.Fatal("RABBITMQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	c := &queue.Consumer{
		URL:      cfg.AMQPURL,
		Sink:     repository.NewAuditRepo(db),
		Notifier: queue.LogNotifier{Log: log},
		LogPath:  os.Getenv("CHECKIN_LOG_PATH"),
		Log:      log,
	}
	log.WithField("queue", queue.QueueName).Info("worker started")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("consumer stopped")
		return
	}
	log.Info("worker stopped")
}
