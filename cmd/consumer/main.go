// Command consumer appends a pending reimbursement line to the ledger file for
// every coaching_log.created event.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/coaching-practice/internal/config"
	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{Service: "reimbursement-consumer"})
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "reimbursement-consumer"})

	c := queue.NewLedgerConsumer(cfg.Events.URL, cfg.Events.LedgerPath)
	log.Info().Str("queue", queue.CoachingLogCreatedQueue).Str("ledger", cfg.Events.LedgerPath).Msg("consuming")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("consumer")
	}
}
