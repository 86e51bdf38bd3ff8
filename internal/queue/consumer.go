package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/coaching-practice/internal/logger"
)

// LedgerConsumer reads coaching_log.created events and appends one line per
// event to the reimbursement ledger file at Path.
type LedgerConsumer struct {
	URL  string
	Path string
}

func NewLedgerConsumer(url, path string) *LedgerConsumer {
	return &LedgerConsumer{URL: url, Path: path}
}

// Run connects, consumes and reconnects with backoff until ctx is cancelled.
// Offending messages are rejected without requeue so the loop keeps going.
func (c *LedgerConsumer) Run(ctx context.Context) error {
	log := logger.Get()
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("ledger-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("ledger-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *LedgerConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	log := logger.Get()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("ledger-consumer: set QoS failed")
	}
	if err := declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, CoachingLogCreatedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handleMessage(d.Body); err != nil {
			log.Error().Err(err).Msg("ledger-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *LedgerConsumer) handleMessage(body []byte) error {
	var ev CoachingLogCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.CoachingLogID == 0 || ev.Coach == "" {
		return errors.New("incomplete event")
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir ledger dir: %w", err)
	}
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Reimbursement pending | reimbursement_id=%d | coaching_log_id=%d | client_id=%d | coach=%q\n",
		ev.CreatedAt, ev.ReimbursementID, ev.CoachingLogID, ev.ClientID, ev.Coach)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
