package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/coaching-practice/internal/logger"
)

// Publisher sends domain events to RabbitMQ.  Each publish dials, declares
// the queue and closes again; event volume is one message per coaching log.
type Publisher struct {
	URL string
}

func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PublishCoachingLogCreated publishes ev to the coaching_log.created queue.
// Errors are logged and returned so callers can ignore them without
// interrupting the request.
func (p *Publisher) PublishCoachingLogCreated(ctx context.Context, ev CoachingLogCreatedEvent) error {
	log := logger.Get()

	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("rabbitmq: marshal event failed")
		return err
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch); err != nil {
		log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", CoachingLogCreatedQueue, false, false, pub); err != nil {
		log.Warn().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	log.Debug().Uint64("coaching_log_id", ev.CoachingLogID).Msg("rabbitmq: event published")
	return nil
}

// declare makes sure the durable queue exists.
func declare(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		CoachingLogCreatedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}
