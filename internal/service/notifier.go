// Package service holds outbound side effects: broker publishing and mail.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/procurehub/marketplace-api/internal/metrics"
	"github.com/procurehub/marketplace-api/internal/queue"
)

// Notifier publishes domain events to RabbitMQ. Publishing is best effort:
// errors are logged and returned, and callers on the request path ignore
// them so a broker outage never fails a quote submission.
type Notifier struct {
	URL    string
	Logger *slog.Logger
}

// PublishQuoteMatched sends one persistent message to the quote.matched
// queue, declaring it first so either side can start in any order.
func (n *Notifier) PublishQuoteMatched(ctx context.Context, ev queue.QuoteMatchedEvent) error {
	conn, err := amqp.Dial(n.URL)
	if err != nil {
		n.Logger.Warn("broker dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		n.Logger.Warn("broker channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.QueueQuoteMatched, true, false, false, false, nil); err != nil {
		n.Logger.Warn("queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.QueueQuoteMatched, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		n.Logger.Warn("publish failed", "queue", queue.QueueQuoteMatched, "error", err)
		return err
	}
	metrics.EventsPublished.WithLabelValues(queue.QueueQuoteMatched).Inc()
	return nil
}
