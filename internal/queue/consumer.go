package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/procurehub/marketplace-api/internal/model"
)

// QuoteMailer delivers one lead email to a matched vendor.
type QuoteMailer interface {
	SendQuoteLead(ctx context.Context, vendor MatchedVendor, ev QuoteMatchedEvent) error
}

// OutreachStore records every outbound contact attempt.
type OutreachStore interface {
	InsertOutreach(ctx context.Context, o model.OutreachLog) error
}

// Consumer drains the quote.matched queue and fans each event out as one
// email per matched vendor. It runs a reconnect loop with capped backoff so a
// broker restart never takes the server down with it.
type Consumer struct {
	URL      string
	Mailer   QuoteMailer
	Outreach OutreachStore
	Logger   *slog.Logger
}

// Run blocks until ctx is cancelled. Malformed messages are rejected without
// requeue to avoid tight redelivery loops; per-vendor mail failures are
// logged and recorded but do not fail the message.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warn("broker dial failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
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
			return
		}
		c.Logger.Warn("consume loop ended", "error", err)
		time.Sleep(2 * time.Second)
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Logger.Warn("set qos failed", "error", err)
	}
	if _, err := ch.QueueDeclare(QueueQuoteMatched, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueQuoteMatched, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.Logger.Error("handle quote.matched failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev QuoteMatchedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	subject := fmt.Sprintf("New quote request #%d", ev.QuoteID)
	for _, v := range ev.Vendors {
		outcome := "sent"
		if err := c.Mailer.SendQuoteLead(ctx, v, ev); err != nil {
			outcome = "failed"
			c.Logger.Warn("lead mail failed",
				"quote_id", ev.QuoteID, "vendor_id", v.VendorID, "error", err)
		}
		if c.Outreach != nil {
			err := c.Outreach.InsertOutreach(ctx, model.OutreachLog{
				VendorID:  v.VendorID,
				Channel:   "email",
				Subject:   subject,
				Outcome:   outcome,
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				c.Logger.Warn("outreach log insert failed", "error", err)
			}
		}
	}
	c.Logger.Info("quote match leads processed",
		"quote_id", ev.QuoteID, "vendors", len(ev.Vendors))
	return nil
}
