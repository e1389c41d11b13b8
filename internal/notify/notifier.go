// Package notify publishes fire-and-forget event notifications to the
// notifications exchange. Callers log Emit failures and move on; a lost
// notification never fails a job.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Publisher is the transport Emit needs; satisfied by *rabbitmq.Client.
type Publisher interface {
	PublishTo(ctx context.Context, exchange, routingKey string, body []byte, contentType string) error
}

// Event is the wire shape of one notification
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Notifier routes events to the notifications exchange by channel name
type Notifier struct {
	publisher Publisher
	exchange  string
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, exchange string, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		exchange:  exchange,
		logger:    logger,
	}
}

// Emit publishes {event, payload} to the channel's routing key
func (n *Notifier) Emit(ctx context.Context, channel, event string, payload any) error {
	body, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := n.publisher.PublishTo(ctx, n.exchange, channel, body, "application/json"); err != nil {
		return fmt.Errorf("failed to emit notification: %w", err)
	}

	n.logger.Debug("notification emitted",
		slog.String("channel", channel),
		slog.String("event", event),
	)
	return nil
}
