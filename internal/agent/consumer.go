package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/daechan-jo/auto-store-services-coupang/internal/dispatch"
	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// Ledger status values written by the agent
const (
	ledgerRunning   = "RUNNING"
	ledgerCompleted = "COMPLETED"
	ledgerFailed    = "FAILED"
)

// Broker is the slice of the RabbitMQ client the consumer needs.
type Broker interface {
	Qos(prefetch int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Reply(ctx context.Context, replyTo, correlationID string, body []byte) error
}

// Ledger records job lifecycle transitions.
type Ledger interface {
	UpdateJobStatus(ctx context.Context, jobID, status string, result any, errorMsg string) error
}

// Consumer pulls job messages off the queue, dispatches them, records the
// terminal outcome, and replies to the caller's queue when one is named.
type Consumer struct {
	broker     Broker
	dispatcher *dispatch.Dispatcher
	ledger     Ledger
	store      string
	prefetch   int
	logger     *slog.Logger

	inFlight sync.WaitGroup
}

func NewConsumer(broker Broker, dispatcher *dispatch.Dispatcher, ledger Ledger, store string, prefetch int, logger *slog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		broker:     broker,
		dispatcher: dispatcher,
		ledger:     ledger,
		store:      store,
		prefetch:   prefetch,
		logger:     logger,
	}
}

// Run consumes until the context is canceled or the delivery channel closes,
// then waits for in-flight jobs to finish.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.broker.Qos(c.prefetch); err != nil {
		return fmt.Errorf("failed to configure QoS: %w", err)
	}

	consumerTag := "agent-" + uuid.NewString()
	deliveries, err := c.broker.Consume(consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Agent consumer started",
		slog.String("consumer_tag", consumerTag),
		slog.String("store", c.store),
		slog.Int("prefetch", c.prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Agent consumer stopping - context canceled")
			c.inFlight.Wait()
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				c.inFlight.Wait()
				return nil
			}
			// deliveries run concurrently; the dispatcher serializes them
			// per store and QoS bounds how many sit in flight
			c.inFlight.Add(1)
			go func(delivery amqp.Delivery) {
				defer c.inFlight.Done()
				c.handleDelivery(ctx, delivery)
			}(delivery)
		}
	}
}

// handleDelivery parses one message, runs it through the dispatcher, records
// the terminal status, and always acks: the outcome lives in the envelope
// and the ledger, so redelivery of a processed job is never wanted.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var msg jobs.Message
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.Error("Failed to parse job message",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		c.reject(delivery)
		return
	}

	if _, err := uuid.Parse(msg.Payload.JobID); err != nil {
		c.logger.Error("Invalid job id - not a UUID",
			slog.String("job_id", msg.Payload.JobID),
			slog.String("error", err.Error()),
		)
		c.reject(delivery)
		return
	}

	job := msg.Descriptor()
	if job.Store == "" {
		job.Store = c.store
	}

	if err := c.ledger.UpdateJobStatus(ctx, job.JobID, ledgerRunning, nil, ""); err != nil {
		c.logger.Error("Failed to mark job running",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}

	result := c.dispatcher.Dispatch(ctx, job)

	status := ledgerCompleted
	if result.Status != jobs.StatusSuccess {
		status = ledgerFailed
	}
	if err := c.ledger.UpdateJobStatus(ctx, job.JobID, status, result.Data, result.Message); err != nil {
		c.logger.Error("Failed to record job outcome",
			slog.String("job_id", job.JobID),
			slog.String("status", status),
			slog.Any("error", err),
		)
	}

	c.replyIfRequested(ctx, delivery, job.JobID, result)

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("Failed to ACK delivery",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// replyIfRequested publishes the result envelope to the delivery's reply-to
// queue with the request's correlation id.
func (c *Consumer) replyIfRequested(ctx context.Context, delivery amqp.Delivery, jobID string, result jobs.Result) {
	if delivery.ReplyTo == "" {
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to marshal result envelope",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		return
	}

	if err := c.broker.Reply(ctx, delivery.ReplyTo, delivery.CorrelationId, body); err != nil {
		c.logger.Error("Failed to publish reply",
			slog.String("job_id", jobID),
			slog.String("reply_to", delivery.ReplyTo),
			slog.Any("error", err),
		)
	}
}

// reject nacks without requeue so malformed messages land in the DLQ
func (c *Consumer) reject(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		c.logger.Error("Failed to NACK message",
			slog.String("error", err.Error()),
		)
	}
}
