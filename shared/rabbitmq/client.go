package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when an operation runs against a closed client
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// ExchangeConfig describes one exchange the client declares on connect
type ExchangeConfig struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
}

// Config holds RabbitMQ connection configuration
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	VHost             string
	Exchange          ExchangeConfig
	Notifications     ExchangeConfig
	QueueName         string
	QueueDurable      bool
	QueueAutoDelete   bool
	QueueExclusive    bool
	RoutingKey        string
	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
	PublishRetries    int
	PublishRetryDelay time.Duration
}

// Client is a thin wrapper over one AMQP connection and channel, declaring
// the job exchange/queue and the notifications exchange on connect.
type Client struct {
	config    *Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	logger    *slog.Logger
	closeChan chan *amqp.Error
	connected bool
}

// NewClient connects, declares the topology, and returns a ready client
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}
	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}
	return client, nil
}

func (c *Client) connect() error {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	var err error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.config.RetryAttempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)
		if attempt < c.config.RetryAttempts {
			time.Sleep(c.config.RetryInterval)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", c.config.RetryAttempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup topology: %w", err)
	}

	c.closeChan = make(chan *amqp.Error)
	c.channel.NotifyClose(c.closeChan)
	c.connected = true

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.Exchange.Name),
		slog.String("queue", c.config.QueueName),
	)
	return nil
}

// setup declares the job exchange, the job queue with its binding, and the
// notifications exchange when one is configured.
func (c *Client) setup() error {
	if err := c.declareExchange(c.config.Exchange); err != nil {
		return err
	}

	_, err := c.channel.QueueDeclare(
		c.config.QueueName,
		c.config.QueueDurable,
		c.config.QueueAutoDelete,
		c.config.QueueExclusive,
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,
		c.config.RoutingKey,
		c.config.Exchange.Name,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if c.config.Notifications.Name != "" {
		if err := c.declareExchange(c.config.Notifications); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) declareExchange(ex ExchangeConfig) error {
	err := c.channel.ExchangeDeclare(
		ex.Name,
		ex.Type,
		ex.Durable,
		ex.AutoDelete,
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ex.Name, err)
	}
	return nil
}

// Publish sends one persistent message to the job exchange
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	return c.PublishTo(ctx, c.config.Exchange.Name, c.config.RoutingKey, body, contentType)
}

// PublishTo sends one persistent message to an arbitrary exchange and
// routing key. Used for notifications and for the default ("") exchange when
// replying to a caller-provided queue.
func (c *Client) PublishTo(ctx context.Context, exchange, routingKey string, body []byte, contentType string) error {
	if !c.connected {
		return ErrNotConnected
	}

	err := c.channel.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("Failed to publish message",
			slog.String("exchange", exchange),
			slog.String("routing_key", routingKey),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published",
		slog.String("exchange", exchange),
		slog.String("routing_key", routingKey),
		slog.Int("body_size", len(body)),
	)
	return nil
}

// Reply publishes a result envelope to a reply-to queue through the default
// exchange, carrying the request's correlation id.
func (c *Client) Reply(ctx context.Context, replyTo, correlationID string, body []byte) error {
	if !c.connected {
		return ErrNotConnected
	}

	err := c.channel.PublishWithContext(
		ctx,
		"", // default exchange routes directly to the queue
		replyTo,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			Timestamp:     time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}
	return nil
}

// PublishWithRetry publishes to the job exchange, retrying transient
// failures with exponential backoff.
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if !c.connected {
		return ErrNotConnected
	}

	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = c.PublishTo(ctx, c.config.Exchange.Name, c.config.RoutingKey, body, contentType)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Published message after retry", slog.Int("attempt", attempt+1))
			}
			return nil
		}

		if attempt < maxRetries {
			backoff := baseDelay * time.Duration(uint(1)<<uint(attempt))
			c.logger.Warn("Publish failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.Duration("retry_after", backoff),
				slog.Any("error", lastErr),
			)
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

// Consume starts delivering queue messages with the given consumer tag.
// Deliveries require an explicit ack.
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	messages, err := c.channel.Consume(
		c.config.QueueName,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
	)
	return messages, nil
}

// Qos bounds the number of unacknowledged deliveries per consumer
func (c *Client) Qos(prefetch int) error {
	if !c.connected {
		return ErrNotConnected
	}
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// Close shuts the channel and connection down
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")
	c.connected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
			return err
		}
	}
	return nil
}

// IsConnected reports whether the underlying connection is live
func (c *Client) IsConnected() bool {
	return c.connected && c.conn != nil && !c.conn.IsClosed()
}
