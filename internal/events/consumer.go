package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/justinnewbold/pattyshack-integrations/internal/config"
	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/rabbitmq"
	"github.com/justinnewbold/pattyshack-integrations/internal/webhooks"
)

// Consumer bridges the core product's operational events into the webhook
// dispatcher. Messages are base64-encoded JSON OperationalEvent bodies.
type Consumer struct {
	cfg         *config.EventsConfig
	conn        *rabbitmq.Connection
	dispatcher  *webhooks.Dispatcher
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	consumerTag string
}

func NewConsumer(cfg *config.EventsConfig, conn *rabbitmq.Connection, dispatcher *webhooks.Dispatcher, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:         cfg,
		conn:        conn,
		dispatcher:  dispatcher,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		consumerTag: fmt.Sprintf("integrations-events-%d", time.Now().Unix()),
	}
}

// Start begins consuming operational events. Assumes the queue exists.
func (c *Consumer) Start() error {
	if c.cfg.Queue == "" {
		return fmt.Errorf("events queue is required")
	}
	if err := c.conn.SetQoS(c.cfg.PrefetchCount); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	messages, err := c.conn.Consume(c.cfg.Queue, c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to consume from queue %s: %w", c.cfg.Queue, err)
	}

	go c.run(messages)

	c.logger.Info("Event consumer started",
		zap.String("queue", c.cfg.Queue),
		zap.String("consumer_tag", c.consumerTag),
	)
	return nil
}

// Stop cancels the consumer and its in-flight processing.
func (c *Consumer) Stop() error {
	c.cancel()
	if err := c.conn.Cancel(c.consumerTag); err != nil {
		c.logger.Error("Failed to cancel consumer",
			zap.String("consumer_tag", c.consumerTag),
			zap.Error(err),
		)
		return err
	}
	c.logger.Info("Event consumer stopped")
	return nil
}

func (c *Consumer) run(messages <-chan amqp.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				c.logger.Warn("Event channel closed, waiting for reconnection",
					zap.String("queue", c.cfg.Queue),
				)
				// Re-register once the connection recovers.
				for {
					select {
					case <-c.ctx.Done():
						return
					case <-time.After(2 * time.Second):
					}
					if !c.conn.IsHealthy() {
						continue
					}
					if err := c.Start(); err != nil {
						c.logger.Error("Failed to restart event consumer", zap.Error(err))
						continue
					}
					return
				}
			}
			c.process(msg)
		}
	}
}

// process decodes one message, fans it out, and ACKs once every delivery has
// settled. Per-webhook failures are recorded outcomes, not processing
// failures; only infrastructure errors NACK.
func (c *Consumer) process(msg amqp.Delivery) {
	decoded, err := base64.StdEncoding.DecodeString(string(msg.Body))
	if err != nil {
		c.logger.Error("Failed to decode event message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		c.reject(msg)
		return
	}

	var event models.OperationalEvent
	if err := json.Unmarshal(decoded, &event); err != nil {
		c.logger.Error("Failed to unmarshal operational event",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		c.reject(msg)
		return
	}

	if _, err := models.ParseEventType(string(event.EventType)); err != nil {
		c.logger.Warn("Dropping event of unknown type",
			zap.String("event_type", string(event.EventType)),
		)
		// ACK: an unknown type will not become known on redelivery.
		c.ack(msg)
		return
	}

	outcomes, err := c.dispatcher.Trigger(c.ctx, string(event.EventType), event.Payload)
	if err != nil {
		c.logger.Error("Failed to dispatch event",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
		c.reject(msg)
		return
	}

	c.logger.Info("Operational event dispatched",
		zap.String("event_type", string(event.EventType)),
		zap.String("location_id", event.LocationID),
		zap.Int("outcome_count", len(outcomes)),
	)
	c.ack(msg)
}

func (c *Consumer) ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}

func (c *Consumer) reject(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		c.logger.Error("Failed to nack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
