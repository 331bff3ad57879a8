package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/justinnewbold/pattyshack-integrations/internal/config"
)

// Connection wraps an AMQP connection and channel with automatic reconnect.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
	logger  *zap.Logger
	stop    chan struct{}

	mu           sync.RWMutex
	reconnectMu  sync.Mutex
	reconnecting bool
}

func NewConnection(cfg *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Connect dials the broker, retrying with exponential backoff, then starts
// the reconnect monitor.
func (c *Connection) Connect() error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	const maxAttempts = 10

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = c.dial(); err == nil {
			break
		}
		if attempt == maxAttempts {
			return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxAttempts, err)
		}
		c.logger.Warn("RabbitMQ connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	go c.monitor()
	return nil
}

func (c *Connection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}

	conn, err := amqp.DialConfig(c.cfg.ConnectionURL(), amqp.Config{
		Heartbeat: 10 * time.Second,
		Vhost:     c.cfg.VHost,
		Properties: amqp.Table{
			"connection_name": "pattyshack-integrations",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.logger.Info("Connected to RabbitMQ",
		zap.String("host", c.cfg.Host),
		zap.String("vhost", c.cfg.VHost),
	)
	return nil
}

// monitor watches for dropped connections or channels and re-dials.
func (c *Connection) monitor() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.stop:
			return
		case err := <-connClose:
			if err != nil {
				c.logger.Error("RabbitMQ connection closed", zap.Error(err))
				c.reconnect()
			}
		case err := <-chanClose:
			if err != nil {
				c.logger.Error("RabbitMQ channel closed", zap.Error(err))
				c.reconnect()
			}
		}
	}
}

func (c *Connection) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()
	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if err := c.dial(); err == nil {
			return
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Consume registers a consumer on the queue with manual acknowledgements.
func (c *Connection) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return nil, fmt.Errorf("RabbitMQ channel is not open")
	}
	return ch.Consume(queue, consumerTag, false, false, false, false, nil)
}

// Cancel stops a consumer by tag.
func (c *Connection) Cancel(consumerTag string) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return nil
	}
	return ch.Cancel(consumerTag, false)
}

// SetQoS sets the prefetch count for the channel.
func (c *Connection) SetQoS(prefetchCount int) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("RabbitMQ channel is not open")
	}
	return ch.Qos(prefetchCount, 0, false)
}

// IsHealthy reports whether both the connection and the channel are open.
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

// Close shuts down the connection and stops the monitor.
func (c *Connection) Close() {
	close(c.stop)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
}
