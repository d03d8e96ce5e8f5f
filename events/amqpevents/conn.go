package amqpevents

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Config holds connection and exchange settings.
type Config struct {
	URL          string
	Exchange     string
	ExchangeType string
	Durable      bool
}

// DefaultExchangeType routes on "<entity>.<kind>" patterns.
const DefaultExchangeType = amqp.ExchangeTopic

// Connection owns the broker connection and the channel events go out on.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// Dial connects to the broker and declares the exchange.
func Dial(cfg Config, logger *zap.Logger) (*Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" || cfg.Exchange == "" {
		return nil, errors.New("amqpevents: url and exchange are required")
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = DefaultExchangeType
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		logger.Error("RMQ/CONNECT FAILED", zap.String("exchange", cfg.Exchange), zap.Error(err))
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Error("RMQ/CHANNEL FAILED", zap.Error(err))
		return nil, err
	}

	if err := DeclareExchange(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		logger.Error("RMQ/EXCHANGE DECLARE FAILED", zap.Error(err))
		return nil, err
	}

	logger.Info("RMQ/CONNECTED", zap.String("exchange", cfg.Exchange))
	return &Connection{conn: conn, channel: ch, logger: logger}, nil
}

// ExchangeDeclarer is the part of *amqp.Channel DeclareExchange needs.
type ExchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

// DeclareExchange declares cfg.Exchange, creating it if missing.
func DeclareExchange(ch ExchangeDeclarer, cfg Config) error {
	kind := cfg.ExchangeType
	if kind == "" {
		kind = DefaultExchangeType
	}
	return ch.ExchangeDeclare(cfg.Exchange, kind, cfg.Durable, false, false, false, nil)
}

// Channel returns the publishing channel.
func (c *Connection) Channel() *amqp.Channel {
	return c.channel
}

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	var errs []error
	if c.channel != nil {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	c.logger.Info("RMQ/CLOSED")
	return errors.Join(errs...)
}
