package rabbitmq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	amqp "github.com/streadway/amqp"
)

// ErrChannelUnavailable is returned when the client has no open channel.
var ErrChannelUnavailable = errors.New("RabbitMQ channel is not available")

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details. Exchanges are declared as durable
// topic exchanges when the client connects.
type Config struct {
	URL       string
	Exchanges []string
}

// NewClient creates a new RabbitMQ client.
// It connects to RabbitMQ, opens a channel and declares the configured exchanges.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, exchange := range cfg.Exchanges {
		err = ch.ExchangeDeclare(
			exchange, // name
			"topic",  // kind
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}

	log.Info().Strs("exchanges", cfg.Exchanges).Msg("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a persistent JSON message to exchange with the given routing key.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return ErrChannelUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Debug().Str("exchange", exchange).Str("routing_key", routingKey).Msg("message published")
	return nil
}

// Consume binds a durable queue to exchange with bindingKey and hands every
// delivery to handler on a background goroutine. A nil handler error acks the
// message, anything else nacks it without requeueing.
func (c *Client) Consume(queue, exchange, bindingKey string, handler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return ErrChannelUnavailable
	}

	c.mu.Lock()
	q, err := c.channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err == nil {
		err = c.channel.QueueBind(q.Name, bindingKey, exchange, false, nil)
	}
	var msgs <-chan amqp.Delivery
	if err == nil {
		msgs, err = c.channel.Consume(
			q.Name, // queue
			"",     // consumer tag
			false,  // auto-ack
			false,  // exclusive
			false,  // no-local
			false,  // no-wait
			nil,    // args
		)
	}
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	log.Info().Str("queue", q.Name).Str("binding", bindingKey).Msg("waiting for events")

	go func() {
		for msg := range msgs {
			if err := HandleDelivery(msg, handler); err != nil {
				log.Error().Err(err).Uint64("tag", msg.DeliveryTag).Msg("failed to acknowledge message")
			}
		}
	}()

	return nil
}

// HandleDelivery runs handler and settles msg according to its result.
func HandleDelivery(msg amqp.Delivery, handler func(msg amqp.Delivery) error) error {
	if err := handler(msg); err != nil {
		log.Warn().Err(err).Uint64("tag", msg.DeliveryTag).Str("routing_key", msg.RoutingKey).Msg("failed to process message")
		return msg.Nack(false, false)
	}
	return msg.Ack(false)
}
