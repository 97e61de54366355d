// Package amqp carries import requests to workers and import-completed events
// back out over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"spendings/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxRetries     = 3
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config names the broker and topology.
type Config struct {
	URL         string
	Exchange    string
	ImportQueue string
	EventsQueue string
}

type Client struct {
	url          string
	exchangeName string
	importQueue  string
	eventsQueue  string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials the broker and declares the exchange and both queues.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		importQueue:  cfg.ImportQueue,
		eventsQueue:  cfg.EventsQueue,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.importQueue, c.eventsQueue); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(ch *amqp091.Channel, exchange string, queues ...string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range queues {
		if queue == "" {
			continue
		}
		if _, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		// Routing key equals the queue name on the direct exchange.
		if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// ensureChannel reconnects when the connection was lost.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}
	c.resetLocked()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	c.logger.Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.channel, nil
}

func (c *Client) resetLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// PublishImportRequest queues an import for a worker.
func (c *Client) PublishImportRequest(ctx context.Context, msg *ImportRequestMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.importQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published import request",
		log.FieldImportID, msg.ImportID,
		log.FieldSource, msg.Source)
	return nil
}

// PublishImportCompleted emits the outcome of an import.
func (c *Client) PublishImportCompleted(ctx context.Context, msg *ImportCompletedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.eventsQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published import completed event",
		log.FieldImportID, msg.ImportID,
		log.FieldRecords, msg.Records,
		log.FieldErrors, msg.Errors)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}

		lastErr = c.publishOnce(ctx, routingKey, body)
		if lastErr == nil {
			c.recordSuccess()
			return nil
		}
		c.recordFailure()
		c.logger.WarnContext(ctx, "Publish attempt failed",
			"attempt", attempt+1,
			"routing_key", routingKey,
			log.FieldError, lastErr)

		if !isConnectionError(lastErr) || c.isCircuitOpen() {
			break
		}
		c.mu.Lock()
		c.resetLocked()
		c.mu.Unlock()
	}
	return fmt.Errorf("publish message: %w", lastErr)
}

func (c *Client) publishOnce(ctx context.Context, routingKey string, body []byte) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// ConsumeImportRequests delivers import requests to handler until ctx ends.
// Malformed messages are dropped. A failed message is requeued once; a
// second failure drops it.
func (c *Client) ConsumeImportRequests(ctx context.Context, handler func(context.Context, *ImportRequestMessage) error) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		c.importQueue, // queue
		"",            // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming import requests", "queue", c.importQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *ImportRequestMessage) error) {
	dispatch(ctx, c.logger, d.Body, d.Redelivered, d, handler)
}

func dispatch(ctx context.Context, logger *log.Logger, body []byte, redelivered bool, ack acknowledger, handler func(context.Context, *ImportRequestMessage) error) {
	msg, err := ImportRequestMessageFromJSON(body)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping malformed import request", log.FieldError, err)
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle import request",
			log.FieldImportID, msg.ImportID,
			"redelivered", redelivered,
			log.FieldError, err)
		_ = ack.Nack(false, !redelivered)
		return
	}

	_ = ack.Ack(false)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	failures := atomic.AddInt64(&c.failureCount, 1)
	if failures >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("AMQP circuit breaker opened", "failures", failures)
		}
	}
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << uint(attempt)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"EOF",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
