package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Publisher distributes comment events.
type Publisher interface {
	Publish(ctx context.Context, ev models.StreamEvent) error
	Close() error
}

// Multi publishes to every publisher and joins their errors. One failing
// sink does not stop the others.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev models.StreamEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.StreamEvent) error { return nil }
func (Nop) Close() error                                      { return nil }

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher writes events as persistent JSON messages to a durable
// queue through the default exchange.
type AMQPPublisher struct {
	queue   string
	logger  *logrus.Logger
	metrics *metrics.Registry

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
}

// DialAMQP connects to the broker and declares the queue.
func DialAMQP(url, queue string, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	p := newAMQPPublisher(ch, q.Name, logger)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, queue string, logger *logrus.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		queue:   queue,
		logger:  logger,
		metrics: metrics.GetRegistry(),
		ch:      ch,
	}
}

func (p *AMQPPublisher) Publish(_ context.Context, ev models.StreamEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.mu.Lock()
	err = p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Timestamp:    at,
		Body:         body,
	})
	p.mu.Unlock()

	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.IncrementCounter(metrics.EventsPublished, map[string]string{"sink": "amqp", "status": status}, "Events handed to a sink")
	if err != nil {
		p.logger.WithError(err).WithField("queue", p.queue).Warn("Failed to publish event")
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
