package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notekeep/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// typeAttribute is carried as the AMQP message type so consumers can route
// on it without decoding the body.
const typeAttribute = "type"

// RabbitMQClient publishes note events to, and consumes them from, one
// queue per channel name on the default exchange.
type RabbitMQClient struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  config.RabbitMQConfig

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQClient dials the broker and opens the channel used for both
// publishing and consuming.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set rabbitmq prefetch: %w", err)
		}
	}

	return &RabbitMQClient{
		conn:     conn,
		ch:       ch,
		cfg:      cfg,
		declared: make(map[string]bool),
	}, nil
}

// Publish enqueues data on the queue named channel. The message id is
// returned so callers can correlate it in logs.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := r.ensureQueue(channel); err != nil {
		return "", err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         attrs[typeAttribute],
		Headers:      make(amqp.Table, len(attrs)),
		Body:         data,
	}
	if r.cfg.QueueDurable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		msg.Headers[key] = value
	}

	if err := r.ch.PublishWithContext(ctx, "", channel, false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return msg.MessageId, nil
}

// Subscribe hands every delivery on channel to handler until ctx is done
// or the connection drops. A failed delivery is requeued once; failing
// again on redelivery rejects it for good.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.ensureQueue(channel); err != nil {
		return err
	}

	tag := "notekeep-tagger-" + uuid.NewString()
	deliveries, err := r.ch.Consume(channel, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", channel, err)
	}
	defer func() { _ = r.ch.Cancel(tag, false) }()

	closed := r.conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return fmt.Errorf("rabbitmq connection closed: %w", amqpErr)
			}
			return errors.New("rabbitmq connection closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, deliveryMessage(d)); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	chErr := r.ch.Close()
	connErr := r.conn.Close()
	if errors.Is(chErr, amqp.ErrClosed) {
		chErr = nil
	}
	if errors.Is(connErr, amqp.ErrClosed) {
		connErr = nil
	}
	return errors.Join(chErr, connErr)
}

func (r *RabbitMQClient) ensureQueue(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("rabbitmq channel is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}
	if _, err := r.ch.QueueDeclare(name, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func deliveryMessage(d amqp.Delivery) Message {
	attrs := make(map[string]string, len(d.Headers)+1)
	for key, value := range d.Headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	if _, ok := attrs[typeAttribute]; !ok && d.Type != "" {
		attrs[typeAttribute] = d.Type
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs}
}
