package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const handlerTimeout = 30 * time.Second

// RabbitBus publishes domain events to a topic exchange routed by topic name
// and consumes them from one shared durable queue, so each event is handled by
// exactly one API instance.
type RabbitBus struct {
	conn     *amqp.Connection
	pubChan  *amqp.Channel
	pubMu    sync.Mutex
	exchange string
	queue    string
	log      *zap.Logger
}

// NewRabbitBus connects and declares the exchange, queue and binding.
func NewRabbitBus(url, exchange, queue string, log *zap.Logger) (*RabbitBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "#", exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: bind %s: %w", queue, err)
	}

	return &RabbitBus{conn: conn, pubChan: ch, exchange: exchange, queue: queue, log: log}, nil
}

func (b *RabbitBus) Publish(ctx context.Context, ev DomainEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return b.pubChan.PublishWithContext(ctx, b.exchange, string(ev.Topic), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
}

// Consume hands every delivery to handler with manual acks until ctx is
// cancelled. Failed and undecodable deliveries are dropped, not requeued.
func (b *RabbitBus) Consume(ctx context.Context, handler EventHandler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: set QoS: %w", err)
	}

	tag := "ridepool-" + uuid.NewString()
	deliveries, err := ch.Consume(b.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", b.queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(tag, false)
			return nil

		case cerr := <-closed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed: %w", cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq: delivery stream ended")
			}
			b.handle(ctx, d, handler)
		}
	}
}

func (b *RabbitBus) handle(ctx context.Context, d amqp.Delivery, handler EventHandler) {
	var ev DomainEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		b.log.Warn("dropping undecodable event", zap.String("routingKey", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	err := handler(hctx, ev)
	cancel()
	if err != nil {
		b.log.Warn("event handler failed", zap.String("topic", string(ev.Topic)), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (b *RabbitBus) Close() error {
	b.pubChan.Close()
	return b.conn.Close()
}
