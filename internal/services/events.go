package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Topic string

const (
	TopicRideCreated       Topic = "ride.created"
	TopicRideStatusChanged Topic = "ride.status_changed"
	TopicRequestCreated    Topic = "request.created"
	TopicRequestResponded  Topic = "request.responded"
	TopicBookingConfirmed  Topic = "booking.confirmed"
	TopicMessageSent       Topic = "message.sent"
)

// DomainEvent is something other users should hear about once it has been
// committed. Recipients are user ids; Broadcast events go to everyone.
type DomainEvent struct {
	Topic      Topic                  `json:"topic"`
	Recipients []uint                 `json:"recipients,omitempty"`
	Broadcast  bool                   `json:"broadcast,omitempty"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

type EventBus interface {
	Publish(ctx context.Context, ev DomainEvent) error
}

type EventHandler func(ctx context.Context, ev DomainEvent) error

// LocalBus delivers events to in-process handlers on their own goroutine.
// Used when no broker is configured.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
	log      *zap.Logger
	wg       sync.WaitGroup
}

func NewLocalBus(log *zap.Logger) *LocalBus {
	return &LocalBus{log: log}
}

func (b *LocalBus) Subscribe(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *LocalBus) Publish(_ context.Context, ev DomainEvent) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.wg.Add(1)
		go func(h EventHandler) {
			defer b.wg.Done()
			if err := h(context.Background(), ev); err != nil {
				b.log.Warn("event handler failed", zap.String("topic", string(ev.Topic)), zap.Error(err))
			}
		}(h)
	}
	return nil
}

// Wait blocks until handlers started so far have returned.
func (b *LocalBus) Wait() {
	b.wg.Wait()
}

// emit publishes after commit; delivery problems never fail the caller.
func emit(ctx context.Context, bus EventBus, log *zap.Logger, ev DomainEvent) {
	if bus == nil || (len(ev.Recipients) == 0 && !ev.Broadcast) {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	if err := bus.Publish(ctx, ev); err != nil {
		log.Warn("failed to publish event", zap.String("topic", string(ev.Topic)), zap.Error(err))
	}
}
