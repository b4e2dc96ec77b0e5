package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserEventsChannel carries websocket deliveries between API instances.
const UserEventsChannel = "ridepool:user-events"

// Notifier pushes a typed message to connected users.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, msgType string, data interface{}) error
	NotifyAll(ctx context.Context, msgType string, data interface{}) error
}

type relayEnvelope struct {
	UserID uint            `json:"userId,omitempty"`
	All    bool            `json:"all,omitempty"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// RedisRelay publishes deliveries on Redis so that whichever instance holds
// the user's socket can write to it.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, log *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, log: log}
}

func (r *RedisRelay) NotifyUser(ctx context.Context, userID uint, msgType string, data interface{}) error {
	return r.publish(ctx, relayEnvelope{UserID: userID, Type: msgType}, data)
}

func (r *RedisRelay) NotifyAll(ctx context.Context, msgType string, data interface{}) error {
	return r.publish(ctx, relayEnvelope{All: true, Type: msgType}, data)
}

func (r *RedisRelay) publish(ctx context.Context, env relayEnvelope, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env.Data = raw
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, UserEventsChannel, payload).Err()
}

// Run delivers relayed messages to the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, UserEventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("dropping malformed relay message", zap.Error(err))
		return
	}
	frame, err := json.Marshal(WebSocketMessage{Type: env.Type, Data: env.Data})
	if err != nil {
		return
	}
	if env.All {
		r.hub.BroadcastToAll(frame)
		return
	}
	r.hub.BroadcastToUser(env.UserID, frame)
}
