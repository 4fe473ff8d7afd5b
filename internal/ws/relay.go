package ws

import (
	"context"
	"encoding/json"
	"waitline/internal/queue"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventsChannel is the Redis pub/sub channel queue events travel on between
// instances.
const EventsChannel = "waitline:queue-events"

// RedisNotifier publishes queue events to Redis so every instance's Relay
// can deliver them to its own websocket clients.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisNotifier(client *redis.Client, log *zap.Logger) *RedisNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisNotifier{client: client, channel: EventsChannel, log: log}
}

// Notify implements queue.Notifier. Publish failures are logged; the change
// itself is already committed.
func (n *RedisNotifier) Notify(ctx context.Context, ev queue.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("encode queue event", zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.log.Warn("publish queue event",
			zap.String("queue_id", ev.QueueID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))
	}
}

// Relay forwards events published on EventsChannel to the hub until ctx is
// cancelled.
func Relay(ctx context.Context, client *redis.Client, hub *Hub, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	sub := client.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev struct {
				QueueID string `json:"queue_id"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.QueueID == "" {
				log.Warn("malformed queue event on relay", zap.String("payload", msg.Payload))
				continue
			}
			hub.Broadcast(BroadcastMessage{QueueID: ev.QueueID, Message: []byte(msg.Payload)})
		}
	}
}
