package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelPrefix namespaces per-user order channels: orders:user:{id}
const ChannelPrefix = "orders:user:"

// Channel returns the pub/sub channel for a user's order changes.
func Channel(userID uuid.UUID) string {
	return ChannelPrefix + userID.String()
}

// Message is the payload published on a user channel
type Message struct {
	UserID    uuid.UUID `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// RedisNotifier fans order changes out over Redis pub/sub so every API
// instance holding a stream for the user can refresh it.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a notifier on an existing client
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// OrdersChanged publishes one message per distinct user. Failures are logged
// and dropped; the database remains the source of truth.
func (n *RedisNotifier) OrdersChanged(ctx context.Context, userIDs ...uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(userIDs))
	now := time.Now().UTC()

	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		data, err := json.Marshal(Message{UserID: id, ChangedAt: now})
		if err != nil {
			n.logger.Error("Failed to encode order notification", zap.Error(err))
			continue
		}

		if err := n.client.Publish(ctx, Channel(id), data).Err(); err != nil {
			n.logger.Warn("Failed to publish order notification",
				zap.String("user_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

// Subscribe listens on the user's channel until ctx is done. The returned
// channel is closed when the subscription ends.
func (n *RedisNotifier) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Message, error) {
	pubsub := n.client.Subscribe(ctx, Channel(userID))

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to order channel: %w", err)
	}

	out := make(chan Message, 1)

	go func() {
		defer func() {
			_ = pubsub.Close()
			close(out)
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var m Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					n.logger.Warn("Failed to decode order notification",
						zap.String("channel", msg.Channel),
						zap.Error(err),
					)
					continue
				}

				// Coalesce bursts: a pending refresh already covers this one
				select {
				case out <- m:
				default:
				}
			}
		}
	}()

	return out, nil
}
