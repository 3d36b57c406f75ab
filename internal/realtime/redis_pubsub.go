package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/models"
)

const (
	channelPrefix        = "headcount:"
	announcementsChannel = "announcements"
	eventTTL             = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    int64           `json:"at"`
}

// RedisPubSub implements Publisher and Subscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for headcount events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

func dateChannel(date models.Date) string {
	return channelPrefix + date.String()
}

func (r *RedisPubSub) publish(channel, event string, data []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: data, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTTL)
	defer cancel()
	return r.client.Publish(ctx, channel, body).Err()
}

// PublishDateChanged announces that participation for date changed.
func (r *RedisPubSub) PublishDateChanged(date models.Date) error {
	return r.publish(dateChannel(date), "changed", nil)
}

// PublishAnnouncement publishes an encoded announcement to every instance.
func (r *RedisPubSub) PublishAnnouncement(payload []byte) error {
	return r.publish(announcementsChannel, EventAnnouncement, payload)
}

// SubscribeDate calls handler for each change published for date.
func (r *RedisPubSub) SubscribeDate(date models.Date, handler func()) (cancel func(), err error) {
	return r.subscribe(dateChannel(date), func(redisPayload) { handler() })
}

// SubscribeAnnouncements calls handler with each published announcement body.
func (r *RedisPubSub) SubscribeAnnouncements(handler func(payload []byte)) (cancel func(), err error) {
	return r.subscribe(announcementsChannel, func(p redisPayload) { handler(p.Data) })
}

// subscribe listens on channel until the returned cancel function is called.
func (r *RedisPubSub) subscribe(channel string, handler func(redisPayload)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Debug("drop malformed redis payload", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(p)
			}
		}
	}()
	return cancelCtx, nil
}
