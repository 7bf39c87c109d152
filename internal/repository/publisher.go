package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrPublisherDisabled is returned when Redis is not configured.
var ErrPublisherDisabled = errors.New("redis publisher disabled")

// RedisPublisher pushes JSON events to per-user Redis channels.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a publisher writing to "<prefix>:<userID>".
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel name for a user.
func (p *RedisPublisher) Channel(userID string) string {
	return p.prefix + ":" + userID
}

// Publish sends payload to the user's channel and returns the receiver count.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, payload interface{}) (int64, error) {
	if p.client == nil {
		return 0, ErrPublisherDisabled
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.Channel(userID), body).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish: %w", err)
	}
	return receivers, nil
}
