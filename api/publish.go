package api

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"insight-board/domain"
)

// updateEnvelope is the message published after every committed board
// transition and forwarded verbatim to stream subscribers.
type updateEnvelope struct {
	UserID string               `json:"userId"`
	Board  domain.BoardState    `json:"board"`
	Counts map[domain.Group]int `json:"counts"`
}

// RedisPublisher broadcasts committed board snapshots on a Redis channel
// so every stream connection, on any instance, sees them.
type RedisPublisher struct {
	rc      *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(rc *redis.Client, channel string, logger *log.Logger) *RedisPublisher {
	return &RedisPublisher{rc: rc, channel: channel, logger: logger}
}

// Publish sends one board snapshot. Delivery is fire-and-forget: stream
// clients that miss a message catch up on the next commit.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, state domain.BoardState) error {
	data, err := sonic.ConfigStd.Marshal(updateEnvelope{
		UserID: userID,
		Board:  state,
		Counts: state.Counts(),
	})
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, p.channel, data).Err()
}
