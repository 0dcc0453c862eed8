package orchestrator

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"screenai-backend/internal/protocol"
)

// UpdatesChannel is the pub/sub channel a page context's sockets listen on.
func UpdatesChannel(contextID string) string {
	return "context_updates:" + contextID
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSender publishes results so that whichever server replica holds the
// page's socket can deliver them.
type RedisSender struct {
	client publisher
}

func NewRedisSender(client *redis.Client) *RedisSender {
	return &RedisSender{client: client}
}

func (s *RedisSender) Send(ctx context.Context, contextID string, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	if err := s.client.Publish(ctx, UpdatesChannel(contextID), string(data)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type(), err)
	}
	return nil
}
