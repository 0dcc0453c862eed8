package capture

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"screenai-backend/internal/models"
)

const keyPrefix = "viewport:"

// Capturer returns the current visible viewport of a page context as an
// encoded image.
type Capturer interface {
	CaptureVisible(ctx context.Context, contextID string) ([]byte, error)
}

// FrameStore is a Capturer fed by the page itself: the page pushes a snapshot
// of its viewport and the latest one is served until it expires.
type FrameStore interface {
	Capturer
	Put(ctx context.Context, contextID string, frame []byte) error
}

func captureFailed(err error) error {
	return models.NewError(models.KindCaptureFailure, "Failed to capture screen. Please try again.", err)
}

type frameClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore shares frames between server replicas.
type RedisStore struct {
	client frameClient
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, contextID string, frame []byte) error {
	return s.client.Set(ctx, keyPrefix+contextID, frame, s.ttl).Err()
}

func (s *RedisStore) CaptureVisible(ctx context.Context, contextID string) ([]byte, error) {
	frame, err := s.client.Get(ctx, keyPrefix+contextID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, captureFailed(nil)
	}
	if err != nil {
		return nil, captureFailed(err)
	}
	return frame, nil
}

// MemoryStore keeps frames in process, for a single server or in-process use.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, 2*ttl)}
}

func (s *MemoryStore) Put(_ context.Context, contextID string, frame []byte) error {
	s.cache.SetDefault(contextID, frame)
	return nil
}

func (s *MemoryStore) CaptureVisible(_ context.Context, contextID string) ([]byte, error) {
	v, ok := s.cache.Get(contextID)
	if !ok {
		return nil, captureFailed(nil)
	}
	return v.([]byte), nil
}
