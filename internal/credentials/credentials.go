package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"screenai-backend/internal/models"
)

// Provider names an external service that needs an API key.
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderOCRSpace Provider = "ocr_space"
)

// DefaultRedisKey is the hash holding one field per provider.
const DefaultRedisKey = "screenai:credentials"

// Store returns the key for a provider. Implementations read their backing
// source on every call; callers must not keep the value past one request.
type Store interface {
	Get(ctx context.Context, p Provider) (string, error)
}

func missing(p Provider) error {
	switch p {
	case ProviderGemini:
		return models.NewError(models.KindMissingCredential,
			"Google AI API key not set. Add it in the extension options.", nil)
	case ProviderOCRSpace:
		return models.NewError(models.KindMissingCredential,
			"OCR.space API key not set. Add it in the extension options.", nil)
	default:
		return models.NewError(models.KindMissingCredential, fmt.Sprintf("No API key configured for %s.", p), nil)
	}
}

// EnvStore reads GEMINI_API_KEY and OCR_SPACE_API_KEY.
type EnvStore struct {
	lookup func(string) (string, bool)
}

func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

var envKeys = map[Provider]string{
	ProviderGemini:   "GEMINI_API_KEY",
	ProviderOCRSpace: "OCR_SPACE_API_KEY",
}

func (s *EnvStore) Get(_ context.Context, p Provider) (string, error) {
	name, ok := envKeys[p]
	if !ok {
		return "", missing(p)
	}
	val, _ := s.lookup(name)
	if val == "" {
		return "", missing(p)
	}
	return val, nil
}

type hashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// RedisStore keeps keys in a redis hash so they can be rotated without a
// restart.
type RedisStore struct {
	client hashClient
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return newRedisStore(client, key)
}

func newRedisStore(client hashClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Get(ctx context.Context, p Provider) (string, error) {
	val, err := s.client.HGet(ctx, s.key, string(p)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && val == "") {
		return "", missing(p)
	}
	if err != nil {
		return "", models.NewError(models.KindMissingCredential, "Could not read stored API keys.", err)
	}
	return val, nil
}

// Set stores a key. An empty value removes it.
func (s *RedisStore) Set(ctx context.Context, p Provider, value string) error {
	if value == "" {
		return s.client.HDel(ctx, s.key, string(p)).Err()
	}
	return s.client.HSet(ctx, s.key, string(p), value).Err()
}

// ParseProvider accepts the names used on the command line.
func ParseProvider(name string) (Provider, error) {
	switch name {
	case "gemini", "google":
		return ProviderGemini, nil
	case "ocr_space", "ocrspace", "ocr":
		return ProviderOCRSpace, nil
	}
	return "", fmt.Errorf("unknown provider %q", name)
}
