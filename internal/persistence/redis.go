package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// RedisKV stores settings documents as hash fields, one hash per document
// kind.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a client as a KV store.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func kindKey(kind string) string {
	return fmt.Sprintf("ticketdesk:%s", kind)
}

func (s *RedisKV) Load(ctx context.Context, kind, workspaceID string) ([]byte, error) {
	doc, err := s.client.HGet(ctx, kindKey(kind), workspaceID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return doc, nil
}

func (s *RedisKV) Save(ctx context.Context, kind, workspaceID string, doc []byte) error {
	return s.client.HSet(ctx, kindKey(kind), workspaceID, doc).Err()
}

func (s *RedisKV) List(ctx context.Context, kind string) (map[string][]byte, error) {
	raw, err := s.client.HGetAll(ctx, kindKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for workspaceID, doc := range raw {
		out[workspaceID] = []byte(doc)
	}
	return out, nil
}
