package alerting

import (
	"context"
	"fmt"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStatusStore keeps statuses in one Redis hash so they survive restarts
// and are shared between API instances.
type RedisStatusStore struct {
	client *redis.Client
	hash   string
	log    *logger.Logger
}

func NewRedisStatusStore(client *redis.Client, prefix string, log *logger.Logger) *RedisStatusStore {
	return &RedisStatusStore{
		client: client,
		hash:   prefix + ":alert_status",
		log:    log.Named("ledger.redis"),
	}
}

func (s *RedisStatusStore) Get(ctx context.Context, key models.AlertKey) (models.AlertStatus, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key.StorageKey()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read status %s: %w", key, err)
	}
	return models.AlertStatus(v), true, nil
}

func (s *RedisStatusStore) Set(ctx context.Context, key models.AlertKey, status models.AlertStatus) error {
	if err := s.client.HSet(ctx, s.hash, key.StorageKey(), string(status)).Err(); err != nil {
		return fmt.Errorf("failed to write status %s: %w", key, err)
	}
	return nil
}

func (s *RedisStatusStore) Delete(ctx context.Context, keys ...models.AlertKey) error {
	if len(keys) == 0 {
		return nil
	}
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = k.StorageKey()
	}
	if err := s.client.HDel(ctx, s.hash, fields...).Err(); err != nil {
		return fmt.Errorf("failed to delete %d statuses: %w", len(keys), err)
	}
	return nil
}

func (s *RedisStatusStore) Keys(ctx context.Context) ([]models.AlertKey, error) {
	fields, err := s.client.HKeys(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	keys := make([]models.AlertKey, 0, len(fields))
	for _, f := range fields {
		k, err := models.ParseStorageKey(f)
		if err != nil {
			s.log.Warn("skipping foreign field %q in %s", f, s.hash)
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *RedisStatusStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.hash).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count statuses: %w", err)
	}
	return int(n), nil
}

func (s *RedisStatusStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.hash).Err()
}

func (s *RedisStatusStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
