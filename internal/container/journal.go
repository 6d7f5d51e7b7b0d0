package container

import (
	"context"
	"encoding/json"
	"fmt"

	"codeforge/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const journalKey = "codeforge:containers"

// Journal is the external durable log of launched containers. The in-memory
// registry does not survive a restart; replaying the journal lets a fresh
// engine find and reconcile containers a previous process left behind.
// All journal operations are best effort.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	Remove(ctx context.Context, id string) error
	Replay(ctx context.Context) ([]Record, error)
}

type redisJournal struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient connects to Redis when REDIS_URL is configured. A nil
// client disables the journal; the registry works without it.
func NewRedisClient(cfg *config.AppConfig, logger *zap.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL, container journal disabled", zap.Error(err))
		return nil
	}
	client := redis.NewClient(options)
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Error("redis unreachable, container journal disabled", zap.Error(err))
		return nil
	}
	logger.Debug("container journal enabled")
	return client
}

func NewJournal(client *redis.Client, logger *zap.Logger) Journal {
	if client == nil {
		return nil
	}
	return &redisJournal{client: client, logger: logger.Named("journal")}
}

func (j *redisJournal) Append(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal container record: %w", err)
	}
	if err := j.client.HSet(ctx, journalKey, rec.ID, payload).Err(); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

func (j *redisJournal) Remove(ctx context.Context, id string) error {
	if err := j.client.HDel(ctx, journalKey, id).Err(); err != nil {
		return fmt.Errorf("journal remove: %w", err)
	}
	return nil
}

func (j *redisJournal) Replay(ctx context.Context) ([]Record, error) {
	entries, err := j.client.HGetAll(ctx, journalKey).Result()
	if err != nil {
		return nil, fmt.Errorf("journal replay: %w", err)
	}
	records := make([]Record, 0, len(entries))
	for id, payload := range entries {
		var rec Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			j.logger.Warn("skipping corrupt journal entry", zap.String("id", id), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
