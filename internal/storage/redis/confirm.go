package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tempmail/bot/internal/config"
	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/storage"
)

// ConfirmStore Redis 确认令牌存储
//
// 待确认状态写入 Redis 并依赖键过期自动清理，
// 多实例部署时各实例看到同一份待确认状态。
type ConfirmStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewConfirmStore 创建 Redis 确认令牌存储
func NewConfirmStore(cfg *config.RedisConfig, ttl time.Duration) (*ConfirmStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &ConfirmStore{rdb: rdb, ttl: ttl}, nil
}

func confirmKey(id domain.Identity) string {
	return fmt.Sprintf("confirm:%d", int64(id))
}

// PutConfirmation 写入待确认状态，覆盖同一用户之前的状态
func (s *ConfirmStore) PutConfirmation(ctx context.Context, id domain.Identity, pending *storage.PendingConfirmation) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, confirmKey(id), data, s.ttl).Err()
}

// GetConfirmation 读取待确认状态
func (s *ConfirmStore) GetConfirmation(ctx context.Context, id domain.Identity) (*storage.PendingConfirmation, error) {
	data, err := s.rdb.Get(ctx, confirmKey(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrConfirmationNotFound
		}
		return nil, err
	}

	var pending storage.PendingConfirmation
	if err := json.Unmarshal([]byte(data), &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

// DeleteConfirmation 删除待确认状态
func (s *ConfirmStore) DeleteConfirmation(ctx context.Context, id domain.Identity) error {
	return s.rdb.Del(ctx, confirmKey(id)).Err()
}

// Close 关闭 Redis 连接
func (s *ConfirmStore) Close() error {
	return s.rdb.Close()
}

// Health 检查 Redis 连通性
func (s *ConfirmStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}
