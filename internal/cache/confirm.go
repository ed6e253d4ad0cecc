package cache

import (
	"context"
	"sync"
	"time"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/storage"
)

// ConfirmCache 本地内存确认令牌存储
//
// 未配置 Redis 时的默认实现。条目按 TTL 过期，
// 后台协程定期清理；单实例部署够用。
type ConfirmCache struct {
	mu      sync.Mutex
	entries map[domain.Identity]*cacheEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	pending   storage.PendingConfirmation
	expiresAt time.Time
}

// NewConfirmCache 创建本地确认令牌存储
func NewConfirmCache(ttl time.Duration) *ConfirmCache {
	c := &ConfirmCache{
		entries: make(map[domain.Identity]*cacheEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// PutConfirmation 写入待确认状态，覆盖同一用户之前的状态
func (c *ConfirmCache) PutConfirmation(_ context.Context, id domain.Identity, pending *storage.PendingConfirmation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = &cacheEntry{
		pending:   *pending,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// GetConfirmation 读取待确认状态
func (c *ConfirmCache) GetConfirmation(_ context.Context, id domain.Identity) (*storage.PendingConfirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, id)
		return nil, storage.ErrConfirmationNotFound
	}
	copied := entry.pending
	return &copied, nil
}

// DeleteConfirmation 删除待确认状态
func (c *ConfirmCache) DeleteConfirmation(_ context.Context, id domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

// Close 停止后台清理协程
func (c *ConfirmCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Health 本地缓存总是健康
func (c *ConfirmCache) Health() error {
	return nil
}

// cleanupLoop 定期清理过期条目
func (c *ConfirmCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for id, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
