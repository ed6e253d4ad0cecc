package memory

import (
	"context"
	"sync"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/storage"
)

// Store 内存会话存储
//
// 仅用于开发环境与测试：进程重启即丢失全部会话。
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.Identity]domain.MailboxRecord
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{
		sessions: make(map[domain.Identity]domain.MailboxRecord),
	}
}

// UpsertSession 保存或整体替换用户的邮箱记录
func (s *Store) UpsertSession(_ context.Context, record *domain.MailboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.ChatID] = *record
	return nil
}

// GetSession 按用户获取邮箱记录
func (s *Store) GetSession(_ context.Context, id domain.Identity) (*domain.MailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	copied := record
	return &copied, nil
}

// DeleteSession 删除用户的邮箱记录；记录不存在也视为成功
func (s *Store) DeleteSession(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close 实现 storage.Store
func (s *Store) Close() error { return nil }

// Health 实现 storage.Store
func (s *Store) Health() error { return nil }
