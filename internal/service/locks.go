package service

import (
	"sync"

	"tempmail/bot/internal/domain"
)

// identityLocks 按用户粒度的互斥锁表。
//
// 同一用户的并发操作必须串行：两个并发 Replace 各自
// 删了旧账户再创建，落库只剩其一，另一个提供方账户就
// 成了无人引用的孤儿。锁按需创建后常驻，数量以活跃
// 用户数为上界。
type identityLocks struct {
	mu sync.Mutex
	m  map[domain.Identity]*sync.Mutex
}

// lock 获取指定用户的锁，返回解锁函数。
func (l *identityLocks) lock(id domain.Identity) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[domain.Identity]*sync.Mutex)
	}
	entry, ok := l.m[id]
	if !ok {
		entry = &sync.Mutex{}
		l.m[id] = entry
	}
	l.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
