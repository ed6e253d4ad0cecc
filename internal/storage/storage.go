package storage

import (
	"context"
	"errors"
	"time"

	"tempmail/bot/internal/domain"
)

var (
	// ErrSessionNotFound 指定用户没有活跃的邮箱记录
	ErrSessionNotFound = errors.New("session not found")
	// ErrConfirmationNotFound 指定用户没有待确认的操作
	ErrConfirmationNotFound = errors.New("confirmation not found")
)

// SessionRepository 定义用户到活跃邮箱记录的持久化映射。
//
// Identity 是唯一主键：Upsert 整体替换记录，Get/Delete 按键操作。
// 实现必须在进程重启后保留数据（内存实现仅用于开发与测试）。
type SessionRepository interface {
	UpsertSession(ctx context.Context, record *domain.MailboxRecord) error
	GetSession(ctx context.Context, id domain.Identity) (*domain.MailboxRecord, error)
	DeleteSession(ctx context.Context, id domain.Identity) error
}

// Store 定义完整的会话存储接口。
type Store interface {
	SessionRepository

	Close() error
	Health() error
}

// 待确认操作类型
const (
	ActionReplace = "replace"
	ActionDelete  = "delete"
)

// PendingConfirmation 表示聊天侧等待用户点按钮确认的操作。
//
// Token 是一次性关联令牌，防止过期按钮作用到已被替换的记录上。
// 这是适配层状态，核心会话管理器不持有任何未确认状态。
type PendingConfirmation struct {
	Token     string    `json:"token"`
	Action    string    `json:"action"`
	Address   string    `json:"address"`
	Prefix    string    `json:"prefix,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConfirmationRepository 定义待确认状态的短时存取操作。
//
// 条目按 Identity 键入并在 TTL 后自动失效。
type ConfirmationRepository interface {
	PutConfirmation(ctx context.Context, id domain.Identity, pending *PendingConfirmation) error
	GetConfirmation(ctx context.Context, id domain.Identity) (*PendingConfirmation, error)
	DeleteConfirmation(ctx context.Context, id domain.Identity) error
}

// ConfirmationStore 定义完整的待确认状态存储接口。
type ConfirmationStore interface {
	ConfirmationRepository

	Close() error
	Health() error
}
