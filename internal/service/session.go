package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/storage"
)

var (
	// ErrNoActiveMailbox 用户当前没有活跃的临时邮箱
	ErrNoActiveMailbox = errors.New("no active mailbox")
	// ErrMessageUnavailable 邮件内容拉取失败（已过期或提供方错误）
	ErrMessageUnavailable = errors.New("message unavailable")
)

// ProviderClient 定义会话管理器依赖的提供方操作。
type ProviderClient interface {
	CreateAccount(ctx context.Context, username, domainName string) (*domain.MailboxRecord, error)
	ListMessages(ctx context.Context, accountID, token string) []domain.MessageSummary
	FetchMessage(ctx context.Context, accountID, messageID, token string) *domain.MessageContent
	DeleteAccount(ctx context.Context, accountID, token string) error
}

// ProvisionResult 是 Provision 的返回结果。
//
// Conflict 为真表示用户已持有活跃邮箱，本次未做任何修改，
// Record 携带已存在的记录供调用方提示用户确认替换。
type ProvisionResult struct {
	Conflict bool
	Record   *domain.MailboxRecord
}

// DeleteOutcome 是 Delete 的结果状态。
type DeleteOutcome string

const (
	// OutcomeDeleted 提供方与本地记录都已删除
	OutcomeDeleted DeleteOutcome = "deleted"
	// OutcomeNothingToDelete 本来就没有活跃邮箱
	OutcomeNothingToDelete DeleteOutcome = "nothing_to_delete"
)

// SessionManager 维护"每个用户至多一个活跃邮箱"的不变量。
//
// 同一用户的操作通过按键互斥锁串行化，不同用户完全并行；
// 锁不跨越单次操作边界。所有提供方失败立即作为类型化结果
// 上抛，不在本层重试。
type SessionManager struct {
	provider ProviderClient
	store    storage.SessionRepository
	log      *zap.Logger
	locks    identityLocks
}

// NewSessionManager 创建会话管理器
func NewSessionManager(provider ProviderClient, store storage.SessionRepository, log *zap.Logger) *SessionManager {
	return &SessionManager{
		provider: provider,
		store:    store,
		log:      log,
	}
}

// Provision 为用户创建新的临时邮箱。
//
// 已存在活跃邮箱时返回 Conflict 结果而不覆盖——替换必须经由
// Replace 显式确认。创建成功后记录先落库再返回。
func (m *SessionManager) Provision(ctx context.Context, id domain.Identity, prefix string) (*ProvisionResult, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	existing, err := m.store.GetSession(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return nil, fmt.Errorf("read session store: %w", err)
	}
	if existing != nil {
		return &ProvisionResult{Conflict: true, Record: existing}, nil
	}

	record, err := m.provider.CreateAccount(ctx, prefix, "")
	if err != nil {
		return nil, err
	}
	record.ChatID = id

	if err := m.store.UpsertSession(ctx, record); err != nil {
		// 记录没落库，提供方账户成为孤儿；尽力回收
		m.log.Error("failed to persist new session, deleting orphaned account",
			zap.Int64("chat_id", int64(id)),
			zap.String("account_id", record.AccountID),
			zap.Error(err),
		)
		if delErr := m.provider.DeleteAccount(ctx, record.AccountID, record.Token); delErr != nil {
			m.log.Warn("failed to delete orphaned provider account",
				zap.String("account_id", record.AccountID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("write session store: %w", err)
	}

	m.log.Info("mailbox provisioned",
		zap.Int64("chat_id", int64(id)),
		zap.String("address", record.Address),
	)
	return &ProvisionResult{Record: record}, nil
}

// Replace 删除用户现有邮箱并创建新邮箱（须经确认后调用）。
//
// 提供方侧的旧账户删除是尽力而为：无论成功与否本地记录都
// 先移除——用户已要求替换，本地绝不保留已知作废的记录。
// 随后创建失败时用户停留在"无活跃邮箱"状态，不回滚旧记录。
func (m *SessionManager) Replace(ctx context.Context, id domain.Identity, prefix string) (*domain.MailboxRecord, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	existing, err := m.store.GetSession(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return nil, fmt.Errorf("read session store: %w", err)
	}

	if existing != nil {
		if err := m.provider.DeleteAccount(ctx, existing.AccountID, existing.Token); err != nil {
			m.log.Warn("best-effort delete of old account failed, continuing",
				zap.Int64("chat_id", int64(id)),
				zap.String("account_id", existing.AccountID),
				zap.Error(err),
			)
		}
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return nil, fmt.Errorf("delete session store: %w", err)
		}
	}

	record, err := m.provider.CreateAccount(ctx, prefix, "")
	if err != nil {
		return nil, err
	}
	record.ChatID = id

	if err := m.store.UpsertSession(ctx, record); err != nil {
		m.log.Error("failed to persist replacement session, deleting orphaned account",
			zap.Int64("chat_id", int64(id)),
			zap.String("account_id", record.AccountID),
			zap.Error(err),
		)
		if delErr := m.provider.DeleteAccount(ctx, record.AccountID, record.Token); delErr != nil {
			m.log.Warn("failed to delete orphaned provider account",
				zap.String("account_id", record.AccountID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("write session store: %w", err)
	}

	m.log.Info("mailbox replaced",
		zap.Int64("chat_id", int64(id)),
		zap.String("address", record.Address),
	)
	return record, nil
}

// Delete 删除用户的临时邮箱。
//
// 本地状态必须反映已确认的提供方状态：提供方删除失败
//（非 404）时保留本地记录并报错，避免误导用户。
// 重复删除返回 OutcomeNothingToDelete，操作幂等。
func (m *SessionManager) Delete(ctx context.Context, id domain.Identity) (DeleteOutcome, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	existing, err := m.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return OutcomeNothingToDelete, nil
		}
		return "", fmt.Errorf("read session store: %w", err)
	}

	if err := m.provider.DeleteAccount(ctx, existing.AccountID, existing.Token); err != nil {
		return "", err
	}

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return "", fmt.Errorf("delete session store: %w", err)
	}

	m.log.Info("mailbox deleted",
		zap.Int64("chat_id", int64(id)),
		zap.String("address", existing.Address),
	)
	return OutcomeDeleted, nil
}

// CheckInbox 拉取用户当前邮箱的邮件摘要。
//
// 提供方把 404 与空收件箱折叠为同一个空结果，因此已被
// 提供方清除的邮箱在这里表现为"收件箱为空"，是已知限制。
func (m *SessionManager) CheckInbox(ctx context.Context, id domain.Identity) ([]domain.MessageSummary, error) {
	record, err := m.activeRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.provider.ListMessages(ctx, record.AccountID, record.Token), nil
}

// FetchMessage 拉取单封邮件内容。
func (m *SessionManager) FetchMessage(ctx context.Context, id domain.Identity, messageID string) (*domain.MessageContent, error) {
	record, err := m.activeRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	content := m.provider.FetchMessage(ctx, record.AccountID, messageID, record.Token)
	if content == nil {
		return nil, ErrMessageUnavailable
	}
	return content, nil
}

// Active 返回用户当前的邮箱记录（供聊天层渲染提示用）。
func (m *SessionManager) Active(ctx context.Context, id domain.Identity) (*domain.MailboxRecord, error) {
	return m.activeRecord(ctx, id)
}

func (m *SessionManager) activeRecord(ctx context.Context, id domain.Identity) (*domain.MailboxRecord, error) {
	record, err := m.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNoActiveMailbox
		}
		return nil, fmt.Errorf("read session store: %w", err)
	}
	return record, nil
}
