package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tempmail/bot/internal/config"
	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/storage"
)

// Store SQL 会话存储实现（MySQL / PostgreSQL）
type Store struct {
	db *gorm.DB
}

// NewStore 根据配置创建 SQL 存储实例
func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	return newStoreWithDialector(dialector, cfg)
}

func newStoreWithDialector(dialector gorm.Dialector, cfg *config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 自动迁移会话表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(&domain.MailboxRecord{})
}

// UpsertSession 保存或整体替换用户的邮箱记录
//
// chat_id 主键冲突时覆盖全部提供方派生字段与 created_at，
// 等价于 INSERT ... ON CONFLICT (chat_id) DO UPDATE。
func (s *Store) UpsertSession(ctx context.Context, record *domain.MailboxRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"address", "account_id", "token", "created_at",
		}),
	}).Create(record).Error
}

// GetSession 按用户获取邮箱记录
func (s *Store) GetSession(ctx context.Context, id domain.Identity) (*domain.MailboxRecord, error) {
	var record domain.MailboxRecord
	err := s.db.WithContext(ctx).Where("chat_id = ?", int64(id)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}
	return &record, nil
}

// DeleteSession 删除用户的邮箱记录；记录不存在也视为成功
func (s *Store) DeleteSession(ctx context.Context, id domain.Identity) error {
	return s.db.WithContext(ctx).
		Where("chat_id = ?", int64(id)).
		Delete(&domain.MailboxRecord{}).Error
}

// Close 关闭数据库连接池
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连通性
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
