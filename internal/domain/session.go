package domain

import (
	"time"
)

// Identity 唯一标识一个聊天会话（Telegram chat id）。
type Identity int64

// MailboxRecord 表示某个用户当前持有的临时邮箱。
//
// 记录在提供方创建成功后写入，只会被整体替换或删除，
// 不会原地修改单个字段。
type MailboxRecord struct {
	ChatID    Identity  `json:"chatId" gorm:"column:chat_id;primaryKey"`
	Address   string    `json:"address" gorm:"type:varchar(255);not null"`
	AccountID string    `json:"accountId" gorm:"column:account_id;type:varchar(64);not null"`
	Token     string    `json:"token" gorm:"type:varchar(512);not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 gorm 表名（沿用线上库的历史表名）。
func (MailboxRecord) TableName() string {
	return "users_temp_emails"
}
