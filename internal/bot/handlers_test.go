package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/bot/internal/cache"
	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/mailtm"
	"tempmail/bot/internal/storage"
)

func TestProvisionFailureText(t *testing.T) {
	t.Run("域名不可用", func(t *testing.T) {
		got := provisionFailureText(mailtm.ErrDomainUnavailable)
		assert.Contains(t, got, "domains")
	})

	t.Run("地址冲突", func(t *testing.T) {
		got := provisionFailureText(mailtm.ErrAddressTaken)
		assert.Contains(t, got, "already exist")
	})

	t.Run("前缀非法", func(t *testing.T) {
		got := provisionFailureText(domain.ErrInvalidLocalPart)
		assert.Contains(t, got, "prefix")
	})

	t.Run("其余错误给通用提示", func(t *testing.T) {
		got := provisionFailureText(assert.AnError)
		assert.Contains(t, got, "try again later")
	})
}

func TestTakeConfirmation(t *testing.T) {
	newBot := func(confirms storage.ConfirmationRepository) *Bot {
		return &Bot{confirms: confirms}
	}
	put := func(t *testing.T, confirms storage.ConfirmationRepository, id domain.Identity, action, token string) {
		t.Helper()
		err := confirms.PutConfirmation(context.Background(), id, &storage.PendingConfirmation{
			Token:     token,
			Action:    action,
			Address:   "old@example.com",
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	t.Run("令牌匹配则消费并成功", func(t *testing.T) {
		confirms := cache.NewConfirmCache(time.Minute)
		defer confirms.Close()
		put(t, confirms, 1, storage.ActionDelete, "tok-1")

		b := newBot(confirms)
		assert.True(t, b.takeConfirmation(context.Background(), 1, storage.ActionDelete, "tok-1"))

		// 状态被消费，重复点击视为过期
		assert.False(t, b.takeConfirmation(context.Background(), 1, storage.ActionDelete, "tok-1"))
	})

	t.Run("令牌不匹配视为过期", func(t *testing.T) {
		confirms := cache.NewConfirmCache(time.Minute)
		defer confirms.Close()
		put(t, confirms, 2, storage.ActionDelete, "tok-current")

		b := newBot(confirms)
		assert.False(t, b.takeConfirmation(context.Background(), 2, storage.ActionDelete, "tok-stale"))

		// 不匹配不消费现有状态
		pending, err := confirms.GetConfirmation(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, "tok-current", pending.Token)
	})

	t.Run("操作类型不匹配不触发", func(t *testing.T) {
		confirms := cache.NewConfirmCache(time.Minute)
		defer confirms.Close()
		put(t, confirms, 3, storage.ActionReplace, "tok-3")

		b := newBot(confirms)
		assert.False(t, b.takeConfirmation(context.Background(), 3, storage.ActionDelete, "tok-3"))
	})

	t.Run("无待确认状态返回失败", func(t *testing.T) {
		confirms := cache.NewConfirmCache(time.Minute)
		defer confirms.Close()

		b := newBot(confirms)
		assert.False(t, b.takeConfirmation(context.Background(), 4, storage.ActionDelete, "tok-4"))
	})
}
