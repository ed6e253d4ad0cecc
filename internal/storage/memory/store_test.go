package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/storage"
)

func TestStore_SessionLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	record := &domain.MailboxRecord{
		ChatID:    42,
		Address:   "abc@mail.tm",
		AccountID: "acct-1",
		Token:     "tok-1",
		CreatedAt: time.Now().UTC(),
	}

	t.Run("不存在的记录返回 ErrSessionNotFound", func(t *testing.T) {
		got, err := store.GetSession(ctx, 42)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	})

	t.Run("写入后可以读回", func(t *testing.T) {
		require.NoError(t, store.UpsertSession(ctx, record))

		got, err := store.GetSession(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "abc@mail.tm", got.Address)
		assert.Equal(t, "acct-1", got.AccountID)
	})

	t.Run("读回的是副本，修改不影响存储", func(t *testing.T) {
		got, err := store.GetSession(ctx, 42)
		require.NoError(t, err)
		got.Address = "mutated@mail.tm"

		again, err := store.GetSession(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "abc@mail.tm", again.Address)
	})

	t.Run("Upsert 整体替换记录", func(t *testing.T) {
		replacement := &domain.MailboxRecord{
			ChatID:    42,
			Address:   "new@mail.tm",
			AccountID: "acct-2",
			Token:     "tok-2",
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.UpsertSession(ctx, replacement))

		got, err := store.GetSession(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "acct-2", got.AccountID)
	})

	t.Run("删除后再读返回 ErrSessionNotFound", func(t *testing.T) {
		require.NoError(t, store.DeleteSession(ctx, 42))

		_, err := store.GetSession(ctx, 42)
		assert.ErrorIs(t, err, storage.ErrSessionNotFound)

		// 重复删除同样成功
		assert.NoError(t, store.DeleteSession(ctx, 42))
	})
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := domain.Identity(n % 10)
			_ = store.UpsertSession(ctx, &domain.MailboxRecord{
				ChatID:    id,
				Address:   "x@mail.tm",
				AccountID: "acct",
				Token:     "tok",
			})
			_, _ = store.GetSession(ctx, id)
		}(i)
	}
	wg.Wait()

	got, err := store.GetSession(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "x@mail.tm", got.Address)
}
