package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tempmail/bot/internal/config"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/pool"
	"tempmail/bot/internal/service"
	"tempmail/bot/internal/storage"
)

// 单次更新处理的总时间上界，覆盖提供方调用与存储调用
const handleTimeout = 30 * time.Second

// Bot Telegram 聊天适配层
//
// 把命令和按钮点击翻译成会话管理器调用并渲染结果。
// 确认流程的待确认状态保存在 confirms 中，核心不感知。
type Bot struct {
	api      *tgbotapi.BotAPI
	sessions *service.SessionManager
	confirms storage.ConfirmationRepository
	pool     *pool.WorkerPool
	metrics  *monitoring.Metrics
	log      *zap.Logger

	pollTimeout int
}

// New 创建 Telegram 机器人
func New(
	cfg config.TelegramConfig,
	sessions *service.SessionManager,
	confirms storage.ConfirmationRepository,
	dispatch *pool.WorkerPool,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug

	b := &Bot{
		api:         api,
		sessions:    sessions,
		confirms:    confirms,
		pool:        dispatch,
		metrics:     metrics,
		log:         log,
		pollTimeout: cfg.PollTimeout,
	}
	dispatch.SetPanicHook(func() { metrics.PanicsTotal.Inc() })
	return b, nil
}

// Username 返回机器人的 Telegram 用户名
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run 启动长轮询循环，直到 ctx 取消。
//
// 每条更新经协程池分发；ctx 取消后停止接收新更新，
// 在途任务允许跑完，避免存储停在半应用状态。
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	b.pool.Start(ctx)
	b.log.Info("telegram polling started", zap.String("username", b.Username()))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.pool.Stop()
			b.log.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.pool.Stop()
				return nil
			}
			b.dispatch(update)
		}
	}
}

// dispatch 把更新提交给协程池处理
func (b *Bot) dispatch(update tgbotapi.Update) {
	b.pool.Submit(func() {
		// 刻意不挂在轮询 ctx 下：传输断开时在途操作照常完成
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		b.handleUpdate(ctx, update)
	})
}

// handleUpdate 路由单条更新
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// send 发送消息并记录发送失败
func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("failed to send telegram message", zap.Error(err))
		b.metrics.ErrorsTotal.WithLabelValues("telegram_send").Inc()
	}
}

// reply 发送 Markdown 文本回复
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

// edit 编辑已有消息为 Markdown 文本
func (b *Bot) edit(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

// editPlain 编辑已有消息为纯文本（用于包含任意外部输入的正文）
func (b *Bot) editPlain(chatID int64, messageID int, text string) {
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}
