package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/mailtm"
	"tempmail/bot/internal/service"
	"tempmail/bot/internal/storage"
)

// 回调数据前缀（Telegram 限制 callback data 最长 64 字节）
const (
	cbConfirmReplace = "confirm_replace:"
	cbCancelReplace  = "cancel_replace"
	cbConfirmDelete  = "confirm_delete:"
	cbCancelDelete   = "cancel_delete"
	cbViewMessage    = "view:"
)

const welcomeText = "Hello! I'm your Temp Mail Bot. I can generate temporary email addresses for you.\n\n" +
	"Use /generate to get a new temporary email address.\n" +
	"Use /inbox to check for new messages in your current temporary email's inbox.\n" +
	"Use /delete to delete your current temporary email address."

// handleCommand 处理斜杠命令
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()
	b.metrics.CommandsTotal.WithLabelValues(command).Inc()

	id := domain.Identity(msg.Chat.ID)
	switch command {
	case "start":
		b.reply(msg.Chat.ID, welcomeText)
	case "generate":
		b.handleGenerate(ctx, id, strings.TrimSpace(msg.CommandArguments()))
	case "inbox":
		b.handleInbox(ctx, id)
	case "delete":
		b.handleDelete(ctx, id)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Use /start to see what I can do.")
	}
}

// handleGenerate 处理 /generate [prefix]
//
// 已有活跃邮箱时不静默覆盖：写入待确认状态并弹出
// Yes/No 按钮，只有确认回调才触发 Replace。
func (b *Bot) handleGenerate(ctx context.Context, id domain.Identity, prefix string) {
	chatID := int64(id)
	start := time.Now()

	result, err := b.sessions.Provision(ctx, id, prefix)
	if err != nil {
		b.metrics.ObserveSessionOp("provision", "failed", start)
		b.reply(chatID, provisionFailureText(err))
		return
	}

	if result.Conflict {
		b.metrics.ObserveSessionOp("provision", "conflict", start)
		b.promptConfirmation(ctx, id, &storage.PendingConfirmation{
			Token:     uuid.NewString(),
			Action:    storage.ActionReplace,
			Address:   result.Record.Address,
			Prefix:    prefix,
			CreatedAt: time.Now().UTC(),
		})
		return
	}

	b.metrics.ObserveSessionOp("provision", "ok", start)
	b.metrics.MailboxesProvisioned.Inc()
	b.reply(chatID, provisionedText(result.Record.Address))
}

// handleInbox 处理 /inbox
func (b *Bot) handleInbox(ctx context.Context, id domain.Identity) {
	chatID := int64(id)
	start := time.Now()

	messages, err := b.sessions.CheckInbox(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveMailbox) {
			b.metrics.ObserveSessionOp("check_inbox", "no_mailbox", start)
			b.reply(chatID, "You don't have an active temporary email address. Use /generate to get one.")
			return
		}
		b.metrics.ObserveSessionOp("check_inbox", "failed", start)
		b.reply(chatID, "Sorry, I couldn't check your inbox right now. Please try again later.")
		return
	}

	b.metrics.ObserveSessionOp("check_inbox", "ok", start)
	b.metrics.InboxChecks.Inc()

	if len(messages) == 0 {
		b.reply(chatID, "Your inbox is empty.")
		return
	}

	for _, summary := range messages {
		text := fmt.Sprintf("*New Message*\nFrom: `%s`\nSubject: `%s`", summary.From, summary.Subject)
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("View message", cbViewMessage+summary.ID),
			),
		)
		b.send(msg)
	}
}

// handleDelete 处理 /delete，弹出确认按钮
func (b *Bot) handleDelete(ctx context.Context, id domain.Identity) {
	chatID := int64(id)

	record, err := b.sessions.Active(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveMailbox) {
			b.reply(chatID, "You don't have an active temporary email address to delete.")
			return
		}
		b.reply(chatID, "Sorry, something went wrong. Please try again later.")
		return
	}

	b.promptConfirmation(ctx, id, &storage.PendingConfirmation{
		Token:     uuid.NewString(),
		Action:    storage.ActionDelete,
		Address:   record.Address,
		CreatedAt: time.Now().UTC(),
	})
}

// promptConfirmation 写入待确认状态并发送确认键盘
func (b *Bot) promptConfirmation(ctx context.Context, id domain.Identity, pending *storage.PendingConfirmation) {
	chatID := int64(id)

	if err := b.confirms.PutConfirmation(ctx, id, pending); err != nil {
		b.log.Error("failed to store pending confirmation", zap.Int64("chat_id", chatID), zap.Error(err))
		b.metrics.ErrorsTotal.WithLabelValues("confirm_store").Inc()
		b.reply(chatID, "Sorry, something went wrong. Please try again later.")
		return
	}

	var text string
	var keyboard tgbotapi.InlineKeyboardMarkup
	switch pending.Action {
	case storage.ActionReplace:
		text = fmt.Sprintf(
			"You already have an active temporary email: `%s`. "+
				"Generating a new one will delete the old one. Are you sure you want to proceed?",
			pending.Address,
		)
		keyboard = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, generate new", cbConfirmReplace+pending.Token),
				tgbotapi.NewInlineKeyboardButtonData("No, keep current", cbCancelReplace),
			),
		)
	case storage.ActionDelete:
		text = fmt.Sprintf(
			"Are you sure you want to delete your current temporary email address: `%s`?",
			pending.Address,
		)
		keyboard = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, delete it", cbConfirmDelete+pending.Token),
				tgbotapi.NewInlineKeyboardButtonData("No, keep it", cbCancelDelete),
			),
		)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

// handleCallback 处理按钮回调
func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// 立即应答，消除客户端的加载态
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Debug("failed to answer callback query", zap.Error(err))
	}
	if query.Message == nil {
		return
	}

	id := domain.Identity(query.Message.Chat.ID)
	messageID := query.Message.MessageID
	data := query.Data

	switch {
	case strings.HasPrefix(data, cbConfirmReplace):
		b.metrics.CallbacksTotal.WithLabelValues("confirm_replace").Inc()
		b.confirmReplace(ctx, id, messageID, strings.TrimPrefix(data, cbConfirmReplace))
	case data == cbCancelReplace:
		b.metrics.CallbacksTotal.WithLabelValues("cancel_replace").Inc()
		_ = b.confirms.DeleteConfirmation(ctx, id)
		b.edit(int64(id), messageID, "New email generation cancelled. Your current email remains active.")
	case strings.HasPrefix(data, cbConfirmDelete):
		b.metrics.CallbacksTotal.WithLabelValues("confirm_delete").Inc()
		b.confirmDelete(ctx, id, messageID, strings.TrimPrefix(data, cbConfirmDelete))
	case data == cbCancelDelete:
		b.metrics.CallbacksTotal.WithLabelValues("cancel_delete").Inc()
		_ = b.confirms.DeleteConfirmation(ctx, id)
		b.edit(int64(id), messageID, "Deletion cancelled. Your temporary email address remains active.")
	case strings.HasPrefix(data, cbViewMessage):
		b.metrics.CallbacksTotal.WithLabelValues("view").Inc()
		b.viewMessage(ctx, id, messageID, strings.TrimPrefix(data, cbViewMessage))
	}
}

// takeConfirmation 取出并消费待确认状态；令牌不匹配视为过期按钮。
func (b *Bot) takeConfirmation(ctx context.Context, id domain.Identity, action, token string) bool {
	pending, err := b.confirms.GetConfirmation(ctx, id)
	if err != nil || pending.Action != action || pending.Token != token {
		return false
	}
	_ = b.confirms.DeleteConfirmation(ctx, id)
	return true
}

// confirmReplace 执行确认后的替换
func (b *Bot) confirmReplace(ctx context.Context, id domain.Identity, messageID int, token string) {
	chatID := int64(id)

	pending, err := b.confirms.GetConfirmation(ctx, id)
	if err != nil || pending.Action != storage.ActionReplace || pending.Token != token {
		b.edit(chatID, messageID, "This confirmation has expired. Please run /generate again.")
		return
	}
	_ = b.confirms.DeleteConfirmation(ctx, id)

	start := time.Now()
	record, err := b.sessions.Replace(ctx, id, pending.Prefix)
	if err != nil {
		b.metrics.ObserveSessionOp("replace", "failed", start)
		b.edit(chatID, messageID, provisionFailureText(err))
		return
	}

	b.metrics.ObserveSessionOp("replace", "ok", start)
	b.metrics.MailboxesReplaced.Inc()
	b.edit(chatID, messageID, provisionedText(record.Address))
}

// confirmDelete 执行确认后的删除
func (b *Bot) confirmDelete(ctx context.Context, id domain.Identity, messageID int, token string) {
	chatID := int64(id)

	if !b.takeConfirmation(ctx, id, storage.ActionDelete, token) {
		b.edit(chatID, messageID, "This confirmation has expired. Please run /delete again.")
		return
	}

	start := time.Now()
	outcome, err := b.sessions.Delete(ctx, id)
	if err != nil {
		b.metrics.ObserveSessionOp("delete", "failed", start)
		b.edit(chatID, messageID,
			"Failed to delete your temporary email address. The mailbox may still exist — please try again.")
		return
	}

	switch outcome {
	case service.OutcomeNothingToDelete:
		b.metrics.ObserveSessionOp("delete", "nothing", start)
		b.edit(chatID, messageID, "No active email to delete or session expired.")
	default:
		b.metrics.ObserveSessionOp("delete", "ok", start)
		b.metrics.MailboxesDeleted.Inc()
		b.edit(chatID, messageID, "Your temporary email address has been deleted successfully.")
	}
}

// viewMessage 拉取并渲染单封邮件
func (b *Bot) viewMessage(ctx context.Context, id domain.Identity, messageID int, providerMessageID string) {
	chatID := int64(id)
	start := time.Now()

	content, err := b.sessions.FetchMessage(ctx, id, providerMessageID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveMailbox) {
			b.metrics.ObserveSessionOp("fetch_message", "no_mailbox", start)
			b.edit(chatID, messageID, "Session expired or no active email. Please generate a new email.")
			return
		}
		b.metrics.ObserveSessionOp("fetch_message", "failed", start)
		b.edit(chatID, messageID,
			"Could not retrieve message content. It might have expired or been deleted by the provider.")
		return
	}

	b.metrics.ObserveSessionOp("fetch_message", "ok", start)
	b.metrics.MessagesFetched.Inc()
	b.editPlain(chatID, messageID, renderMessage(content))
}

// provisionFailureText 把创建失败映射成用户可读的提示
func provisionFailureText(err error) string {
	switch {
	case errors.Is(err, mailtm.ErrDomainUnavailable):
		return "Could not fetch available domains from the mail provider. Please try again later."
	case errors.Is(err, mailtm.ErrAddressTaken):
		return "Could not create that address. It might already exist or the prefix is invalid. Try generating a new one."
	case errors.Is(err, domain.ErrInvalidLocalPart), errors.Is(err, domain.ErrLocalPartTooLong):
		return "That prefix is not valid. Use 3-64 letters, digits, dots, dashes or underscores."
	default:
		return "Sorry, I couldn't generate a temporary email address at this time. Please try again later."
	}
}

// provisionedText 渲染创建成功提示
func provisionedText(address string) string {
	return fmt.Sprintf(
		"Your new temporary email address is:\n`%s`\n\n"+
			"Use /inbox to check for messages. "+
			"Remember, this is temporary and emails are usually deleted by the provider after some time.",
		address,
	)
}
