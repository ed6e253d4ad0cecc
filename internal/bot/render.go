package bot

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"tempmail/bot/internal/domain"
)

// Telegram 单条消息上限为 4096 字符，留出头部余量
const (
	maxRenderedRunes  = 4000
	truncateKeepRunes = 3900
	truncationMarker  = "\n\n... (Message truncated)"
)

// renderMessage 把邮件内容渲染为纯文本。
//
// 正文是任意外部输入，可能含未配对的 Markdown 字符，
// 因此整条消息不走解析模式发送。优先纯文本正文，
// 只有 HTML 时剥掉标签后展示。
func renderMessage(content *domain.MessageContent) string {
	var body string
	switch {
	case content.HasText():
		body = content.Text
	case content.HasHTML():
		body = StripHTML(content.HTML)
	default:
		body = "(This message has no content.)"
	}

	text := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", content.From, content.Subject, body)
	return Truncate(text)
}

// StripHTML 去除 HTML 标签，返回可读的纯文本。
//
// script/style 的内容整体丢弃，块级标签折成换行，
// 连续空白折叠为单个空格。
func StripHTML(raw string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(raw))

	var sb strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skipDepth++
				continue
			}
			if isBlockTag(tag) {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if isBlockTag(tag) {
				sb.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "br" || tag == "hr" {
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "br", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6", "table", "blockquote":
		return true
	}
	return false
}

// collapseWhitespace 把行内连续空白折叠为单个空格，保留段落换行
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

// Truncate 把超长文本裁剪到 Telegram 可发送的长度并追加截断标记
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxRenderedRunes {
		return s
	}
	return string(runes[:truncateKeepRunes]) + truncationMarker
}
