package domain

import "time"

// MessageSummary 表示收件箱列表中的一封邮件摘要。
//
// ID 是提供方分配的邮件标识，后续通过它拉取正文。
type MessageSummary struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Intro      string    `json:"intro,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// MessageContent 表示一封邮件的完整内容。
//
// Text 与 HTML 至少有一个非空；渲染层根据 HasHTML/HasText
// 决定是否需要剥离标记。
type MessageContent struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Text       string    `json:"text,omitempty"`
	HTML       string    `json:"html,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// HasText 报告提供方是否返回了纯文本正文。
func (m *MessageContent) HasText() bool { return m.Text != "" }

// HasHTML 报告提供方是否返回了 HTML 正文。
func (m *MessageContent) HasHTML() bool { return m.HTML != "" }
