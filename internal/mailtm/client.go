package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/bot/internal/config"
	"tempmail/bot/internal/domain"
)

var (
	// ErrDomainUnavailable 提供方暂时没有可用域名
	ErrDomainUnavailable = errors.New("no provider domain available")
	// ErrAddressTaken 地址已被占用或被提供方拒绝（HTTP 422）
	ErrAddressTaken = errors.New("address rejected by provider")
)

// APIError 表示提供方返回的非预期状态码。
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider %s failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client 封装 mail.tm 风格的临时邮箱 REST API。
//
// 无状态，纯请求/响应；不做重试，重试策略由调用方决定。
// 所有请求经过限流器并受统一超时约束。
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient 创建提供方客户端
func NewClient(cfg config.ProviderConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.Burst),
		log:     log,
	}
}

// ========== 线上数据结构 ==========

type wireDomain struct {
	Domain string `json:"domain"`
}

// domainEnvelope 兼容裸数组与 hydra 封套两种响应格式
type domainEnvelope struct {
	Member []wireDomain `json:"hydra:member"`
}

type wireAccount struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type wireToken struct {
	Token string `json:"token"`
}

type wireAddress struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type wireMessageSummary struct {
	ID        string      `json:"id"`
	From      wireAddress `json:"from"`
	Subject   string      `json:"subject"`
	Intro     string      `json:"intro"`
	CreatedAt time.Time   `json:"createdAt"`
}

type messageEnvelope struct {
	Member []wireMessageSummary `json:"hydra:member"`
}

type wireMessage struct {
	ID        string       `json:"id"`
	From      wireAddress  `json:"from"`
	Subject   string       `json:"subject"`
	Text      string       `json:"text"`
	HTML      flexibleHTML `json:"html"`
	CreatedAt time.Time    `json:"createdAt"`
}

// flexibleHTML 兼容字符串与字符串数组两种 html 字段格式
type flexibleHTML string

func (h *flexibleHTML) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*h = ""
		return nil
	}
	if data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*h = flexibleHTML(strings.Join(parts, "\n"))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*h = flexibleHTML(s)
	return nil
}

// ========== API 操作 ==========

// Domains 获取当前可用的邮箱域名列表。
//
// 任何传输错误、格式错误或空结果都返回空切片而不报错，
// 调用方把空列表视作"暂时不可用"。
func (c *Client) Domains(ctx context.Context) []string {
	body, err := c.doJSON(ctx, http.MethodGet, "/domains", nil, "")
	if err != nil {
		c.log.Warn("failed to fetch provider domains", zap.Error(err))
		return nil
	}

	var members []wireDomain
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &members); err != nil {
			c.log.Warn("unexpected domains payload", zap.Error(err))
			return nil
		}
	} else {
		var envelope domainEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			c.log.Warn("unexpected domains payload", zap.Error(err))
			return nil
		}
		members = envelope.Member
	}

	domains := make([]string, 0, len(members))
	for _, m := range members {
		if m.Domain == "" {
			continue
		}
		if err := domain.ValidateDomain(m.Domain); err != nil {
			c.log.Warn("provider returned malformed domain", zap.String("domain", m.Domain))
			continue
		}
		domains = append(domains, m.Domain)
	}
	return domains
}

// CreateAccount 创建新的临时邮箱账户并签发访问令牌。
//
// username 和 domainName 均可留空：域名取 Domains() 的第一个，
// 用户名随机生成。创建与签发令牌两步都成功操作才算成功。
// 422 响应映射为 ErrAddressTaken，与一般传输失败可区分。
func (c *Client) CreateAccount(ctx context.Context, username, domainName string) (*domain.MailboxRecord, error) {
	if domainName == "" {
		available := c.Domains(ctx)
		if len(available) == 0 {
			return nil, ErrDomainUnavailable
		}
		domainName = available[0]
	}

	if username == "" {
		username = randomLocalPart()
	} else {
		username = strings.ToLower(username)
		if err := domain.ValidateLocalPart(username); err != nil {
			return nil, err
		}
	}

	address := fmt.Sprintf("%s@%s", username, domainName)
	// 提供方要求密码但本系统不复用它，一次性随机值即可
	password := uuid.NewString()

	createPayload := map[string]string{"address": address, "password": password}
	body, err := c.doJSON(ctx, http.MethodPost, "/accounts", createPayload, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("create %s: %w", address, ErrAddressTaken)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	var account wireAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("decode account payload: %w", err)
	}

	tokenPayload := map[string]string{"address": account.Address, "password": password}
	body, err = c.doJSON(ctx, http.MethodPost, "/token", tokenPayload, "")
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	var token wireToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("provider returned empty token for %s", account.Address)
	}

	return &domain.MailboxRecord{
		Address:   account.Address,
		AccountID: account.ID,
		Token:     token.Token,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ListMessages 拉取账户收件箱的邮件摘要。
//
// 任何错误（包括 404，账户已被提供方清除）都返回空切片，
// 在这一层与"没有邮件"不可区分；是否清理本地记录由上层决定。
func (c *Client) ListMessages(ctx context.Context, accountID, token string) []domain.MessageSummary {
	path := fmt.Sprintf("/accounts/%s/messages", accountID)
	body, err := c.doJSON(ctx, http.MethodGet, path, nil, token)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			c.log.Debug("account gone on provider side", zap.String("account_id", accountID))
		} else {
			c.log.Warn("failed to list messages", zap.String("account_id", accountID), zap.Error(err))
		}
		return nil
	}

	var members []wireMessageSummary
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &members); err != nil {
			c.log.Warn("unexpected messages payload", zap.Error(err))
			return nil
		}
	} else {
		var envelope messageEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			c.log.Warn("unexpected messages payload", zap.Error(err))
			return nil
		}
		members = envelope.Member
	}

	summaries := make([]domain.MessageSummary, 0, len(members))
	for _, m := range members {
		if m.ID == "" {
			continue
		}
		summaries = append(summaries, domain.MessageSummary{
			ID:         m.ID,
			From:       m.From.Address,
			Subject:    m.Subject,
			Intro:      m.Intro,
			ReceivedAt: m.CreatedAt,
		})
	}
	return summaries
}

// FetchMessage 拉取单封邮件的完整内容，任何错误返回 nil。
func (c *Client) FetchMessage(ctx context.Context, accountID, messageID, token string) *domain.MessageContent {
	path := fmt.Sprintf("/accounts/%s/messages/%s", accountID, messageID)
	body, err := c.doJSON(ctx, http.MethodGet, path, nil, token)
	if err != nil {
		c.log.Warn("failed to fetch message",
			zap.String("account_id", accountID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return nil
	}

	var msg wireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.log.Warn("unexpected message payload", zap.Error(err))
		return nil
	}

	return &domain.MessageContent{
		ID:         msg.ID,
		From:       msg.From.Address,
		Subject:    msg.Subject,
		Text:       msg.Text,
		HTML:       string(msg.HTML),
		ReceivedAt: msg.CreatedAt,
	}
}

// DeleteAccount 删除提供方账户。
//
// 404 视为成功：目标状态"账户不存在"已经成立，删除幂等。
func (c *Client) DeleteAccount(ctx context.Context, accountID, token string) error {
	path := fmt.Sprintf("/accounts/%s", accountID)
	_, err := c.doJSON(ctx, http.MethodDelete, path, nil, token)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			c.log.Debug("account already gone on provider side", zap.String("account_id", accountID))
			return nil
		}
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// ========== HTTP 基础设施 ==========

// doJSON 发送一次 JSON 请求并返回响应体。
//
// 非 2xx 状态码返回 *APIError；网络错误原样返回（传输错误）。
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, token string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &APIError{
			Operation:  fmt.Sprintf("%s %s", method, path),
			StatusCode: resp.StatusCode,
			Body:       snippet,
		}
	}
	return body, nil
}

// randomLocalPart 生成低碰撞概率的随机邮箱前缀。
func randomLocalPart() string {
	return strings.Split(uuid.NewString(), "-")[0]
}
