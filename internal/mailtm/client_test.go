package mailtm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/bot/internal/config"
)

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(config.ProviderConfig{
		BaseURL:     baseURL,
		Timeout:     timeout,
		RequestRate: 1000,
		Burst:       1000,
	}, zap.NewNop())
}

func TestClient_Domains(t *testing.T) {
	t.Run("hydra 封套格式解析成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/domains", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"hydra:member":[{"domain":"mail.tm"},{"domain":"temp.example.com"}]}`))
		}))
		defer srv.Close()

		domains := newTestClient(srv.URL, 5*time.Second).Domains(context.Background())
		assert.Equal(t, []string{"mail.tm", "temp.example.com"}, domains)
	})

	t.Run("裸数组格式解析成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"domain":"mail.tm"}]`))
		}))
		defer srv.Close()

		domains := newTestClient(srv.URL, 5*time.Second).Domains(context.Background())
		assert.Equal(t, []string{"mail.tm"}, domains)
	})

	t.Run("传输错误返回空切片而不报错", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		domains := newTestClient(srv.URL, 5*time.Second).Domains(context.Background())
		assert.Empty(t, domains)
	})

	t.Run("畸形响应返回空切片", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"unexpected":`))
		}))
		defer srv.Close()

		domains := newTestClient(srv.URL, 5*time.Second).Domains(context.Background())
		assert.Empty(t, domains)
	})
}

func TestClient_CreateAccount(t *testing.T) {
	t.Run("创建账户并签发令牌成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/domains":
				_, _ = w.Write([]byte(`{"hydra:member":[{"domain":"mail.tm"}]}`))
			case "/accounts":
				var payload map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.NotEmpty(t, payload["password"])
				_ = json.NewEncoder(w).Encode(map[string]string{
					"id":      "acct-1",
					"address": payload["address"],
				})
			case "/token":
				_ = json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
			default:
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		record, err := newTestClient(srv.URL, 5*time.Second).CreateAccount(context.Background(), "", "")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", record.AccountID)
		assert.Equal(t, "jwt-token", record.Token)
		assert.Contains(t, record.Address, "@mail.tm")
		assert.WithinDuration(t, time.Now().UTC(), record.CreatedAt, 5*time.Second)
	})

	t.Run("无可用域名时不发起创建请求", func(t *testing.T) {
		var accountCalls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/domains":
				_, _ = w.Write([]byte(`{"hydra:member":[]}`))
			case "/accounts":
				accountCalls.Add(1)
			}
		}))
		defer srv.Close()

		record, err := newTestClient(srv.URL, 5*time.Second).CreateAccount(context.Background(), "", "")
		assert.Nil(t, record)
		assert.ErrorIs(t, err, ErrDomainUnavailable)
		assert.Equal(t, int64(0), accountCalls.Load())
	})

	t.Run("422 映射为地址冲突错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/accounts" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"detail":"address already used"}`))
				return
			}
			t.Fatalf("unexpected path %s", r.URL.Path)
		}))
		defer srv.Close()

		record, err := newTestClient(srv.URL, 5*time.Second).CreateAccount(context.Background(), "taken", "mail.tm")
		assert.Nil(t, record)
		assert.ErrorIs(t, err, ErrAddressTaken)
	})

	t.Run("非法自定义前缀提前拦截", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer srv.Close()

		record, err := newTestClient(srv.URL, 5*time.Second).CreateAccount(context.Background(), "a..b", "mail.tm")
		assert.Nil(t, record)
		assert.Error(t, err)
		assert.Equal(t, int64(0), calls.Load())
	})

	t.Run("令牌签发失败则整体失败", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/accounts":
				_ = json.NewEncoder(w).Encode(map[string]string{"id": "acct-1", "address": "x@mail.tm"})
			case "/token":
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer srv.Close()

		record, err := newTestClient(srv.URL, 5*time.Second).CreateAccount(context.Background(), "user1", "mail.tm")
		assert.Nil(t, record)
		assert.Error(t, err)

		var apiErr *APIError
		assert.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("网络超时是传输错误而非挂起", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		start := time.Now()
		record, err := newTestClient(srv.URL, 50*time.Millisecond).CreateAccount(context.Background(), "user1", "mail.tm")
		assert.Nil(t, record)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrAddressTaken)
		assert.Less(t, time.Since(start), 250*time.Millisecond)
	})
}

func TestClient_ListMessages(t *testing.T) {
	t.Run("返回邮件摘要列表", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/accounts/acct-1/messages", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"hydra:member":[
				{"id":"m1","from":{"address":"a@b.c"},"subject":"hello","intro":"hi","createdAt":"2026-08-30T10:00:00+00:00"},
				{"id":"","from":{"address":"skip@me"},"subject":"no id"}
			]}`))
		}))
		defer srv.Close()

		msgs := newTestClient(srv.URL, 5*time.Second).ListMessages(context.Background(), "acct-1", "tok")
		require.Len(t, msgs, 1)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, "a@b.c", msgs[0].From)
		assert.Equal(t, "hello", msgs[0].Subject)
	})

	t.Run("404 与空收件箱同样返回空切片", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		msgs := newTestClient(srv.URL, 5*time.Second).ListMessages(context.Background(), "gone", "tok")
		assert.Empty(t, msgs)
	})
}

func TestClient_FetchMessage(t *testing.T) {
	t.Run("html 数组格式合并为单个字符串", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/accounts/acct-1/messages/m1", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":"m1","from":{"address":"a@b.c"},"subject":"s","text":"","html":["<p>one</p>","<p>two</p>"]}`))
		}))
		defer srv.Close()

		msg := newTestClient(srv.URL, 5*time.Second).FetchMessage(context.Background(), "acct-1", "m1", "tok")
		require.NotNil(t, msg)
		assert.False(t, msg.HasText())
		assert.True(t, msg.HasHTML())
		assert.Equal(t, "<p>one</p>\n<p>two</p>", msg.HTML)
	})

	t.Run("任何错误返回 nil", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		msg := newTestClient(srv.URL, 5*time.Second).FetchMessage(context.Background(), "acct-1", "m1", "tok")
		assert.Nil(t, msg)
	})
}

func TestClient_DeleteAccount(t *testing.T) {
	t.Run("204 删除成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/accounts/acct-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL, 5*time.Second).DeleteAccount(context.Background(), "acct-1", "tok")
		assert.NoError(t, err)
	})

	t.Run("404 视为幂等成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL, 5*time.Second).DeleteAccount(context.Background(), "acct-1", "tok")
		assert.NoError(t, err)
	})

	t.Run("其他状态码返回错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL, 5*time.Second).DeleteAccount(context.Background(), "acct-1", "tok")
		assert.Error(t, err)
	})
}
