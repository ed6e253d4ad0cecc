package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 机器人监控指标
type Metrics struct {
	// 命令指标
	CommandsTotal  *prometheus.CounterVec
	CallbacksTotal *prometheus.CounterVec

	// 会话操作指标
	SessionOpsTotal   *prometheus.CounterVec
	SessionOpDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesProvisioned prometheus.Counter
	MailboxesReplaced    prometheus.Counter
	MailboxesDeleted     prometheus.Counter
	InboxChecks          prometheus.Counter
	MessagesFetched      prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标（promauto 自动注册到默认 Registry）
func NewMetrics() *Metrics {
	return &Metrics{
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempmail_bot_commands_total",
			Help: "Total number of chat commands handled",
		}, []string{"command"}),
		CallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempmail_bot_callbacks_total",
			Help: "Total number of inline button callbacks handled",
		}, []string{"action"}),
		SessionOpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempmail_bot_session_ops_total",
			Help: "Total number of session manager operations by outcome",
		}, []string{"op", "outcome"}),
		SessionOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tempmail_bot_session_op_duration_seconds",
			Help:    "Duration of session manager operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		MailboxesProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempmail_bot_mailboxes_provisioned_total",
			Help: "Total number of mailboxes provisioned",
		}),
		MailboxesReplaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempmail_bot_mailboxes_replaced_total",
			Help: "Total number of mailboxes replaced",
		}),
		MailboxesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempmail_bot_mailboxes_deleted_total",
			Help: "Total number of mailboxes deleted",
		}),
		InboxChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempmail_bot_inbox_checks_total",
			Help: "Total number of inbox checks",
		}),
		MessagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempmail_bot_messages_fetched_total",
			Help: "Total number of message bodies fetched",
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempmail_bot_errors_total",
			Help: "Total number of errors by stage",
		}, []string{"stage"}),
		PanicsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempmail_bot_panics_total",
			Help: "Total number of recovered panics in update handlers",
		}),
	}
}

// ObserveSessionOp 记录一次会话操作的结果与耗时
func (m *Metrics) ObserveSessionOp(op, outcome string, start time.Time) {
	m.SessionOpsTotal.WithLabelValues(op, outcome).Inc()
	m.SessionOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// HTTPHandler 返回 Prometheus 指标端点处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
