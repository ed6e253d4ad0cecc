package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"tempmail/bot/internal/storage"
)

// ProviderPinger 健康检查对提供方的最小依赖。
type ProviderPinger interface {
	Domains(ctx context.Context) []string
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health   healthcheck.Handler
	store    storage.Store
	provider ProviderPinger
	logger   *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, provider ProviderPinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:   healthcheck.NewHandler(),
		store:    store,
		provider: provider,
		logger:   logger,
	}
	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 会话存储连通性
	hc.health.AddLivenessCheck("session-store", func() error {
		return hc.store.Health()
	})

	// 提供方可达性：域名列表为空视为降级而非失败，
	// 只在就绪检查中体现
	hc.health.AddReadinessCheck("mail-provider", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if len(hc.provider.Domains(ctx)) == 0 {
			hc.logger.Warn("mail provider reports no available domains")
		}
		return nil
	})
}

// LiveHandler 返回存活检查处理器
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 返回就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}
