package liveness

import (
	"context"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/metrics"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("liveness",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 提供心跳服务（真实时钟）
func ProvideService(cfg *config.Config, m *metrics.Metrics) *Service {
	return New(cfg.Liveness, nil, m)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Service *Service
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			input.Service.Stop()
			return nil
		},
	})
}
