package transport

import (
	"context"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/security"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 装配全部传输实现
func ProvideRegistry(cfg *config.Config, tlsProvider *security.Provider) *Registry {
	return NewRegistry(cfg.Transport, tlsProvider)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry *Registry
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Registry.Close()
		},
	})
}
