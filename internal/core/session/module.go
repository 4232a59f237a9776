package session

import (
	"context"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/internal/core/metrics"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 提供会话注册表
func ProvideRegistry(ident *identity.Identity, m *metrics.Metrics) *Registry {
	return NewRegistry(ident.ID(), m)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry *Registry
}

// registerLifecycle 注册生命周期
//
// 停止时销毁全部会话，销毁钩子完成出表与事件分发。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Registry.Close()
		},
	})
}
