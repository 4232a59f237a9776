package outbound

import (
	"context"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/session"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("outbound",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供出站管理器
func ProvideManager(cfg *config.Config, conn *connector.Connector,
	store *hosts.Store, reg *session.Registry) *Manager {
	return NewManager(cfg.Net.OutboundConnections, conn, store, reg)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Manager *Manager
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Manager.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Manager.Stop()
			return nil
		},
	})
}
