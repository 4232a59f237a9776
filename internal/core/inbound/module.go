package inbound

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/transport"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("inbound",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供入站管理器
func ProvideManager(cfg *config.Config, transports *transport.Registry,
	conn *connector.Connector) (*Manager, error) {

	addrs, err := types.ParseAddresses(cfg.Net.Inbound)
	if err != nil {
		return nil, fmt.Errorf("inbound: %w", err)
	}
	return NewManager(addrs, transports, conn), nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Manager *Manager
	Store   *hosts.Store
}

// registerLifecycle 注册生命周期
//
// 启动后把实际绑定的监听地址登记为自身地址，出站候选选择据此
// 排除自连。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Manager.Start()
			input.Store.AddOwn(input.Manager.ListenAddrs()...)
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Manager.Stop()
			return nil
		},
	})
}
