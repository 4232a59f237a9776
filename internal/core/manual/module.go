package manual

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("manual",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// managerInput 管理器依赖
type managerInput struct {
	fx.In

	Config    *config.Config
	Connector *connector.Connector

	// OnEvent 槽位放弃事件的上报出口，由门面注入
	OnEvent types.SessionEventCallback `optional:"true"`
}

// ProvideManager 提供手动管理器
func ProvideManager(input managerInput) (*Manager, error) {
	peers, err := types.ParseAddresses(input.Config.Net.Peers)
	if err != nil {
		return nil, fmt.Errorf("peers: %w", err)
	}
	return NewManager(peers, input.Config.Net.ManualAttemptLimit,
		input.Connector, input.OnEvent), nil
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
