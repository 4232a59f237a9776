package overmesh

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/handshake"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/internal/core/inbound"
	"github.com/overmesh/go-overmesh/internal/core/liveness"
	"github.com/overmesh/go-overmesh/internal/core/manual"
	"github.com/overmesh/go-overmesh/internal/core/metrics"
	"github.com/overmesh/go-overmesh/internal/core/outbound"
	"github.com/overmesh/go-overmesh/internal/core/security"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/transport"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// fxApp 门面持有的应用生命周期
type fxApp interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// buildFxApp 组装节点的全部内部模块
//
// 模块按依赖分层加载；生命周期钩子的注册顺序决定启动顺序：
// 入站先绑定监听（并登记自身地址），槽位循环随后启动。
func buildFxApp(cfg *config.Config, node *Node) (*fx.App, error) {
	app := fx.New(
		// 配置注入
		fx.Supply(cfg),

		// 基础组件
		identity.Module(),
		security.Module(),
		metrics.Module(),

		// 连接层状态
		hosts.Module(),
		session.Module(),
		handshake.Module(),

		// 传输与升级
		transport.Module(),
		liveness.Module(),
		connector.Module(),

		// 手动槽位事件的上报出口
		fx.Provide(func() types.SessionEventCallback { return node.dispatchEvent }),

		// 会话管理器：入站先启动，槽位循环随后
		inbound.Module(),
		outbound.Module(),
		manual.Module(),

		// 门面组件注入
		fx.Invoke(injectNodeComponents(node)),

		// 禁用 Fx 自身的日志输出
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// nodeInjectParams 门面组件注入参数
type nodeInjectParams struct {
	fx.In

	Ident     *identity.Identity
	Registry  *session.Registry
	Store     *hosts.Store
	Connector *connector.Connector
	Inbound   *inbound.Manager
	Outbound  *outbound.Manager
	Manual    *manual.Manager
	PromReg   *prometheus.Registry
}

// injectNodeComponents 把内部组件回填到门面
func injectNodeComponents(node *Node) func(nodeInjectParams) {
	return func(p nodeInjectParams) {
		node.ident = p.Ident
		node.registry = p.Registry
		node.store = p.Store
		node.connector = p.Connector
		node.inbound = p.Inbound
		node.outbound = p.Outbound
		node.manual = p.Manual
		node.promReg = p.PromReg
	}
}
