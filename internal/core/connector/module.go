package connector

import (
	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/handshake"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/liveness"
	"github.com/overmesh/go-overmesh/internal/core/metrics"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/transport"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("connector",
		fx.Provide(ProvideConnector),
	)
}

// connectorInput 升级器依赖
type connectorInput struct {
	fx.In

	Config     *config.Config
	Transports *transport.Registry
	Registry   *session.Registry
	Store      *hosts.Store
	Liveness   *liveness.Service
	Metrics    *metrics.Metrics
	Handshake  handshake.Config
}

// ProvideConnector 提供连接升级器
func ProvideConnector(input connectorInput) *Connector {
	return New(
		input.Transports,
		input.Registry,
		input.Store,
		input.Liveness,
		input.Metrics,
		input.Handshake,
		input.Config.Net.OutboundConnectTimeout,
	)
}
