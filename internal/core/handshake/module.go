package handshake

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("handshake",
		fx.Provide(ProvideConfig),
	)
}

// ProvideConfig 组装本节点的握手参数
//
// nonce 每进程一个，三个会话管理器共用同一份参数。
func ProvideConfig(cfg *config.Config, ident *identity.Identity) (Config, error) {
	external, err := types.ParseAddresses(cfg.Net.ExternalAddrs)
	if err != nil {
		return Config{}, fmt.Errorf("external_addrs: %w", err)
	}

	return Config{
		Ident:         ident,
		Version:       types.ProtocolVersion,
		Nonce:         NewNonce(),
		ExternalAddrs: external,
		Timeout:       cfg.Net.ChannelHandshakeTimeout,
	}, nil
}
