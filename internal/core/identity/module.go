package identity

import (
	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}

// ProvideIdentity 按配置加载节点身份
func ProvideIdentity(cfg *config.Config) (*Identity, error) {
	return Load(cfg.Identity.KeyFile)
}
