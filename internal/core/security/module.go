package security

import (
	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/core/identity"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("security",
		fx.Provide(ProvideProvider),
	)
}

// ProvideProvider 由节点身份签发传输层证书并构建 TLS 配置源
func ProvideProvider(ident *identity.Identity) (*Provider, error) {
	cert, err := GenerateCertificate(ident)
	if err != nil {
		return nil, err
	}
	return NewProvider(cert), nil
}
