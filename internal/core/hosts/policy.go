package hosts

import (
	"fmt"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              Policy
// ============================================================================

// Policy 出站拨号策略
//
// 白名单之外的方案默认拒绝；开启混合后，入站监听所接受的方案
// 也可以出站拨号。本地网络地址默认拒绝。
type Policy struct {
	allowed  map[types.Scheme]struct{}
	inbound  map[types.Scheme]struct{}
	mixing   bool
	localnet bool
}

// NewPolicy 从连接层配置构建策略
func NewPolicy(cfg config.NetConfig) (*Policy, error) {
	p := &Policy{
		allowed:  make(map[types.Scheme]struct{}),
		inbound:  make(map[types.Scheme]struct{}),
		mixing:   cfg.TransportMixing,
		localnet: cfg.Localnet,
	}

	for _, raw := range cfg.AllowedTransports {
		scheme, err := types.ParseScheme(raw)
		if err != nil {
			return nil, fmt.Errorf("allowed_transports: %w", err)
		}
		p.allowed[scheme] = struct{}{}
	}

	for _, raw := range cfg.Inbound {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("inbound: %w", err)
		}
		p.inbound[addr.Scheme] = struct{}{}
	}

	return p, nil
}

// CheckDialable 检查地址是否允许出站拨号
//
// 按策略返回 ErrSchemeNotWhitelisted、ErrTransportMixingDenied
// 或 ErrLocalnetDenied，允许时返回 nil。
func (p *Policy) CheckDialable(addr types.Address) error {
	if _, ok := p.allowed[addr.Scheme]; !ok {
		if _, accepted := p.inbound[addr.Scheme]; accepted {
			if !p.mixing {
				return fmt.Errorf("%w: %s", types.ErrTransportMixingDenied, addr.Scheme)
			}
		} else {
			return fmt.Errorf("%w: %s", types.ErrSchemeNotWhitelisted, addr.Scheme)
		}
	}

	if !p.localnet && addr.IsLocalnet() {
		return fmt.Errorf("%w: %s", types.ErrLocalnetDenied, addr)
	}
	return nil
}

// Dialable 检查地址是否允许出站拨号
func (p *Policy) Dialable(addr types.Address) bool {
	return p.CheckDialable(addr) == nil
}
