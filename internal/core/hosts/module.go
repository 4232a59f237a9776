package hosts

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("hosts",
		fx.Provide(ProvidePolicy),
		fx.Provide(ProvideStore),
	)
}

// ProvidePolicy 从配置构建出站策略
func ProvidePolicy(cfg *config.Config) (*Policy, error) {
	return NewPolicy(cfg.Net)
}

// ProvideStore 创建地址存储并装入初始地址
//
// 种子地址进入候选池；配置的对外通告地址登记为自身地址。
// 手动对等节点不进池，由手动管理器直连（见 DESIGN.md）。
func ProvideStore(cfg *config.Config, policy *Policy) (*Store, error) {
	s := NewStore(policy)

	external, err := types.ParseAddresses(cfg.Net.ExternalAddrs)
	if err != nil {
		return nil, fmt.Errorf("external_addrs: %w", err)
	}
	s.AddOwn(external...)

	seeds, err := types.ParseAddresses(cfg.Net.Seeds)
	if err != nil {
		return nil, fmt.Errorf("seeds: %w", err)
	}
	for _, seed := range seeds {
		s.Upsert(seed, types.ProvenanceSeed)
	}

	return s, nil
}
