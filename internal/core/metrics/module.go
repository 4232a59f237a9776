package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module 返回 Fx 模块
//
// 每个节点持有独立的 prometheus Registry，多节点共存（测试、
// 多子网进程）时互不冲突。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideRegistry),
		fx.Provide(ProvideMetrics),
	)
}

// ProvideRegistry 提供节点私有的指标注册表
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics 提供连接层指标集
func ProvideMetrics(reg *prometheus.Registry) *Metrics {
	return New(reg)
}
