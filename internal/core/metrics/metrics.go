// Package metrics 提供连接层的聚合指标
//
// 传输/握手错误在槽位循环内就地恢复，不上抛；上层只通过这里的
// 聚合指标观察它们。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 连接层指标集
type Metrics struct {
	// DialsTotal 拨号总数（按方案）
	DialsTotal *prometheus.CounterVec

	// DialFailures 拨号失败数（按方案）
	DialFailures *prometheus.CounterVec

	// HandshakeFailures 握手失败数（按原因）
	HandshakeFailures *prometheus.CounterVec

	// SessionsActive 活跃会话数（按方向）
	SessionsActive *prometheus.GaugeVec

	// SessionsTotal 历史会话总数（按方向）
	SessionsTotal *prometheus.CounterVec

	// HeartbeatTimeouts 心跳超时驱逐数
	HeartbeatTimeouts prometheus.Counter

	// BroadcastErrors 广播单会话失败数
	BroadcastErrors prometheus.Counter
}

// New 创建指标集并注册到 reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "dials_total",
			Help:      "Total outbound dial attempts by scheme.",
		}, []string{"scheme"}),
		DialFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "dial_failures_total",
			Help:      "Failed outbound dial attempts by scheme.",
		}, []string{"scheme"}),
		HandshakeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "handshake_failures_total",
			Help:      "Failed handshakes by reason.",
		}, []string{"reason"}),
		SessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "sessions_active",
			Help:      "Currently registered sessions by direction.",
		}, []string{"direction"}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "sessions_total",
			Help:      "Total registered sessions by direction.",
		}, []string{"direction"}),
		HeartbeatTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "heartbeat_timeouts_total",
			Help:      "Sessions evicted after missing heartbeat pongs.",
		}),
		BroadcastErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "overmesh",
			Subsystem: "net",
			Name:      "broadcast_errors_total",
			Help:      "Per-session broadcast send failures.",
		}),
	}
}

// Nop 创建不对外注册的指标集（测试用）
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
