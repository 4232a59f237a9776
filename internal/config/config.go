// Package config 提供 overmesh 配置管理层
//
// config 包负责：
// - 定义内部配置结构
// - 提供默认值
// - 配置校验
//
// 一个 Config 描述一个网络实例（例如共识网、同步网各自持有
// 一份）。上层应用为每个子网创建一个节点。
package config

import (
	"time"
)

// Config 内部配置结构
type Config struct {
	// LogFile 日志文件路径，为空时输出到 stderr
	LogFile string

	// Identity 身份配置
	Identity IdentityConfig

	// Net 连接层配置
	Net NetConfig

	// Transport 传输层配置
	Transport TransportConfig

	// Liveness 心跳配置
	Liveness LivenessConfig
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Net:       DefaultNetConfig(),
		Transport: DefaultTransportConfig(),
		Liveness:  DefaultLivenessConfig(),
	}
}

// ============================================================================
//                              身份配置
// ============================================================================

// IdentityConfig 身份配置
type IdentityConfig struct {
	// KeyFile 密钥文件路径，为空时自动生成新密钥（不落盘）
	KeyFile string
}

// DefaultIdentityConfig 默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{KeyFile: ""}
}

// ============================================================================
//                              连接层配置
// ============================================================================

// NetConfig 连接层配置
//
// 字段与外部配置文件的网络小节一一对应。
type NetConfig struct {
	// Inbound 监听地址
	Inbound []string

	// ExternalAddrs 对外通告的可达地址
	ExternalAddrs []string

	// Peers 手动配置的固定对等节点
	Peers []string

	// Seeds 种子地址
	Seeds []string

	// AllowedTransports 出站方案白名单
	AllowedTransports []string

	// TransportMixing 是否允许拨号入站监听方案（即使不在白名单）
	TransportMixing bool

	// OutboundConnections 出站槽位数量
	OutboundConnections int

	// ManualAttemptLimit 手动对等节点连续失败上限（0 = 不限）
	ManualAttemptLimit int

	// OutboundConnectTimeout 拨号超时
	OutboundConnectTimeout time.Duration

	// ChannelHandshakeTimeout 握手超时
	ChannelHandshakeTimeout time.Duration

	// Localnet 是否接受本地网络地址
	Localnet bool
}

// DefaultNetConfig 默认连接层配置
func DefaultNetConfig() NetConfig {
	return NetConfig{
		AllowedTransports:       []string{"tcp+tls"},
		TransportMixing:         true,
		OutboundConnections:     8,
		ManualAttemptLimit:      0,
		OutboundConnectTimeout:  10 * time.Second,
		ChannelHandshakeTimeout: 4 * time.Second,
		Localnet:                false,
	}
}

// ============================================================================
//                              传输层配置
// ============================================================================

// TransportConfig 传输层配置
type TransportConfig struct {
	// TorSocks5 Tor 守护进程的 SOCKS5 代理地址
	TorSocks5 string

	// NymSocks5 Nym 客户端的 SOCKS5 代理地址
	NymSocks5 string

	// KeepAlive TCP keepalive 周期
	KeepAlive time.Duration
}

// DefaultTransportConfig 默认传输层配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		TorSocks5: "127.0.0.1:9050",
		NymSocks5: "127.0.0.1:1080",
		KeepAlive: 30 * time.Second,
	}
}

// ============================================================================
//                              心跳配置
// ============================================================================

// LivenessConfig 心跳配置
type LivenessConfig struct {
	// HeartbeatInterval 心跳发送间隔
	HeartbeatInterval time.Duration

	// HeartbeatTimeout 无 pong 判定死亡的窗口
	HeartbeatTimeout time.Duration
}

// DefaultLivenessConfig 默认心跳配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  20 * time.Second,
	}
}
