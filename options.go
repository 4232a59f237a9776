package overmesh

import (
	"time"

	"github.com/overmesh/go-overmesh/internal/config"
)

// Option 节点配置选项
type Option func(*config.Config) error

// WithListenAddrs 设置入站监听地址
func WithListenAddrs(addrs ...string) Option {
	return func(cfg *config.Config) error {
		cfg.Net.Inbound = append(cfg.Net.Inbound, addrs...)
		return nil
	}
}

// WithExternalAddrs 设置对外通告的可达地址
func WithExternalAddrs(addrs ...string) Option {
	return func(cfg *config.Config) error {
		cfg.Net.ExternalAddrs = append(cfg.Net.ExternalAddrs, addrs...)
		return nil
	}
}

// WithSeeds 设置种子地址
func WithSeeds(addrs ...string) Option {
	return func(cfg *config.Config) error {
		cfg.Net.Seeds = append(cfg.Net.Seeds, addrs...)
		return nil
	}
}

// WithPeers 设置手动配置的固定对等节点
func WithPeers(addrs ...string) Option {
	return func(cfg *config.Config) error {
		cfg.Net.Peers = append(cfg.Net.Peers, addrs...)
		return nil
	}
}

// WithAllowedTransports 设置出站方案白名单（覆盖默认值）
func WithAllowedTransports(schemes ...string) Option {
	return func(cfg *config.Config) error {
		cfg.Net.AllowedTransports = schemes
		return nil
	}
}

// WithTransportMixing 设置是否允许拨号入站监听方案
func WithTransportMixing(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.Net.TransportMixing = enabled
		return nil
	}
}

// WithLocalnet 设置是否接受本地网络地址
//
// 生产环境保持关闭；本机联调和测试网开启。
func WithLocalnet(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.Net.Localnet = enabled
		return nil
	}
}

// WithOutboundConnections 设置出站槽位数量
func WithOutboundConnections(n int) Option {
	return func(cfg *config.Config) error {
		cfg.Net.OutboundConnections = n
		return nil
	}
}

// WithManualAttemptLimit 设置手动对等节点的连续失败上限（0 = 不限）
func WithManualAttemptLimit(n int) Option {
	return func(cfg *config.Config) error {
		cfg.Net.ManualAttemptLimit = n
		return nil
	}
}

// WithConnectTimeout 设置出站拨号超时
func WithConnectTimeout(d time.Duration) Option {
	return func(cfg *config.Config) error {
		cfg.Net.OutboundConnectTimeout = d
		return nil
	}
}

// WithHandshakeTimeout 设置握手超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(cfg *config.Config) error {
		cfg.Net.ChannelHandshakeTimeout = d
		return nil
	}
}

// WithHeartbeat 设置心跳间隔与无 pong 判定窗口
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(cfg *config.Config) error {
		cfg.Liveness.HeartbeatInterval = interval
		cfg.Liveness.HeartbeatTimeout = timeout
		return nil
	}
}

// WithIdentityKeyFile 设置持久身份密钥文件
//
// 不设置时每次启动生成临时身份。
func WithIdentityKeyFile(path string) Option {
	return func(cfg *config.Config) error {
		cfg.Identity.KeyFile = path
		return nil
	}
}

// WithTorProxy 设置 Tor 守护进程的 SOCKS5 代理地址
func WithTorProxy(addr string) Option {
	return func(cfg *config.Config) error {
		cfg.Transport.TorSocks5 = addr
		return nil
	}
}

// WithNymProxy 设置 Nym 客户端的 SOCKS5 代理地址
func WithNymProxy(addr string) Option {
	return func(cfg *config.Config) error {
		cfg.Transport.NymSocks5 = addr
		return nil
	}
}
