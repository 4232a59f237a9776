package config

import (
	"fmt"
	"time"

	"github.com/overmesh/go-overmesh/pkg/types"
)

// Validate 校验配置
//
// 规则：
// - 所有地址字段必须可解析
// - 白名单方案必须受支持
// - 槽位数量与超时必须为正
//
// 零监听地址、零种子不算错误：节点保持断连状态持续重试，
// 这是有意的活性优先设计。
func (c *Config) Validate() error {
	for _, field := range []struct {
		name  string
		addrs []string
	}{
		{"inbound", c.Net.Inbound},
		{"external_addrs", c.Net.ExternalAddrs},
		{"peers", c.Net.Peers},
		{"seeds", c.Net.Seeds},
	} {
		for _, raw := range field.addrs {
			if _, err := types.ParseAddress(raw); err != nil {
				return fmt.Errorf("net.%s: %w", field.name, err)
			}
		}
	}

	for _, raw := range c.Net.AllowedTransports {
		if _, err := types.ParseScheme(raw); err != nil {
			return fmt.Errorf("net.allowed_transports: %w", err)
		}
	}

	if c.Net.OutboundConnections < 0 {
		return fmt.Errorf("net.outbound_connections 不能为负: %d", c.Net.OutboundConnections)
	}
	if c.Net.ManualAttemptLimit < 0 {
		return fmt.Errorf("net.manual_attempt_limit 不能为负: %d", c.Net.ManualAttemptLimit)
	}

	for _, d := range []struct {
		name string
		dur  time.Duration
	}{
		{"outbound_connect_timeout", c.Net.OutboundConnectTimeout},
		{"channel_handshake_timeout", c.Net.ChannelHandshakeTimeout},
		{"heartbeat_interval", c.Liveness.HeartbeatInterval},
		{"heartbeat_timeout", c.Liveness.HeartbeatTimeout},
	} {
		if d.dur <= 0 {
			return fmt.Errorf("%s 必须为正: %v", d.name, d.dur)
		}
	}

	return nil
}
