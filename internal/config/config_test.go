package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 8, cfg.Net.OutboundConnections)
	assert.Equal(t, 4*time.Second, cfg.Net.ChannelHandshakeTimeout)
	assert.Equal(t, 10*time.Second, cfg.Liveness.HeartbeatInterval)
	assert.Equal(t, []string{"tcp+tls"}, cfg.Net.AllowedTransports)

	require.NoError(t, cfg.Validate(), "默认配置必须通过校验")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"空配置可用", func(c *Config) {}, true},
		{"合法地址", func(c *Config) {
			c.Net.Inbound = []string{"tcp://127.0.0.1:9000"}
			c.Net.Seeds = []string{"tcp+tls://seed.example.com:25551"}
		}, true},
		{"非法监听地址", func(c *Config) {
			c.Net.Inbound = []string{"tcp://nope"}
		}, false},
		{"非法种子地址", func(c *Config) {
			c.Net.Seeds = []string{"udp://127.0.0.1:1"}
		}, false},
		{"非法白名单方案", func(c *Config) {
			c.Net.AllowedTransports = []string{"quic"}
		}, false},
		{"负槽位数", func(c *Config) {
			c.Net.OutboundConnections = -1
		}, false},
		{"零握手超时", func(c *Config) {
			c.Net.ChannelHandshakeTimeout = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
