package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input   string
		scheme  Scheme
		host    string
		port    uint16
		wantErr bool
	}{
		{"tcp://127.0.0.1:9000", SchemeTCP, "127.0.0.1", 9000, false},
		{"tcp+tls://example.com:25551", SchemeTCPTLS, "example.com", 25551, false},
		{"tor://mj3bqzt3hcv7.onion:25551", SchemeTor, "mj3bqzt3hcv7.onion", 25551, false},
		{"tor+tls://mj3bqzt3hcv7.onion:443", SchemeTorTLS, "mj3bqzt3hcv7.onion", 443, false},
		{"nym://gateway.nym:1789", SchemeNym, "gateway.nym", 1789, false},
		{"unix:///tmp/overmesh.sock", SchemeUnix, "/tmp/overmesh.sock", 0, false},
		{"tcp://[::1]:9000", SchemeTCP, "::1", 9000, false},
		{"tcp://127.0.0.1", "", "", 0, true},          // 缺端口
		{"udp://127.0.0.1:9000", "", "", 0, true},     // 未知方案
		{"tcp://:9000", "", "", 0, true},              // host 为空
		{"tcp://127.0.0.1:99999", "", "", 0, true},    // 端口越界
		{"127.0.0.1:9000", "", "", 0, true},           // 缺 scheme
		{"unix://", "", "", 0, true},                  // unix 路径为空
	}

	for _, tt := range tests {
		addr, err := ParseAddress(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "ParseAddress(%q) 应当失败", tt.input)
			continue
		}
		require.NoError(t, err, "ParseAddress(%q)", tt.input)
		assert.Equal(t, tt.scheme, addr.Scheme)
		assert.Equal(t, tt.host, addr.Host)
		assert.Equal(t, tt.port, addr.Port)
	}
}

// 每个受支持方案的地址经解析再序列化必须得到一致的 URL
func TestAddressRoundTrip(t *testing.T) {
	inputs := []string{
		"tcp://127.0.0.1:9000",
		"tcp+tls://example.com:25551",
		"tor://mj3bqzt3hcv7.onion:25551",
		"tor+tls://mj3bqzt3hcv7.onion:443",
		"nym://gateway.nym:1789",
		"unix:///tmp/overmesh.sock",
	}

	for _, input := range inputs {
		addr, err := ParseAddress(input)
		require.NoError(t, err)
		assert.Equal(t, input, addr.String(), "round-trip %q", input)

		again, err := ParseAddress(addr.String())
		require.NoError(t, err)
		assert.True(t, addr.Equal(again))
	}
}

func TestAddressEquality(t *testing.T) {
	a := MustParseAddress("tcp://EXAMPLE.com:9000")
	b := MustParseAddress("tcp://example.com:9000")
	c := MustParseAddress("tcp+tls://example.com:9000")

	assert.True(t, a.Equal(b), "host 大小写不应影响相等性")
	assert.False(t, a.Equal(c), "scheme 不同的地址不相等")
	assert.Equal(t, a.Key(), b.Key())
}

func TestAddressIsLocalnet(t *testing.T) {
	tests := []struct {
		input string
		local bool
	}{
		{"tcp://127.0.0.1:9000", true},
		{"tcp://localhost:9000", true},
		{"tcp://10.0.0.5:9000", true},
		{"tcp://192.168.1.2:9000", true},
		{"tcp://0.0.0.0:9000", true},
		{"unix:///tmp/x.sock", true},
		{"tcp://8.8.8.8:9000", false},
		{"tcp://example.com:9000", false},
		{"tor://mj3bqzt3hcv7.onion:25551", false},
	}

	for _, tt := range tests {
		addr := MustParseAddress(tt.input)
		assert.Equal(t, tt.local, addr.IsLocalnet(), "IsLocalnet(%q)", tt.input)
	}
}

func TestSchemeTLS(t *testing.T) {
	assert.False(t, SchemeTCP.TLS())
	assert.True(t, SchemeTCPTLS.TLS())
	assert.False(t, SchemeTor.TLS())
	assert.True(t, SchemeTorTLS.TLS())
	assert.False(t, SchemeNym.TLS())
	assert.False(t, SchemeUnix.TLS())
}
