package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ============================================================================
//                              Scheme - 传输方案
// ============================================================================

// Scheme 传输方案标识
//
// 每个方案对应恰好一个传输层实现。封闭集合，新增方案需要扩展枚举。
type Scheme string

const (
	// SchemeTCP 明文 TCP
	SchemeTCP Scheme = "tcp"

	// SchemeTCPTLS TCP 上叠加 TLS（身份密钥派生的自签名证书）
	SchemeTCPTLS Scheme = "tcp+tls"

	// SchemeTor 经由 Tor SOCKS5 代理的电路
	SchemeTor Scheme = "tor"

	// SchemeTorTLS Tor 电路上再叠加 TLS
	SchemeTorTLS Scheme = "tor+tls"

	// SchemeNym 经由 Nym 混合网络客户端的连接
	SchemeNym Scheme = "nym"

	// SchemeUnix 本机 Unix 域套接字
	SchemeUnix Scheme = "unix"
)

// AllSchemes 全部受支持的传输方案
func AllSchemes() []Scheme {
	return []Scheme{SchemeTCP, SchemeTCPTLS, SchemeTor, SchemeTorTLS, SchemeNym, SchemeUnix}
}

// Valid 检查方案是否受支持
func (s Scheme) Valid() bool {
	switch s {
	case SchemeTCP, SchemeTCPTLS, SchemeTor, SchemeTorTLS, SchemeNym, SchemeUnix:
		return true
	default:
		return false
	}
}

// TLS 检查方案是否要求在传输层内执行 TLS 握手
func (s Scheme) TLS() bool {
	return s == SchemeTCPTLS || s == SchemeTorTLS
}

// String 返回方案的字符串表示
func (s Scheme) String() string {
	return string(s)
}

// ParseScheme 解析传输方案字符串
func ParseScheme(s string) (Scheme, error) {
	scheme := Scheme(strings.ToLower(s))
	if !scheme.Valid() {
		return "", fmt.Errorf("%w: %q", ErrSchemeUnsupported, s)
	}
	return scheme, nil
}

// ============================================================================
//                              Provenance - 地址来源
// ============================================================================

// Provenance 地址来源分类
type Provenance int

const (
	// ProvenanceSeed 配置的种子地址
	ProvenanceSeed Provenance = iota

	// ProvenanceManual 手动配置的固定对等节点
	ProvenanceManual

	// ProvenanceGossip 通过会话传播发现的地址
	ProvenanceGossip

	// ProvenanceSelf 节点自我通告的地址
	ProvenanceSelf
)

// String 返回来源的字符串表示
func (p Provenance) String() string {
	switch p {
	case ProvenanceSeed:
		return "seed"
	case ProvenanceManual:
		return "manual"
	case ProvenanceGossip:
		return "gossip"
	case ProvenanceSelf:
		return "self"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Address - 对等节点地址
// ============================================================================

// Address 对等节点地址
//
// 规范形式为 scheme://host:port。unix 方案以文件路径作为 Host，
// 无端口。相等性以规范化后的 scheme+host+port 为准。
type Address struct {
	// Scheme 传输方案
	Scheme Scheme

	// Host IP、域名、onion 地址或 unix 路径
	Host string

	// Port 端口号（unix 方案为 0）
	Port uint16
}

// ParseAddress 从 URL 字符串解析地址
//
// 支持的格式：
//   - tcp://127.0.0.1:9000
//   - tcp+tls://example.com:9001
//   - tor://abcdef.onion:25551
//   - unix:///tmp/overmesh.sock
func ParseAddress(raw string) (Address, error) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return Address{}, fmt.Errorf("%w: 缺少 scheme: %q", ErrMalformedAddress, raw)
	}

	scheme, err := ParseScheme(raw[:idx])
	if err != nil {
		return Address{}, err
	}
	rest := raw[idx+3:]

	// unix 方案：剩余部分即为路径
	if scheme == SchemeUnix {
		if rest == "" {
			return Address{}, fmt.Errorf("%w: unix 路径为空: %q", ErrMalformedAddress, raw)
		}
		return Address{Scheme: scheme, Host: rest}, nil
	}

	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrMalformedAddress, raw, err)
	}
	if host == "" {
		return Address{}, fmt.Errorf("%w: host 为空: %q", ErrMalformedAddress, raw)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: 无效端口 %q", ErrMalformedAddress, portStr)
	}

	return Address{Scheme: scheme, Host: host, Port: uint16(port)}, nil
}

// MustParseAddress 解析地址，失败时 panic（仅用于测试和常量）
func MustParseAddress(raw string) Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// ParseAddresses 批量解析地址
func ParseAddresses(raws []string) ([]Address, error) {
	addrs := make([]Address, 0, len(raws))
	for _, raw := range raws {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// String 返回地址的规范 URL 表示
//
// 对任意受支持方案，ParseAddress(a.String()) 与 a 相等。
func (a Address) String() string {
	if a.Scheme == SchemeUnix {
		return string(a.Scheme) + "://" + a.Host
	}
	return string(a.Scheme) + "://" + net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Key 返回规范化的相等性键
//
// host 统一转为小写，IPv6 字面量不带方括号。
func (a Address) Key() string {
	return string(a.Scheme) + "|" + strings.ToLower(a.Host) + "|" + strconv.Itoa(int(a.Port))
}

// Equal 比较两个地址（按规范化键）
func (a Address) Equal(other Address) bool {
	return a.Key() == other.Key()
}

// IsZero 检查地址是否为零值
func (a Address) IsZero() bool {
	return a.Scheme == "" && a.Host == "" && a.Port == 0
}

// HostPort 返回 host:port 形式（用于底层拨号）
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// IsLocalnet 检查地址是否属于本地网络
//
// 判定为本地的情形：unix 套接字、回环地址、RFC1918/ULA 私有地址、
// 链路本地地址，以及 localhost 域名。onion/nym 地址永远不是本地。
func (a Address) IsLocalnet() bool {
	if a.Scheme == SchemeUnix {
		return true
	}
	if strings.EqualFold(a.Host, "localhost") {
		return true
	}
	ip := net.ParseIP(a.Host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
