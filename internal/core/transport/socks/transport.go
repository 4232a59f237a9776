// Package socks 提供经 SOCKS5 代理的传输层实现
//
// 覆盖 tor / tor+tls / nym 三个方案：拨号经由本机的 Tor 守护进程
// 或 Nym 客户端暴露的 SOCKS5 端口进入匿名网络。监听（onion 服务、
// mixnet 入站）由外部守护进程终结后转发到本地 tcp/unix 监听器，
// 因此本传输层的 Listen 不受支持。
package socks

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"

	"golang.org/x/net/proxy"

	"github.com/overmesh/go-overmesh/internal/core/security"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport SOCKS5 代理传输层
type Transport struct {
	proxyAddr   string
	schemes     []types.Scheme
	tlsProvider *security.Provider
	closed      atomic.Bool
}

// 确保实现接口
var _ interfaces.Transport = (*Transport)(nil)

// NewTor 创建 Tor 传输层（tor / tor+tls）
func NewTor(proxyAddr string, tlsProvider *security.Provider) *Transport {
	schemes := []types.Scheme{types.SchemeTor}
	if tlsProvider != nil {
		schemes = append(schemes, types.SchemeTorTLS)
	}
	return &Transport{
		proxyAddr:   proxyAddr,
		schemes:     schemes,
		tlsProvider: tlsProvider,
	}
}

// NewNym 创建 Nym 传输层
func NewNym(proxyAddr string) *Transport {
	return &Transport{
		proxyAddr: proxyAddr,
		schemes:   []types.Scheme{types.SchemeNym},
	}
}

// Schemes 返回覆盖的传输方案
func (t *Transport) Schemes() []types.Scheme {
	return t.schemes
}

// Dial 经代理建立出站连接
func (t *Transport) Dial(ctx context.Context, addr types.Address, opts interfaces.DialOptions) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("%w: 传输层已关闭", types.ErrIOClosed)
	}

	forward := &net.Dialer{Timeout: opts.Timeout}
	dialer, err := proxy.SOCKS5("tcp", t.proxyAddr, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("创建 SOCKS5 拨号器失败: %w", err)
	}

	ctxDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 拨号器不支持 context")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := ctxDialer.DialContext(ctx, "tcp", addr.HostPort())
	if err != nil {
		return nil, classifyDialError(err)
	}

	if addr.Scheme.TLS() {
		if t.tlsProvider == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: 未配置 TLS", types.ErrSchemeUnsupported)
		}
		tlsConn := tls.Client(conn, t.tlsProvider.ClientConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: TLS 握手: %v", types.ErrConnectTimeout, err)
			}
			return nil, fmt.Errorf("TLS 握手失败: %w", err)
		}
		return newConn(tlsConn), nil
	}

	return newConn(conn), nil
}

// Listen 不受支持
//
// onion/mixnet 入站由外部守护进程终结。
func (t *Transport) Listen(addr types.Address) (interfaces.Listener, error) {
	return nil, fmt.Errorf("%w: %s", types.ErrListenUnsupported, addr.Scheme)
}

// Close 关闭传输层
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}

// classifyDialError 将底层拨号错误映射到错误分类
func classifyDialError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", types.ErrConnectRefused, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", types.ErrConnectTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", types.ErrConnectTimeout, err)
	}
	return err
}

// ============================================================================
//                              连接包装
// ============================================================================

// Conn 代理连接包装
type Conn struct {
	net.Conn
}

var (
	_ interfaces.Conn           = (*Conn)(nil)
	_ interfaces.IdentifiedConn = (*Conn)(nil)
)

type closeWriter interface {
	CloseWrite() error
}

func newConn(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

// CloseWrite 关闭写方向；代理通道不支持半关闭时退化为完整关闭
func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}

// PeerNodeID 返回由对端证书派生的身份
//
// 仅 tor+tls 且证书握手完成后可用。
func (c *Conn) PeerNodeID() (types.NodeID, bool) {
	tc, ok := c.Conn.(*tls.Conn)
	if !ok {
		return types.EmptyNodeID, false
	}
	state := tc.ConnectionState()
	if !state.HandshakeComplete || len(state.PeerCertificates) == 0 {
		return types.EmptyNodeID, false
	}
	id, err := security.DeriveNodeIDFromCert(state.PeerCertificates[0])
	if err != nil {
		return types.EmptyNodeID, false
	}
	return id, true
}
