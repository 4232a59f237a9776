// Package tcp 提供基于 TCP 的传输层实现
//
// 覆盖 tcp 与 tcp+tls 两个方案。tcp+tls 在连接建立后立即执行
// 身份证书的 TLS 握手（拨号方显式握手，监听方在首次 I/O 时完成，
// 由上层握手超时约束）。
package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/overmesh/go-overmesh/internal/core/security"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层实现
type Transport struct {
	tlsProvider *security.Provider

	listeners   map[string]*Listener
	listenersMu sync.Mutex

	closed atomic.Bool
}

// 确保实现接口
var _ interfaces.Transport = (*Transport)(nil)

// NewTransport 创建 TCP 传输层
//
// tlsProvider 为 tcp+tls 方案提供证书配置；传 nil 则只支持明文 tcp。
func NewTransport(tlsProvider *security.Provider) *Transport {
	return &Transport{
		tlsProvider: tlsProvider,
		listeners:   make(map[string]*Listener),
	}
}

// Schemes 返回覆盖的传输方案
func (t *Transport) Schemes() []types.Scheme {
	if t.tlsProvider == nil {
		return []types.Scheme{types.SchemeTCP}
	}
	return []types.Scheme{types.SchemeTCP, types.SchemeTCPTLS}
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, addr types.Address, opts interfaces.DialOptions) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("%w: 传输层已关闭", types.ErrIOClosed)
	}

	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: opts.KeepAlive,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr.HostPort())
	if err != nil {
		return nil, classifyDialError(err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	if addr.Scheme.TLS() {
		tlsConn, err := t.upgradeClient(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return newConn(tlsConn), nil
	}

	return newConn(conn), nil
}

// upgradeClient 在拨号方执行 TLS 握手
func (t *Transport) upgradeClient(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	if t.tlsProvider == nil {
		return nil, fmt.Errorf("%w: 未配置 TLS", types.ErrSchemeUnsupported)
	}

	tlsConn := tls.Client(conn, t.tlsProvider.ClientConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: TLS 握手: %v", types.ErrConnectTimeout, err)
		}
		return nil, fmt.Errorf("TLS 握手失败: %w", err)
	}
	return tlsConn, nil
}

// Listen 监听入站连接
func (t *Transport) Listen(addr types.Address) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("%w: 传输层已关闭", types.ErrIOClosed)
	}

	var serverCfg *tls.Config
	if addr.Scheme.TLS() {
		if t.tlsProvider == nil {
			return nil, fmt.Errorf("%w: 未配置 TLS", types.ErrSchemeUnsupported)
		}
		serverCfg = t.tlsProvider.ServerConfig()
	}

	l, err := NewListener(addr, serverCfg)
	if err != nil {
		return nil, err
	}

	key := l.Addr().Key()
	l.onClose = func() { t.removeListener(key) }

	t.listenersMu.Lock()
	t.listeners[key] = l
	t.listenersMu.Unlock()

	return l, nil
}

// Close 关闭传输层及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	// 先摘表再关闭：Listener.Close 会回调 removeListener 取锁
	t.listenersMu.Lock()
	listeners := make([]*Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.listeners = make(map[string]*Listener)
	t.listenersMu.Unlock()

	var lastErr error
	for _, l := range listeners {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// removeListener 移除监听器记录
func (t *Transport) removeListener(key string) {
	t.listenersMu.Lock()
	delete(t.listeners, key)
	t.listenersMu.Unlock()
}

// ============================================================================
//                              错误分类
// ============================================================================

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
