// Package unix 提供基于 Unix 域套接字的传输层实现
//
// 用于本机 IPC 场景（unix:///path/to.sock）。
package unix

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport Unix 域套接字传输层
type Transport struct {
	listeners   map[string]*Listener
	listenersMu sync.Mutex
	closed      atomic.Bool
}

// 确保实现接口
var _ interfaces.Transport = (*Transport)(nil)

// NewTransport 创建 Unix 传输层
func NewTransport() *Transport {
	return &Transport{listeners: make(map[string]*Listener)}
}

// Schemes 返回覆盖的传输方案
func (t *Transport) Schemes() []types.Scheme {
	return []types.Scheme{types.SchemeUnix}
}

// Dial 建立到套接字路径的连接
func (t *Transport) Dial(ctx context.Context, addr types.Address, opts interfaces.DialOptions) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("%w: 传输层已关闭", types.ErrIOClosed)
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "unix", addr.Host)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) {
			return nil, fmt.Errorf("%w: %v", types.ErrConnectRefused, err)
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, fmt.Errorf("%w: %v", types.ErrConnectTimeout, err)
		}
		return nil, err
	}

	return newConn(conn), nil
}

// Listen 在套接字路径上监听
//
// 残留的旧套接字文件会先被清理（上次异常退出的遗留）。
func (t *Transport) Listen(addr types.Address) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("%w: 传输层已关闭", types.ErrIOClosed)
	}

	if info, err := os.Stat(addr.Host); err == nil && info.Mode()&os.ModeSocket != 0 {
		_ = os.Remove(addr.Host)
	}

	l, err := net.Listen("unix", addr.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrListenBindFailed, addr, err)
	}

	listener := &Listener{listener: l, addr: addr}
	t.listenersMu.Lock()
	t.listeners[addr.Key()] = listener
	t.listenersMu.Unlock()

	return listener, nil
}

// Close 关闭传输层及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	var lastErr error
	t.listenersMu.Lock()
	for _, l := range t.listeners {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	t.listeners = make(map[string]*Listener)
	t.listenersMu.Unlock()

	return lastErr
}

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener Unix 域套接字监听器
type Listener struct {
	listener net.Listener
	addr     types.Address
	closed   atomic.Bool
}

var _ interfaces.Listener = (*Listener)(nil)

// Accept 接受下一个入站连接
func (l *Listener) Accept() (interfaces.Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() {
			return nil, fmt.Errorf("%w: %v", types.ErrIOClosed, err)
		}
		return nil, err
	}
	return newConn(conn), nil
}

// Addr 返回监听地址
func (l *Listener) Addr() types.Address {
	return l.addr
}

// Close 关闭监听器并移除套接字文件
func (l *Listener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		err := l.listener.Close()
		_ = os.Remove(l.addr.Host)
		return err
	}
	return nil
}

// ============================================================================
//                              连接包装
// ============================================================================

// Conn Unix 连接包装
type Conn struct {
	net.Conn
}

var _ interfaces.Conn = (*Conn)(nil)

func newConn(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

// CloseWrite 关闭写方向
func (c *Conn) CloseWrite() error {
	if uc, ok := c.Conn.(*net.UnixConn); ok {
		return uc.CloseWrite()
	}
	return c.Conn.Close()
}
