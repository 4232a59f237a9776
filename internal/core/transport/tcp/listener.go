package tcp

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener TCP 监听器
type Listener struct {
	listener  net.Listener
	addr      types.Address
	serverCfg *tls.Config
	onClose   func()
	closed    atomic.Bool
}

// 确保实现接口
var _ interfaces.Listener = (*Listener)(nil)

// NewListener 创建 TCP 监听器
//
// serverCfg 非 nil 时接受的连接会包上 TLS 服务端。
func NewListener(addr types.Address, serverCfg *tls.Config) (*Listener, error) {
	l, err := net.Listen("tcp", addr.HostPort())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrListenBindFailed, addr, err)
	}

	// 端口 0 时取实际分配的端口
	actual := addr
	if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
		actual.Port = uint16(tcpAddr.Port)
		if actual.Host == "" || actual.Host == "0.0.0.0" || actual.Host == "::" {
			actual.Host = tcpAddr.IP.String()
		}
	} else if _, portStr, err := net.SplitHostPort(l.Addr().String()); err == nil {
		if p, err := strconv.ParseUint(portStr, 10, 16); err == nil {
			actual.Port = uint16(p)
		}
	}

	return &Listener{
		listener:  l,
		addr:      actual,
		serverCfg: serverCfg,
	}, nil
}

// Accept 接受下一个入站连接
func (l *Listener) Accept() (interfaces.Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() {
			return nil, fmt.Errorf("%w: %v", types.ErrIOClosed, err)
		}
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
	}

	if l.serverCfg != nil {
		// TLS 握手推迟到首次 I/O，由上层握手超时约束
		return newConn(tls.Server(conn, l.serverCfg)), nil
	}
	return newConn(conn), nil
}

// Addr 返回实际监听地址
func (l *Listener) Addr() types.Address {
	return l.addr
}

// Close 关闭监听器并从所属传输层出表
func (l *Listener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		if l.onClose != nil {
			l.onClose()
		}
		return l.listener.Close()
	}
	return nil
}
