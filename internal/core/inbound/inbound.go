// Package inbound 实现入站会话管理器
//
// 每个配置的监听地址一个监听器加一条接受循环；每个接受的连接
// 一个应答方握手任务。单个地址绑定失败只影响该地址（告警后
// 继续），不拖垮整个节点。
package inbound

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	tec "github.com/jbenet/go-temp-err-catcher"
	"golang.org/x/sync/errgroup"

	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/transport"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("inbound")

// maxPendingHandshakes 并发应答方握手上限
//
// 达到上限后接受循环阻塞，对连接风暴形成背压；每个握手任务
// 都受握手超时约束，阻塞是有界的。
const maxPendingHandshakes = 64

// Manager 入站会话管理器
type Manager struct {
	transports *transport.Registry
	connector  *connector.Connector
	addrs      []types.Address

	mu        sync.Mutex
	listeners []interfaces.Listener

	started    atomic.Bool
	stopped    atomic.Bool
	unixSeq    atomic.Uint64
	acceptWG   sync.WaitGroup
	handshakes *errgroup.Group
}

// NewManager 创建入站管理器
func NewManager(addrs []types.Address, transports *transport.Registry,
	conn *connector.Connector) *Manager {
	g := &errgroup.Group{}
	g.SetLimit(maxPendingHandshakes)
	return &Manager{
		transports: transports,
		connector:  conn,
		addrs:      addrs,
		handshakes: g,
	}
}

// Start 绑定监听地址并启动接受循环
//
// 绑定失败只记告警并跳过该地址。
func (m *Manager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	for _, addr := range m.addrs {
		l, err := m.transports.Listen(addr)
		if err != nil {
			log.Warn("监听绑定失败，跳过该地址", "addr", addr.String(), "err", err)
			continue
		}

		m.mu.Lock()
		m.listeners = append(m.listeners, l)
		m.mu.Unlock()

		log.Info("入站监听", "addr", l.Addr().String())
		m.acceptWG.Add(1)
		go m.acceptLoop(l)
	}
}

// Stop 关闭全部监听器并等待接受循环退出
func (m *Manager) Stop() {
	if !m.stopped.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	for _, l := range m.listeners {
		_ = l.Close()
	}
	m.listeners = nil
	m.mu.Unlock()
	m.acceptWG.Wait()
	_ = m.handshakes.Wait()
}

// ListenAddrs 返回实际绑定的监听地址（端口已解析）
func (m *Manager) ListenAddrs() []types.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Address, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l.Addr())
	}
	return out
}

// ============================================================================
//                              接受循环
// ============================================================================

func (m *Manager) acceptLoop(l interfaces.Listener) {
	defer m.acceptWG.Done()

	var catcher tec.TempErrCatcher
	for {
		conn, err := l.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			if !m.stopped.Load() {
				log.Warn("接受循环退出", "addr", l.Addr().String(), "err", err)
			}
			return
		}
		m.handshakes.Go(func() error {
			m.handle(conn, l.Addr())
			return nil
		})
	}
}

// handle 单个入站连接的应答方握手任务
func (m *Manager) handle(conn interfaces.Conn, listenAddr types.Address) {
	raddr := m.remoteAddress(conn, listenAddr)

	sess, err := m.connector.Accept(conn, raddr)
	if err != nil {
		log.Debug("入站握手失败", "remote", raddr.String(), "err", err)
		return
	}

	log.Info("入站会话已建立",
		"peer", sess.Peer().ShortString(), "remote", raddr.String())
}

// remoteAddress 由连接的远端地址构造会话地址
//
// unix 套接字的远端地址不可区分，用监听路径加序号合成唯一键。
func (m *Manager) remoteAddress(conn interfaces.Conn, listenAddr types.Address) types.Address {
	if listenAddr.Scheme == types.SchemeUnix {
		return types.Address{
			Scheme: types.SchemeUnix,
			Host:   fmt.Sprintf("%s#%d", listenAddr.Host, m.unixSeq.Add(1)),
		}
	}

	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return listenAddr
	}
	port, _ := strconv.ParseUint(portStr, 10, 16)
	return types.Address{Scheme: listenAddr.Scheme, Host: host, Port: uint16(port)}
}
