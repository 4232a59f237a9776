// Package connector 实现连接升级
//
// 把三个会话管理器共用的"传输连接 → 已注册会话"路径收拢到一处：
// 出站方向是拨号加发起方握手，入站方向是应答方握手；两个方向
// 汇合于同一个建立流程（注册、地址传播、心跳、读循环）。
package connector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/overmesh/go-overmesh/internal/core/handshake"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/liveness"
	"github.com/overmesh/go-overmesh/internal/core/metrics"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/transport"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("connector")

// Connector 连接升级器
type Connector struct {
	transports *transport.Registry
	registry   *session.Registry
	hosts      *hosts.Store
	liveness   *liveness.Service
	metrics    *metrics.Metrics

	hs          handshake.Config
	dialTimeout time.Duration

	onData atomic.Pointer[session.DataHandler]
}

// New 创建连接升级器
func New(
	transports *transport.Registry,
	registry *session.Registry,
	store *hosts.Store,
	live *liveness.Service,
	m *metrics.Metrics,
	hs handshake.Config,
	dialTimeout time.Duration,
) *Connector {
	if m == nil {
		m = metrics.Nop()
	}
	return &Connector{
		transports:  transports,
		registry:    registry,
		hosts:       store,
		liveness:    live,
		metrics:     m,
		hs:          hs,
		dialTimeout: dialTimeout,
	}
}

// SetDataHandler 设置上层数据回调（对后续建立的会话生效）
func (c *Connector) SetDataHandler(h session.DataHandler) {
	c.onData.Store(&h)
}

// Dial 出站拨号（带连接超时与拨号指标）
func (c *Connector) Dial(ctx context.Context, addr types.Address) (interfaces.Conn, error) {
	scheme := addr.Scheme.String()
	c.metrics.DialsTotal.WithLabelValues(scheme).Inc()

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := c.transports.Dial(dialCtx, addr, interfaces.DialOptions{Timeout: c.dialTimeout})
	if err != nil {
		c.metrics.DialFailures.WithLabelValues(scheme).Inc()
		return nil, err
	}
	return conn, nil
}

// Upgrade 在已拨通的连接上执行发起方握手并落地会话
//
// dir 为 DirOutbound 或 DirManual，决定会话的归属方向。
func (c *Connector) Upgrade(conn interfaces.Conn, addr types.Address, dir types.Direction) (*session.Session, error) {
	res, err := handshake.Initiate(conn, c.hs)
	if err != nil {
		_ = conn.Close()
		c.metrics.HandshakeFailures.WithLabelValues(handshake.Reason(err)).Inc()
		return nil, err
	}
	return c.establish(conn, res, dir, addr)
}

// Accept 入站建立：应答方握手、注册
//
// addr 为对端的远端地址（按其 Key 参与注册表的占用判定）。
func (c *Connector) Accept(conn interfaces.Conn, addr types.Address) (*session.Session, error) {
	res, err := handshake.Respond(conn, c.hs)
	if err != nil {
		_ = conn.Close()
		c.metrics.HandshakeFailures.WithLabelValues(handshake.Reason(err)).Inc()
		return nil, err
	}
	return c.establish(conn, res, types.DirInbound, addr)
}

// establish 两个方向共用的会话落地流程
func (c *Connector) establish(conn interfaces.Conn, res *handshake.Result,
	dir types.Direction, addr types.Address) (*session.Session, error) {

	s := session.New(conn, res.PeerID, res.Version, dir, addr)

	var onData session.DataHandler
	if h := c.onData.Load(); h != nil {
		onData = *h
	}
	s.SetHandlers(onData, func(_ *session.Session, addrs []types.Address) {
		c.hosts.UpsertGossip(addrs)
	})

	if err := c.registry.Register(s); err != nil {
		_ = conn.Close()
		c.metrics.HandshakeFailures.WithLabelValues(handshake.Reason(err)).Inc()
		return nil, err
	}

	// 对端随握手通告的地址进入传播来源
	if len(res.PeerAddrs) > 0 {
		c.hosts.UpsertGossip(res.PeerAddrs)
	}

	c.liveness.StartHeartbeat(s)
	s.StartReadLoop()

	log.Debug("会话已建立",
		"peer", res.PeerID.ShortString(),
		"addr", addr.String(),
		"direction", dir.String())
	return s, nil
}
