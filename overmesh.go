package overmesh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/internal/core/inbound"
	"github.com/overmesh/go-overmesh/internal/core/manual"
	"github.com/overmesh/go-overmesh/internal/core/outbound"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/wire"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("overmesh")

// closeTimeout Close 的兜底停止时限
const closeTimeout = 15 * time.Second

// MessageHandler 上层协议数据回调
type MessageHandler func(sessionID types.SessionID, peer types.NodeID, payload []byte)

// ============================================================================
//                              Node
// ============================================================================

// Node 覆盖网络节点
//
// 一个 Node 对应一个子网实例；上层应用为每个子网创建一个节点。
type Node struct {
	cfg *config.Config
	app fxApp

	// 由 Fx 注入
	ident     *identity.Identity
	registry  *session.Registry
	store     *hosts.Store
	connector *connector.Connector
	inbound   *inbound.Manager
	outbound  *outbound.Manager
	manual    *manual.Manager
	promReg   *prometheus.Registry

	gaveUpMu  sync.RWMutex
	gaveUpCBs []types.SessionEventCallback

	started atomic.Bool
	stopped atomic.Bool
}

// New 创建节点
//
// 只组装依赖，不触网；Start 才绑定监听与启动槽位循环。
func New(opts ...Option) (*Node, error) {
	cfg := config.NewConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	n := &Node{cfg: cfg}
	app, err := buildFxApp(cfg, n)
	if err != nil {
		return nil, err
	}
	n.app = app
	return n, nil
}

// Start 启动节点
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return fmt.Errorf("节点已启动")
	}
	log.Info("节点启动", "id", n.ident.ID().ShortString())
	return n.app.Start(ctx)
}

// Stop 停止节点
//
// 停止槽位循环、关闭监听器、销毁全部会话并释放传输资源。
func (n *Node) Stop(ctx context.Context) error {
	if !n.stopped.CompareAndSwap(false, true) {
		return nil
	}
	log.Info("节点停止", "id", n.ident.ID().ShortString())
	return n.app.Stop(ctx)
}

// Close 以默认时限停止节点
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return n.Stop(ctx)
}

// ============================================================================
//                              状态查询
// ============================================================================

// ID 返回节点标识
func (n *Node) ID() types.NodeID {
	return n.ident.ID()
}

// ListenAddrs 返回实际绑定的监听地址
func (n *Node) ListenAddrs() []types.Address {
	return n.inbound.ListenAddrs()
}

// Sessions 返回活跃会话元数据快照
func (n *Node) Sessions() []session.Info {
	return n.registry.Snapshot()
}

// SessionCount 返回活跃会话数
func (n *Node) SessionCount() int {
	return n.registry.Count()
}

// OutboundSlots 返回出站槽位快照
func (n *Node) OutboundSlots() []outbound.SlotInfo {
	return n.outbound.Slots()
}

// ManualSlots 返回手动槽位快照
func (n *Node) ManualSlots() []manual.SlotInfo {
	return n.manual.Slots()
}

// KnownAddrs 返回已知对等地址快照
func (n *Node) KnownAddrs() []hosts.EntryInfo {
	return n.store.Snapshot()
}

// Gatherer 返回节点的指标采集器（供 HTTP 暴露端使用）
func (n *Node) Gatherer() prometheus.Gatherer {
	return n.promReg
}

// ============================================================================
//                              收发
// ============================================================================

// Send 在指定会话上发送上层协议数据
func (n *Node) Send(id types.SessionID, payload []byte) error {
	s, ok := n.registry.Get(id)
	if !ok {
		return types.ErrSessionNotFound
	}
	return s.SendData(payload)
}

// Broadcast 向全部会话尽力而为地发送数据，返回逐会话结果
func (n *Node) Broadcast(payload []byte) map[types.SessionID]error {
	return n.registry.Broadcast(payload)
}

// OnMessage 设置上层数据回调
//
// 在 Start 之前设置；只对其后建立的会话生效。
func (n *Node) OnMessage(h MessageHandler) {
	n.connector.SetDataHandler(func(s *session.Session, payload []byte) {
		h(s.ID(), s.Peer(), payload)
	})
}

// ============================================================================
//                              事件钩子
// ============================================================================

// OnSessionEstablished 注册会话建立回调
func (n *Node) OnSessionEstablished(cb types.SessionEventCallback) {
	n.registry.OnEstablished(cb)
}

// OnSessionDropped 注册会话销毁回调
func (n *Node) OnSessionDropped(cb types.SessionEventCallback) {
	n.registry.OnDropped(cb)
}

// OnSlotGaveUp 注册手动槽位放弃回调
func (n *Node) OnSlotGaveUp(cb types.SessionEventCallback) {
	n.gaveUpMu.Lock()
	n.gaveUpCBs = append(n.gaveUpCBs, cb)
	n.gaveUpMu.Unlock()
}

// dispatchEvent 手动管理器的事件出口
func (n *Node) dispatchEvent(ev types.SessionEvent) {
	n.gaveUpMu.RLock()
	cbs := make([]types.SessionEventCallback, len(n.gaveUpCBs))
	copy(cbs, n.gaveUpCBs)
	n.gaveUpMu.RUnlock()

	for _, cb := range cbs {
		go cb(ev)
	}
}

// ============================================================================
//                              地址通告
// ============================================================================

// Advertise 通告本节点的可达地址
//
// 地址登记为自身地址（永不回拨），并向全部活跃会话传播，由对端
// 以 gossip 来源收录。
func (n *Node) Advertise(addrs ...string) error {
	parsed, err := types.ParseAddresses(addrs)
	if err != nil {
		return err
	}
	n.store.AddOwn(parsed...)

	raw := make([]string, 0, len(parsed))
	for _, a := range parsed {
		raw = append(raw, a.String())
	}
	rec := &wire.AddrsRecord{Addrs: raw}

	var errs error
	for _, s := range n.registry.List() {
		errs = multierr.Append(errs, s.SendControl(wire.RecordAddrs, rec))
	}
	return errs
}
