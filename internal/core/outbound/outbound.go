// Package outbound 实现出站会话管理器
//
// 管理器持有固定数量的槽位，每个槽位一条独立的重试循环：取候选、
// 拨号、握手、持有会话直到销毁，然后回到取候选。槽位间互不等待。
// 无候选是常态而非错误，退避后重查——这是网络在节点流失下保持
// 连通的自愈机制。
package outbound

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("outbound")

const (
	// retryBackoff 拨号/握手失败后的退避
	retryBackoff = 2 * time.Second

	// noCandidateBackoff 无候选时的退避
	noCandidateBackoff = 5 * time.Second
)

// ============================================================================
//                              槽位
// ============================================================================

// SlotInfo 槽位快照
type SlotInfo struct {
	ID        int
	State     types.SlotState
	Addr      types.Address
	SessionID types.SessionID
}

type slot struct {
	id int

	mu        sync.Mutex
	state     types.SlotState
	addr      types.Address
	sessionID types.SessionID
}

func (s *slot) set(state types.SlotState, addr types.Address, sid types.SessionID) {
	s.mu.Lock()
	s.state = state
	s.addr = addr
	s.sessionID = sid
	s.mu.Unlock()
}

func (s *slot) info() SlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotInfo{ID: s.id, State: s.state, Addr: s.addr, SessionID: s.sessionID}
}

// ============================================================================
//                              Manager
// ============================================================================

// Manager 出站会话管理器
type Manager struct {
	connector *connector.Connector
	hosts     *hosts.Store
	registry  *session.Registry

	slots []*slot

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager 创建出站管理器
func NewManager(slotCount int, conn *connector.Connector,
	store *hosts.Store, reg *session.Registry) *Manager {

	m := &Manager{
		connector: conn,
		hosts:     store,
		registry:  reg,
		slots:     make([]*slot, slotCount),
	}
	for i := range m.slots {
		m.slots[i] = &slot{id: i, state: types.SlotIdle}
	}
	return m
}

// Start 启动全部槽位循环
func (m *Manager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	log.Info("出站管理器启动", "slots", len(m.slots))
	for _, sl := range m.slots {
		m.wg.Add(1)
		go m.run(ctx, sl)
	}
}

// Stop 停止全部槽位循环并等待退出
//
// 槽位持有的会话不在这里销毁，由注册表统一关闭。
func (m *Manager) Stop() {
	if !m.started.Load() || m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
}

// Slots 返回槽位快照
func (m *Manager) Slots() []SlotInfo {
	out := make([]SlotInfo, 0, len(m.slots))
	for _, sl := range m.slots {
		out = append(out, sl.info())
	}
	return out
}

// ============================================================================
//                              槽位循环
// ============================================================================

func (m *Manager) run(ctx context.Context, sl *slot) {
	defer m.wg.Done()
	defer sl.set(types.SlotIdle, types.Address{}, "")

	for ctx.Err() == nil {
		addr, err := m.hosts.Candidate(m.registry.OccupiedKeys())
		if err != nil {
			if errors.Is(err, types.ErrNoCandidate) {
				log.Debug("无可用候选", "slot", sl.id)
			}
			sl.set(types.SlotIdle, types.Address{}, "")
			if !sleepCtx(ctx, noCandidateBackoff) {
				return
			}
			continue
		}

		sess, err := m.attempt(ctx, sl, addr)
		m.hosts.ClearPending(addr)
		if err != nil {
			m.hosts.RecordFailure(addr)
			log.Debug("出站尝试失败", "slot", sl.id, "addr", addr.String(), "err", err)
			sl.set(types.SlotIdle, types.Address{}, "")
			if !sleepCtx(ctx, retryBackoff) {
				return
			}
			continue
		}

		m.hosts.RecordSuccess(addr)
		sl.set(types.SlotOccupied, addr, sess.ID())
		log.Info("出站会话占用槽位",
			"slot", sl.id, "peer", sess.Peer().ShortString(), "addr", addr.String())

		select {
		case <-sess.Done():
		case <-ctx.Done():
			return
		}
		sl.set(types.SlotIdle, types.Address{}, "")
	}
}

// attempt 单次拨号加握手
func (m *Manager) attempt(ctx context.Context, sl *slot, addr types.Address) (*session.Session, error) {
	sl.set(types.SlotConnecting, addr, "")
	conn, err := m.connector.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	sl.set(types.SlotHandshaking, addr, "")
	return m.connector.Upgrade(conn, addr, types.DirOutbound)
}

// sleepCtx 可取消的休眠，取消时返回 false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
