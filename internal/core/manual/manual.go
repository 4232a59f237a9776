// Package manual 实现手动会话管理器
//
// 与出站管理器相同的槽位纪律，但候选集合是配置里的固定对等节点
// 列表，不经过发现与白名单。每个节点一个槽位；连续失败达到上限
// （0 表示不限）后槽位永久空闲并向上报告，不影响其他槽位。
package manual

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("manual")

// retryBackoff 失败后的退避
const retryBackoff = 2 * time.Second

// ============================================================================
//                              槽位
// ============================================================================

// SlotInfo 手动槽位快照
type SlotInfo struct {
	Peer      types.Address
	State     types.SlotState
	SessionID types.SessionID
	Attempts  int
}

type slot struct {
	peer types.Address

	mu        sync.Mutex
	state     types.SlotState
	sessionID types.SessionID
	attempts  int
}

func (s *slot) set(state types.SlotState, sid types.SessionID) {
	s.mu.Lock()
	s.state = state
	s.sessionID = sid
	s.mu.Unlock()
}

func (s *slot) fail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

func (s *slot) succeed() {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
}

func (s *slot) info() SlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotInfo{Peer: s.peer, State: s.state, SessionID: s.sessionID, Attempts: s.attempts}
}

// ============================================================================
//                              Manager
// ============================================================================

// Manager 手动会话管理器
type Manager struct {
	connector    *connector.Connector
	attemptLimit int
	onEvent      types.SessionEventCallback

	slots []*slot

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager 创建手动管理器
//
// peers 为固定对等地址；attemptLimit 为连续失败上限（0 = 不限）；
// onEvent 接收槽位放弃事件，可为 nil。
func NewManager(peers []types.Address, attemptLimit int,
	conn *connector.Connector, onEvent types.SessionEventCallback) *Manager {

	m := &Manager{
		connector:    conn,
		attemptLimit: attemptLimit,
		onEvent:      onEvent,
		slots:        make([]*slot, 0, len(peers)),
	}
	for _, peer := range peers {
		m.slots = append(m.slots, &slot{peer: peer, state: types.SlotIdle})
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

	if len(m.slots) > 0 {
		log.Info("手动管理器启动",
			"peers", len(m.slots), "attempt_limit", m.attemptLimit)
	}
	for _, sl := range m.slots {
		m.wg.Add(1)
		go m.run(ctx, sl)
	}
}

// Stop 停止全部槽位循环并等待退出
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

	for ctx.Err() == nil {
		sess, err := m.attempt(ctx, sl)
		if err != nil {
			attempts := sl.fail()
			log.Debug("手动尝试失败",
				"peer", sl.peer.String(), "attempts", attempts, "err", err)

			if m.attemptLimit > 0 && attempts >= m.attemptLimit {
				m.giveUp(sl, err)
				return
			}
			sl.set(types.SlotIdle, "")
			if !sleepCtx(ctx, retryBackoff) {
				return
			}
			continue
		}

		sl.succeed()
		sl.set(types.SlotOccupied, sess.ID())
		log.Info("手动会话占用槽位",
			"peer", sess.Peer().ShortString(), "addr", sl.peer.String())

		select {
		case <-sess.Done():
		case <-ctx.Done():
			return
		}
		sl.set(types.SlotIdle, "")
	}
}

func (m *Manager) attempt(ctx context.Context, sl *slot) (*session.Session, error) {
	sl.set(types.SlotConnecting, "")
	conn, err := m.connector.Dial(ctx, sl.peer)
	if err != nil {
		return nil, err
	}

	sl.set(types.SlotHandshaking, "")
	return m.connector.Upgrade(conn, sl.peer, types.DirManual)
}

// giveUp 连续失败达到上限，槽位永久空闲并向上报告
func (m *Manager) giveUp(sl *slot, lastErr error) {
	sl.set(types.SlotGaveUp, "")
	log.Warn("手动槽位放弃重试",
		"peer", sl.peer.String(), "attempt_limit", m.attemptLimit, "err", lastErr)

	if m.onEvent != nil {
		go m.onEvent(types.SessionEvent{
			Type:      types.EventSlotGaveUp,
			Addr:      sl.peer,
			Direction: types.DirManual,
			Reason:    lastErr,
			Timestamp: time.Now(),
		})
	}
}

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
