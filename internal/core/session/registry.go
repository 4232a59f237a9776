package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/overmesh/go-overmesh/internal/core/metrics"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              Registry
// ============================================================================

// Registry 全部活跃会话的共享注册表
//
// 这是"当前连着谁"的唯一事实来源。不变式：一个地址在全部方向上
// 合计至多出现一次，且每个对端身份至多一个会话。同一地址的重复
// 注册先到者胜；双向同开（两端互拨、各自握手成功）由 NodeID 仲裁：
// 较小 NodeID 一端发起的连接存活，另一条以 ErrDuplicate 收场——
// 两端独立判定也收敛到同一条连接（见 DESIGN.md）。
type Registry struct {
	local types.NodeID

	mu       sync.RWMutex
	sessions map[types.SessionID]*Session
	byAddr   map[string]types.SessionID
	byPeer   map[types.NodeID]types.SessionID
	closed   bool

	cbMu        sync.RWMutex
	established []types.SessionEventCallback
	dropped     []types.SessionEventCallback

	metrics *metrics.Metrics
}

// NewRegistry 创建会话注册表
//
// local 为本节点身份，双向同开的仲裁依据。
func NewRegistry(local types.NodeID, m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.Nop()
	}
	return &Registry{
		local:    local,
		sessions: make(map[types.SessionID]*Session),
		byAddr:   make(map[string]types.SessionID),
		byPeer:   make(map[types.NodeID]types.SessionID),
		metrics:  m,
	}
}

// Register 注册会话
//
// 地址或对端身份已被占用且新会话未赢得仲裁时返回 ErrDuplicate，
// 调用方负责关闭落败的通道；赢得仲裁时旧会话以 ErrDuplicate 销毁。
// 成功后安装销毁钩子：会话销毁即自动出表。
func (r *Registry) Register(s *Session) error {
	key := s.Addr().Key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return types.ErrStopped
	}
	if existing, ok := r.byAddr[key]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s 已由会话 %s 占用",
			types.ErrDuplicate, s.Addr(), existing.ShortString())
	}

	var evict *Session
	if existingID, ok := r.byPeer[s.Peer()]; ok {
		existing := r.sessions[existingID]
		if !r.displaces(s, existing) {
			r.mu.Unlock()
			return fmt.Errorf("%w: 对端 %s 已有会话 %s",
				types.ErrDuplicate, s.Peer().ShortString(), existingID.ShortString())
		}
		evict = existing
	}

	r.sessions[s.ID()] = s
	r.byAddr[key] = s.ID()
	r.byPeer[s.Peer()] = s.ID()
	r.mu.Unlock()

	if evict != nil {
		log.Info("双向同开，旧会话让位",
			"peer", s.Peer().ShortString(),
			"evicted", evict.ID().ShortString(),
			"survivor", s.ID().ShortString())
		_ = evict.CloseWithError(types.ErrDuplicate)
	}

	s.setOnClose(r.handleClose)

	r.metrics.SessionsActive.WithLabelValues(s.Direction().String()).Inc()
	r.metrics.SessionsTotal.WithLabelValues(s.Direction().String()).Inc()

	log.Info("会话已注册",
		"session", s.ID().ShortString(),
		"peer", s.Peer().ShortString(),
		"addr", s.Addr().String(),
		"direction", s.Direction().String())

	r.notify(r.snapshotCallbacks(&r.established), types.SessionEvent{
		Type:      types.EventSessionEstablished,
		SessionID: s.ID(),
		Peer:      s.Peer(),
		Addr:      s.Addr(),
		Direction: s.Direction(),
		Timestamp: time.Now(),
	})
	return nil
}

// handleClose 会话销毁钩子：出表并分发 dropped 事件
func (r *Registry) handleClose(s *Session, reason error) {
	r.mu.Lock()
	if _, ok := r.sessions[s.ID()]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.ID())
	if id, ok := r.byAddr[s.Addr().Key()]; ok && id == s.ID() {
		delete(r.byAddr, s.Addr().Key())
	}
	if id, ok := r.byPeer[s.Peer()]; ok && id == s.ID() {
		delete(r.byPeer, s.Peer())
	}
	r.mu.Unlock()

	r.metrics.SessionsActive.WithLabelValues(s.Direction().String()).Dec()

	log.Info("会话已移除",
		"session", s.ID().ShortString(),
		"peer", s.Peer().ShortString(),
		"reason", reasonString(reason))

	r.notify(r.snapshotCallbacks(&r.dropped), types.SessionEvent{
		Type:      types.EventSessionDropped,
		SessionID: s.ID(),
		Peer:      s.Peer(),
		Addr:      s.Addr(),
		Direction: s.Direction(),
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// displaces 判定新会话能否取代同一对端的既有会话
//
// 同向重复没有仲裁余地，先注册者胜。方向相反即双向同开：两端各
// 持一条连接，存活的是较小 NodeID 一端发起的那条——两个节点用
// 同一对 NodeID 独立判定，结论必然一致，不会互相杀掉对方的胜者。
func (r *Registry) displaces(incoming, existing *Session) bool {
	incomingDialed := incoming.Direction() != types.DirInbound
	existingDialed := existing.Direction() != types.DirInbound
	if incomingDialed == existingDialed {
		return false
	}
	dialerWins := r.local.Less(incoming.Peer())
	return incomingDialed == dialerWins
}

func reasonString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}

// Remove 销毁并移除会话
func (r *Registry) Remove(id types.SessionID, reason error) error {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return types.ErrSessionNotFound
	}
	return s.CloseWithError(reason)
}

// Get 查找会话
func (r *Registry) Get(id types.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// AddrOccupied 检查地址是否已有会话
func (r *Registry) AddrOccupied(addr types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byAddr[addr.Key()]
	return ok
}

// OccupiedKeys 返回当前占用的地址键集合
func (r *Registry) OccupiedKeys() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make(map[string]struct{}, len(r.byAddr))
	for k := range r.byAddr {
		keys[k] = struct{}{}
	}
	return keys
}

// List 返回会话切片快照
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Snapshot 返回会话元数据快照
func (r *Registry) Snapshot() []Info {
	sessions := r.List()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}

// Count 返回活跃会话数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountByDirection 返回指定方向的活跃会话数
func (r *Registry) CountByDirection(d types.Direction) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.Direction() == d {
			n++
		}
	}
	return n
}

// Broadcast 向全部会话尽力而为地扇出数据帧
//
// 返回逐会话的发送结果；失败的会话已由 SendData 销毁。
func (r *Registry) Broadcast(payload []byte) map[types.SessionID]error {
	sessions := r.List()
	results := make(map[types.SessionID]error, len(sessions))
	for _, s := range sessions {
		err := s.SendData(payload)
		results[s.ID()] = err
		if err != nil {
			r.metrics.BroadcastErrors.Inc()
		}
	}
	return results
}

// Close 销毁全部会话并拒绝后续注册
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var errs error
	for _, s := range sessions {
		errs = multierr.Append(errs, s.CloseWithError(types.ErrStopped))
	}
	return errs
}

// ============================================================================
//                              事件钩子
// ============================================================================

// OnEstablished 注册会话建立回调
func (r *Registry) OnEstablished(cb types.SessionEventCallback) {
	r.cbMu.Lock()
	r.established = append(r.established, cb)
	r.cbMu.Unlock()
}

// OnDropped 注册会话销毁回调
func (r *Registry) OnDropped(cb types.SessionEventCallback) {
	r.cbMu.Lock()
	r.dropped = append(r.dropped, cb)
	r.cbMu.Unlock()
}

// snapshotCallbacks 复制回调列表，避免回调执行期间持锁
func (r *Registry) snapshotCallbacks(list *[]types.SessionEventCallback) []types.SessionEventCallback {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	out := make([]types.SessionEventCallback, len(*list))
	copy(out, *list)
	return out
}

func (r *Registry) notify(cbs []types.SessionEventCallback, ev types.SessionEvent) {
	for _, cb := range cbs {
		go cb(ev)
	}
}
