// Package hosts 实现已知对等地址的存储与候选选择
//
// 地址条目在配置加载（seed/manual）或传播接收（gossip）时创建，
// 永不硬删除，只做降权。重复发现是幂等操作。候选查询是出站槽位
// 的唯一取址入口，策略过滤与占用排除都在这里完成。
package hosts

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("hosts")

// gossipSeenSize 传播去重 LRU 容量
const gossipSeenSize = 1024

// failureCooldown 最近失败的降权窗口
const failureCooldown = 10 * time.Second

// ============================================================================
//                              条目
// ============================================================================

type entry struct {
	addr       types.Address
	provenance types.Provenance

	lastAttempt time.Time
	lastSuccess time.Time
	lastFailure time.Time
	failures    int

	// pending 表示某个槽位正在拨号/握手该地址
	pending bool
}

// EntryInfo 地址条目快照
type EntryInfo struct {
	Addr        types.Address
	Provenance  types.Provenance
	LastAttempt time.Time
	LastSuccess time.Time
	LastFailure time.Time
	Failures    int
	Pending     bool
}

// ============================================================================
//                              Store
// ============================================================================

// Store 已知对等地址注册表
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	// own 本节点自身地址键集合，任何写入都先过这张表
	own map[string]struct{}

	policy *Policy
	seen   *lru.Cache[string, struct{}]
}

// NewStore 创建地址存储
func NewStore(policy *Policy) *Store {
	seen, _ := lru.New[string, struct{}](gossipSeenSize)
	return &Store{
		entries: make(map[string]*entry),
		own:     make(map[string]struct{}),
		policy:  policy,
		seen:    seen,
	}
}

// AddOwn 登记本节点自身地址（监听地址与对外通告地址）
//
// 自身地址永远不会成为候选，已存在的同键条目会被剔除。
func (s *Store) AddOwn(addrs ...types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range addrs {
		key := addr.Key()
		s.own[key] = struct{}{}
		delete(s.entries, key)
	}
}

// IsOwn 检查地址是否属于本节点
func (s *Store) IsOwn(addr types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.own[addr.Key()]
	return ok
}

// Upsert 写入地址
//
// 幂等：已存在的条目保留原有来源与统计。自身地址静默丢弃。
// 返回是否新建了条目。
func (s *Store) Upsert(addr types.Address, prov types.Provenance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(addr, prov)
}

func (s *Store) upsertLocked(addr types.Address, prov types.Provenance) bool {
	key := addr.Key()
	if _, ok := s.own[key]; ok {
		return false
	}
	if _, ok := s.entries[key]; ok {
		return false
	}
	s.entries[key] = &entry{addr: addr, provenance: prov}
	log.Debug("新增地址", "addr", addr.String(), "provenance", prov.String())
	return true
}

// UpsertGossip 批量写入传播地址（经 LRU 去重）
//
// 返回实际新建的条目数。
func (s *Store) UpsertGossip(addrs []types.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, addr := range addrs {
		key := addr.Key()
		if _, dup := s.seen.Get(key); dup {
			continue
		}
		s.seen.Add(key, struct{}{})
		if s.upsertLocked(addr, types.ProvenanceGossip) {
			added++
		}
	}
	return added
}

// ============================================================================
//                              候选选择
// ============================================================================

// Candidate 选取下一个拨号候选并标记 pending
//
// 过滤规则：非自身、非 pending、不在 exclude 键集合内、通过出站
// 策略。排序规则：最近失败过的条目降权，其余按最近尝试时间升序。
// 选中的条目就地标记 pending 并刷新 lastAttempt；调用方拨号流程
// 结束后必须 ClearPending。无候选时返回 ErrNoCandidate。
func (s *Store) Candidate(exclude map[string]struct{}) (types.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	eligible := make([]*entry, 0, len(s.entries))
	for key, e := range s.entries {
		if e.pending {
			continue
		}
		if _, occupied := exclude[key]; occupied {
			continue
		}
		if !s.policy.Dialable(e.addr) {
			continue
		}
		eligible = append(eligible, e)
	}
	if len(eligible) == 0 {
		return types.Address{}, types.ErrNoCandidate
	}

	sort.Slice(eligible, func(i, j int) bool {
		ci := now.Sub(eligible[i].lastFailure) < failureCooldown
		cj := now.Sub(eligible[j].lastFailure) < failureCooldown
		if ci != cj {
			return !ci
		}
		return eligible[i].lastAttempt.Before(eligible[j].lastAttempt)
	})

	chosen := eligible[0]
	chosen.pending = true
	chosen.lastAttempt = now
	return chosen.addr, nil
}

// ClearPending 释放候选的 pending 标记
func (s *Store) ClearPending(addr types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[addr.Key()]; ok {
		e.pending = false
	}
}

// RecordSuccess 记录一次连接成功并清零连败计数
func (s *Store) RecordSuccess(addr types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[addr.Key()]; ok {
		e.lastSuccess = time.Now()
		e.failures = 0
	}
}

// RecordFailure 记录一次连接失败
func (s *Store) RecordFailure(addr types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[addr.Key()]; ok {
		e.lastFailure = time.Now()
		e.failures++
	}
}

// ============================================================================
//                              快照
// ============================================================================

// Len 返回条目数
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot 返回全部条目的快照
func (s *Store) Snapshot() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, EntryInfo{
			Addr:        e.addr,
			Provenance:  e.provenance,
			LastAttempt: e.lastAttempt,
			LastSuccess: e.lastSuccess,
			LastFailure: e.lastFailure,
			Failures:    e.failures,
			Pending:     e.pending,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr.Key() < out[j].Addr.Key() })
	return out
}
