// Package liveness 实现会话心跳
//
// 每个注册的会话一条心跳循环：按固定间隔发送 ping，只要每个
// 窗口期内至少收到一个 pong（无需与最近一次 ping 严格配对）即
// 视为存活。整个窗口无 pong 则驱逐：销毁会话，注册表钩子随之
// 完成出表与槽位回收。
package liveness

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/metrics"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/wire"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("liveness")

// ErrHeartbeatTimeout 心跳窗口期内无 pong
var ErrHeartbeatTimeout = errors.New("heartbeat timeout")

// ============================================================================
//                              Service
// ============================================================================

// Service 心跳服务
type Service struct {
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Metrics

	mu     sync.Mutex
	loops  map[types.SessionID]chan struct{}
	closed bool
}

// New 创建心跳服务
//
// clk 为 nil 时使用真实时钟；m 为 nil 时不上报指标。
func New(cfg config.LivenessConfig, clk clock.Clock, m *metrics.Metrics) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Service{
		clock:    clk,
		interval: cfg.HeartbeatInterval,
		timeout:  cfg.HeartbeatTimeout,
		metrics:  m,
		loops:    make(map[types.SessionID]chan struct{}),
	}
}

// StartHeartbeat 为会话启动心跳循环（幂等）
func (svc *Service) StartHeartbeat(s *session.Session) {
	svc.mu.Lock()
	if svc.closed {
		svc.mu.Unlock()
		return
	}
	if _, running := svc.loops[s.ID()]; running {
		svc.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	svc.loops[s.ID()] = stop
	svc.mu.Unlock()

	go svc.loop(s, stop)
}

// StopHeartbeat 停止会话的心跳循环（不销毁会话）
func (svc *Service) StopHeartbeat(id types.SessionID) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if stop, ok := svc.loops[id]; ok {
		close(stop)
		delete(svc.loops, id)
	}
}

// Stop 停止全部心跳循环
func (svc *Service) Stop() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.closed = true
	for id, stop := range svc.loops {
		close(stop)
		delete(svc.loops, id)
	}
}

// ============================================================================
//                              循环
// ============================================================================

func (svc *Service) loop(s *session.Session, stop chan struct{}) {
	defer svc.remove(s.ID())

	ticker := svc.clock.Ticker(svc.interval)
	defer ticker.Stop()

	// 窗口按本服务时钟推进；会话的 pong 时间戳只用于变化检测
	window := svc.interval + svc.timeout
	lastPong := s.LastPong()
	deadline := svc.clock.Now().Add(window)

	for {
		select {
		case <-ticker.C:
		case <-s.Done():
			return
		case <-stop:
			return
		}

		if p := s.LastPong(); !p.Equal(lastPong) {
			lastPong = p
			deadline = svc.clock.Now().Add(window)
		} else if svc.clock.Now().After(deadline) {
			svc.metrics.HeartbeatTimeouts.Inc()
			log.Warn("心跳超时，驱逐会话",
				"session", s.ID().ShortString(),
				"peer", s.Peer().ShortString(),
				"window", window.String())
			_ = s.CloseWithError(ErrHeartbeatTimeout)
			return
		}

		err := s.SendControl(wire.RecordPing, &wire.PingRecord{
			Nonce:     uuid.New().String(),
			Timestamp: svc.clock.Now().UnixNano(),
		})
		if err != nil {
			// 发送失败已销毁会话
			return
		}
	}
}

func (svc *Service) remove(id types.SessionID) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.loops, id)
}
