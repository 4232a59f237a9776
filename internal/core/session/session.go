// Package session 实现会话与会话注册表
//
// Session 是握手成功的产物：经认证、带版本的双向帧通道。
// 注册后由心跳任务独占更新活性状态，消费方只读。销毁是终态，
// 恰好发生一次（首个 send/receive/heartbeat 失败触发）。
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/overmesh/go-overmesh/internal/core/wire"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("session")

// ============================================================================
//                              Session
// ============================================================================

// DataHandler 上层协议数据回调
type DataHandler func(s *Session, payload []byte)

// AddrsHandler 地址传播回调
type AddrsHandler func(s *Session, addrs []types.Address)

// Session 已建立的对等会话
type Session struct {
	id        types.SessionID
	peer      types.NodeID
	version   types.Version
	direction types.Direction
	addr      types.Address
	conn      interfaces.Conn
	created   time.Time

	// 单写者纪律：并发调用方写同一会话必须串行化
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	lastSeen  atomic.Int64 // unix nano
	lastPong  atomic.Int64 // unix nano
	framesIn  atomic.Uint64
	framesOut atomic.Uint64

	// onClose 由注册表在 Register 时设置；注册前销毁不触发
	onClose atomic.Pointer[func(*Session, error)]

	onData  DataHandler
	onAddrs AddrsHandler

	readOnce sync.Once
}

// New 创建会话
func New(conn interfaces.Conn, peer types.NodeID, version types.Version,
	direction types.Direction, addr types.Address) *Session {
	now := time.Now()
	s := &Session{
		id:        types.NewSessionID(),
		peer:      peer,
		version:   version,
		direction: direction,
		addr:      addr,
		conn:      conn,
		created:   now,
		done:      make(chan struct{}),
	}
	s.lastSeen.Store(now.UnixNano())
	s.lastPong.Store(now.UnixNano())
	return s
}

// ID 返回会话标识
func (s *Session) ID() types.SessionID { return s.id }

// Peer 返回对端节点标识
func (s *Session) Peer() types.NodeID { return s.peer }

// Version 返回协商的协议版本
func (s *Session) Version() types.Version { return s.version }

// Direction 返回会话方向
func (s *Session) Direction() types.Direction { return s.direction }

// Addr 返回对端地址
func (s *Session) Addr() types.Address { return s.addr }

// CreatedAt 返回会话建立时间
func (s *Session) CreatedAt() time.Time { return s.created }

// Done 返回会话销毁信号
func (s *Session) Done() <-chan struct{} { return s.done }

// IsAlive 检查会话是否存活
func (s *Session) IsAlive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// LastSeen 返回最近一次收到任意帧的时间
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// LastPong 返回最近一次收到 pong 的时间
func (s *Session) LastPong() time.Time {
	return time.Unix(0, s.lastPong.Load())
}

// SetHandlers 设置上层回调（必须在 StartReadLoop 之前）
func (s *Session) SetHandlers(onData DataHandler, onAddrs AddrsHandler) {
	s.onData = onData
	s.onAddrs = onAddrs
}

// ============================================================================
//                              发送
// ============================================================================

// SendData 发送上层协议数据帧
func (s *Session) SendData(payload []byte) error {
	return s.writeRecord(wire.RecordData, payload)
}

// SendControl 编码并发送控制记录
func (s *Session) SendControl(t wire.RecordType, v any) error {
	if !s.IsAlive() {
		return fmt.Errorf("%w: %s", types.ErrIOClosed, s.id.ShortString())
	}
	s.writeMu.Lock()
	err := wire.WriteJSON(s.conn, t, v)
	s.writeMu.Unlock()

	if err != nil {
		s.CloseWithError(err)
		return err
	}
	s.framesOut.Add(1)
	return nil
}

func (s *Session) writeRecord(t wire.RecordType, payload []byte) error {
	if !s.IsAlive() {
		return fmt.Errorf("%w: %s", types.ErrIOClosed, s.id.ShortString())
	}
	s.writeMu.Lock()
	err := wire.WriteRecord(s.conn, t, payload)
	s.writeMu.Unlock()

	if err != nil {
		s.CloseWithError(err)
		return err
	}
	s.framesOut.Add(1)
	return nil
}

// ============================================================================
//                              读循环
// ============================================================================

// StartReadLoop 启动读循环（幂等）
//
// 在注册成功后调用，保证注册之前不消费任何帧。
func (s *Session) StartReadLoop() {
	s.readOnce.Do(func() {
		go s.readLoop()
	})
}

func (s *Session) readLoop() {
	for {
		typ, payload, err := wire.ReadRecord(s.conn)
		if err != nil {
			s.CloseWithError(err)
			return
		}

		s.framesIn.Add(1)
		s.lastSeen.Store(time.Now().UnixNano())

		switch typ {
		case wire.RecordPing:
			s.handlePing(payload)
		case wire.RecordPong:
			s.lastPong.Store(time.Now().UnixNano())
		case wire.RecordAddrs:
			s.handleAddrs(payload)
		case wire.RecordData:
			if s.onData != nil {
				s.onData(s, payload)
			}
		default:
			log.Debug("忽略未知记录类型",
				"session", s.id.ShortString(), "type", typ.String())
		}
	}
}

// handlePing 回显 pong
func (s *Session) handlePing(payload []byte) {
	var ping wire.PingRecord
	if err := wire.DecodeJSON(payload, &ping); err != nil {
		log.Debug("ping 记录解码失败", "session", s.id.ShortString(), "err", err)
		return
	}
	_ = s.SendControl(wire.RecordPong, &wire.PongRecord{
		Nonce:     ping.Nonce,
		Timestamp: time.Now().UnixNano(),
	})
}

// handleAddrs 解析传播地址并上交
func (s *Session) handleAddrs(payload []byte) {
	if s.onAddrs == nil {
		return
	}
	var rec wire.AddrsRecord
	if err := wire.DecodeJSON(payload, &rec); err != nil {
		log.Debug("addrs 记录解码失败", "session", s.id.ShortString(), "err", err)
		return
	}

	addrs := make([]types.Address, 0, len(rec.Addrs))
	for _, raw := range rec.Addrs {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) > 0 {
		s.onAddrs(s, addrs)
	}
}

// ============================================================================
//                              销毁
// ============================================================================

// Close 关闭会话
func (s *Session) Close() error {
	return s.CloseWithError(nil)
}

// CloseWithError 销毁会话并记录原因（恰好执行一次）
func (s *Session) CloseWithError(reason error) error {
	s.closeOnce.Do(func() {
		s.closeErr = reason
		_ = s.conn.Close()
		close(s.done)

		if cb := s.onClose.Load(); cb != nil {
			(*cb)(s, reason)
		}
	})
	return nil
}

// CloseReason 返回销毁原因（销毁前为 nil）
func (s *Session) CloseReason() error {
	select {
	case <-s.done:
		return s.closeErr
	default:
		return nil
	}
}

// setOnClose 由注册表安装销毁钩子
func (s *Session) setOnClose(cb func(*Session, error)) {
	s.onClose.Store(&cb)
}

// ============================================================================
//                              快照
// ============================================================================

// Info 会话元数据快照
type Info struct {
	ID        types.SessionID
	Peer      types.NodeID
	Version   types.Version
	Direction types.Direction
	Addr      types.Address
	CreatedAt time.Time
	LastSeen  time.Time
	FramesIn  uint64
	FramesOut uint64
}

// Info 生成元数据快照
func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		Peer:      s.peer,
		Version:   s.version,
		Direction: s.direction,
		Addr:      s.addr,
		CreatedAt: s.created,
		LastSeen:  s.LastSeen(),
		FramesIn:  s.framesIn.Load(),
		FramesOut: s.framesOut.Load(),
	}
}
