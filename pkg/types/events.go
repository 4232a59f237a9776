package types

import "time"

// ============================================================================
//                              会话事件
// ============================================================================

// SessionEventType 会话事件类型
type SessionEventType int

const (
	// EventSessionEstablished 会话已建立并注册
	EventSessionEstablished SessionEventType = iota

	// EventSessionDropped 会话已销毁并移除
	EventSessionDropped

	// EventSlotGaveUp 手动槽位达到尝试上限，永久空闲
	EventSlotGaveUp
)

// String 返回事件类型的字符串表示
func (t SessionEventType) String() string {
	switch t {
	case EventSessionEstablished:
		return "established"
	case EventSessionDropped:
		return "dropped"
	case EventSlotGaveUp:
		return "slot_gave_up"
	default:
		return "unknown"
	}
}

// SessionEvent 会话生命周期事件
//
// 通过 Registry 的事件钩子分发给上层消费者。
type SessionEvent struct {
	// Type 事件类型
	Type SessionEventType

	// SessionID 会话标识（EventSlotGaveUp 时为空）
	SessionID SessionID

	// Peer 对端节点标识
	Peer NodeID

	// Addr 对端地址
	Addr Address

	// Direction 会话方向
	Direction Direction

	// Reason 销毁原因（仅 EventSessionDropped / EventSlotGaveUp）
	Reason error

	// Timestamp 事件时间
	Timestamp time.Time
}

// SessionEventCallback 会话事件回调
type SessionEventCallback func(SessionEvent)
