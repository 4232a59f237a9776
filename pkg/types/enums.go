package types

// ============================================================================
//                              Direction - 会话方向
// ============================================================================

// Direction 会话建立方向
type Direction int

const (
	// DirInbound 对端拨入
	DirInbound Direction = iota

	// DirOutbound 本节点经发现机制拨出
	DirOutbound

	// DirManual 本节点向固定配置的对等节点拨出
	DirManual
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	case DirManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              SlotState - 槽位状态
// ============================================================================

// SlotState 出站/手动槽位的调度状态
type SlotState int

const (
	// SlotIdle 空闲（等待候选地址）
	SlotIdle SlotState = iota

	// SlotConnecting 正在拨号
	SlotConnecting

	// SlotHandshaking 正在握手
	SlotHandshaking

	// SlotOccupied 持有活跃会话
	SlotOccupied

	// SlotGaveUp 已放弃（手动槽位达到尝试上限）
	SlotGaveUp
)

// String 返回槽位状态的字符串表示
func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotConnecting:
		return "connecting"
	case SlotHandshaking:
		return "handshaking"
	case SlotOccupied:
		return "occupied"
	case SlotGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}
