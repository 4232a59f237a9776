package types

import (
	"bytes"
	"errors"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// ============================================================================
//                              NodeID - 节点标识
// ============================================================================

// NodeID 节点唯一标识符
//
// 由身份公钥派生（公钥的 SHA256 哈希）。外部表示为 Base58 编码。
type NodeID [32]byte

// EmptyNodeID 空节点ID
var EmptyNodeID NodeID

// ErrInvalidNodeID 无效的节点ID
var ErrInvalidNodeID = errors.New("invalid node ID")

// String 返回 NodeID 的 Base58 字符串表示
func (id NodeID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString 返回 Base58 前 8 个字符，用于日志中的简短标识
func (id NodeID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 NodeID 的字节切片
func (id NodeID) Bytes() []byte {
	return id[:]
}

// Equal 比较两个 NodeID
func (id NodeID) Equal(other NodeID) bool {
	return id == other
}

// Less 按字节序比较两个 NodeID
//
// 用于双向同开时的确定性仲裁：两端对同一对 NodeID 得出相同的序。
func (id NodeID) Less(other NodeID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// IsEmpty 检查 NodeID 是否为空
func (id NodeID) IsEmpty() bool {
	return id == EmptyNodeID
}

// NodeIDFromBytes 从字节切片创建 NodeID
func NodeIDFromBytes(b []byte) (NodeID, error) {
	if len(b) != 32 {
		return EmptyNodeID, ErrInvalidNodeID
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// ParseNodeID 从 Base58 字符串解析 NodeID
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return EmptyNodeID, ErrInvalidNodeID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyNodeID, ErrInvalidNodeID
	}
	return NodeIDFromBytes(b)
}

// ============================================================================
//                              SessionID - 会话标识
// ============================================================================

// SessionID 会话唯一标识符（UUID v4）
type SessionID string

// NewSessionID 生成新的会话标识
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// String 返回会话标识的字符串表示
func (id SessionID) String() string {
	return string(id)
}

// ShortString 返回会话标识的前 8 个字符
func (id SessionID) ShortString() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
