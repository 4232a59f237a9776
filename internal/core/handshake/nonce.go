package handshake

import (
	"github.com/google/uuid"
)

// Nonce 进程级自连检测随机值
//
// 每次进程启动生成一次，随 version 记录发出。收到的记录携带
// 本进程的 nonce 说明连到了自己（通告地址被错误地收录）。
type Nonce struct {
	value string
}

// NewNonce 生成进程 nonce
func NewNonce() *Nonce {
	return &Nonce{value: uuid.New().String()}
}

// Value 返回 nonce 值
func (n *Nonce) Value() string {
	return n.value
}

// IsSelf 检查 v 是否为本进程的 nonce
func (n *Nonce) IsSelf(v string) bool {
	return v != "" && v == n.value
}
