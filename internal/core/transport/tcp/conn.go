package tcp

import (
	"crypto/tls"
	"net"

	"github.com/overmesh/go-overmesh/internal/core/security"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// Conn TCP 连接包装
type Conn struct {
	net.Conn
}

// 确保实现接口
var (
	_ interfaces.Conn           = (*Conn)(nil)
	_ interfaces.IdentifiedConn = (*Conn)(nil)
)

// closeWriter 支持写半关闭的连接
type closeWriter interface {
	CloseWrite() error
}

func newConn(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

// CloseWrite 关闭写方向
//
// *net.TCPConn 与 *tls.Conn 都支持；其余退化为完整关闭。
func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}

// PeerNodeID 返回由对端证书派生的身份
//
// 仅 tcp+tls 且证书握手完成后可用；明文 tcp 返回 false。
func (c *Conn) PeerNodeID() (types.NodeID, bool) {
	tc, ok := c.Conn.(*tls.Conn)
	if !ok {
		return types.EmptyNodeID, false
	}
	state := tc.ConnectionState()
	if !state.HandshakeComplete || len(state.PeerCertificates) == 0 {
		return types.EmptyNodeID, false
	}
	id, err := security.DeriveNodeIDFromCert(state.PeerCertificates[0])
	if err != nil {
		return types.EmptyNodeID, false
	}
	return id, true
}
