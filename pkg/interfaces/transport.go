package interfaces

import (
	"context"
	"net"
	"time"

	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              连接
// ============================================================================

// Conn 传输层连接
//
// 双向字节流，读写两半可独立关闭。TLS 方案的实现在返回前
// 已经完成传输层内的证书握手。
type Conn interface {
	net.Conn

	// CloseWrite 关闭写方向（半关闭）
	//
	// 底层不支持半关闭的实现（如部分代理通道）退化为完整 Close。
	CloseWrite() error
}

// IdentifiedConn 在传输层内完成了身份认证的连接
//
// TLS 方案实现此接口：PeerNodeID 返回由对端证书公钥派生的
// NodeID。握手层据此与协议声明的身份交叉核对，防止持有任意
// 有效证书的对端冒用他人身份。
type IdentifiedConn interface {
	// PeerNodeID 返回证书派生的对端身份
	//
	// 非认证传输（明文 tcp/unix）或证书握手未完成时返回 false。
	PeerNodeID() (types.NodeID, bool)
}

// ============================================================================
//                              监听器
// ============================================================================

// Listener 传输层监听器
//
// Accept 产出无界的入站连接序列，Close 后 Accept 返回错误。
type Listener interface {
	// Accept 接受下一个入站连接
	Accept() (Conn, error)

	// Addr 返回实际监听地址（端口 0 时为分配后的端口）
	Addr() types.Address

	// Close 关闭监听器并释放底层资源
	Close() error
}

// ============================================================================
//                              传输层
// ============================================================================

// DialOptions 拨号选项
type DialOptions struct {
	// Timeout 连接建立超时
	Timeout time.Duration

	// KeepAlive TCP keepalive 周期（0 使用系统默认）
	KeepAlive time.Duration
}

// DefaultDialOptions 默认拨号选项
func DefaultDialOptions() DialOptions {
	return DialOptions{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

// Transport 单一（或一组同族）传输方案的拨号/监听实现
//
// 每个 types.Scheme 恰好映射到一个 Transport。取消 ctx 必须
// 及时中止拨号并释放底层套接字。
type Transport interface {
	// Schemes 返回此实现覆盖的传输方案
	Schemes() []types.Scheme

	// Dial 建立到指定地址的出站连接
	Dial(ctx context.Context, addr types.Address, opts DialOptions) (Conn, error)

	// Listen 在指定地址上监听入站连接
	//
	// 不支持监听的方案（tor/nym）返回 types.ErrListenUnsupported。
	Listen(addr types.Address) (Listener, error)

	// Close 关闭传输层，释放其全部监听器
	Close() error
}
