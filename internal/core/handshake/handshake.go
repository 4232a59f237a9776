// Package handshake 实现会话建立状态机
//
// 传输连接建立后双方各跑一次状态机，交换 version 记录，校验版本
// 兼容性与自连，产出经认证的会话参数。发起方先发；应答方先收。
// 整个交换受单一握手超时约束，任何失败路径都关闭底层连接由调用
// 方负责。
package handshake

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/internal/core/wire"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("handshake")

// ============================================================================
//                              状态
// ============================================================================

// State 握手状态
type State int

const (
	// StateStart 初始状态
	StateStart State = iota

	// StateVersionSent 已发出本端 version 记录
	StateVersionSent

	// StateVersionReceived 已收到对端 version 记录
	StateVersionReceived

	// StateAuthenticated 对端身份与版本校验通过
	StateAuthenticated

	// StateEstablished 握手完成
	StateEstablished

	// StateFailed 终态失败
	StateFailed
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateVersionSent:
		return "version_sent"
	case StateVersionReceived:
		return "version_received"
	case StateAuthenticated:
		return "authenticated"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              配置与结果
// ============================================================================

// Config 握手参数
type Config struct {
	// Ident 本端身份
	Ident *identity.Identity

	// Version 本端协议版本
	Version types.Version

	// Nonce 本进程的自连检测随机值
	Nonce *Nonce

	// ExternalAddrs 随握手通告的对外可达地址
	ExternalAddrs []types.Address

	// Timeout 整个交换的超时
	Timeout time.Duration
}

// Result 握手产出
type Result struct {
	// PeerID 对端节点标识
	PeerID types.NodeID

	// Version 对端协议版本
	Version types.Version

	// PeerAddrs 对端通告的对外可达地址
	PeerAddrs []types.Address
}

// ============================================================================
//                              执行
// ============================================================================

// Initiate 以发起方身份执行握手（出站连接）
func Initiate(conn interfaces.Conn, cfg Config) (*Result, error) {
	return run(conn, cfg, true)
}

// Respond 以应答方身份执行握手（入站连接）
func Respond(conn interfaces.Conn, cfg Config) (*Result, error) {
	return run(conn, cfg, false)
}

func run(conn interfaces.Conn, cfg Config, initiator bool) (*Result, error) {
	if cfg.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
			return nil, fmt.Errorf("%w: 设置握手期限: %v", types.ErrIOClosed, err)
		}
		defer conn.SetDeadline(time.Time{})
	}

	m := &machine{conn: conn, cfg: cfg, state: StateStart}

	var err error
	if initiator {
		err = m.sendVersion()
		if err == nil {
			err = m.recvVersion()
		}
	} else {
		err = m.recvVersion()
		if err == nil {
			err = m.sendVersion()
		}
	}
	if err == nil {
		err = m.authenticate()
	}

	if err != nil {
		m.state = StateFailed
		log.Debug("握手失败",
			"initiator", initiator, "state", m.state.String(), "err", err)
		return nil, err
	}

	m.state = StateEstablished
	return m.result, nil
}

// machine 单次握手的状态机
type machine struct {
	conn  interfaces.Conn
	cfg   Config
	state State

	peer   wire.VersionRecord
	result *Result
}

func (m *machine) sendVersion() error {
	addrs := make([]string, 0, len(m.cfg.ExternalAddrs))
	for _, a := range m.cfg.ExternalAddrs {
		addrs = append(addrs, a.String())
	}

	err := wire.WriteJSON(m.conn, wire.RecordVersion, &wire.VersionRecord{
		Version:       m.cfg.Version,
		NodeID:        m.cfg.Ident.ID().String(),
		Nonce:         m.cfg.Nonce.Value(),
		ExternalAddrs: addrs,
	})
	if err != nil {
		return mapIOError(err)
	}
	m.state = StateVersionSent
	return nil
}

func (m *machine) recvVersion() error {
	typ, payload, err := wire.ReadRecord(m.conn)
	if err != nil {
		return mapIOError(err)
	}
	if typ != wire.RecordVersion {
		return fmt.Errorf("%w: 期望 version 记录，收到 %s", types.ErrMalformedMessage, typ)
	}
	if err := wire.DecodeJSON(payload, &m.peer); err != nil {
		return err
	}
	m.state = StateVersionReceived
	return nil
}

// authenticate 校验对端版本与身份
func (m *machine) authenticate() error {
	peerID, err := types.ParseNodeID(m.peer.NodeID)
	if err != nil {
		return fmt.Errorf("%w: 对端 node_id: %v", types.ErrMalformedMessage, err)
	}

	if !m.cfg.Version.CompatibleWith(m.peer.Version) {
		return fmt.Errorf("%w: 本端 %s 对端 %s",
			types.ErrVersionIncompatible, m.cfg.Version, m.peer.Version)
	}

	// 自连：对端就是本进程（同一身份或回传了我们自己的 nonce）
	if peerID == m.cfg.Ident.ID() || m.cfg.Nonce.IsSelf(m.peer.Nonce) {
		return types.ErrSelfConnect
	}

	// TLS 方案下证书派生身份是唯一可信来源：协议声明必须与之一致，
	// 否则持有任意有效证书的对端都能冒用他人身份注册会话
	if ic, ok := m.conn.(interfaces.IdentifiedConn); ok {
		if certID, ok := ic.PeerNodeID(); ok && certID != peerID {
			return fmt.Errorf("%w: 证书 %s 声明 %s",
				types.ErrIdentityMismatch, certID.ShortString(), peerID.ShortString())
		}
	}

	peerAddrs := make([]types.Address, 0, len(m.peer.ExternalAddrs))
	for _, raw := range m.peer.ExternalAddrs {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			continue
		}
		peerAddrs = append(peerAddrs, addr)
	}

	m.state = StateAuthenticated
	m.result = &Result{
		PeerID:    peerID,
		Version:   m.peer.Version,
		PeerAddrs: peerAddrs,
	}
	return nil
}

// mapIOError 把期限超时归入握手超时
func mapIOError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", types.ErrHandshakeTimeout, err)
	}
	return err
}

// ============================================================================
//                              失败原因
// ============================================================================

// Reason 把握手错误折叠为指标标签
func Reason(err error) string {
	switch {
	case errors.Is(err, types.ErrVersionIncompatible):
		return "version_incompatible"
	case errors.Is(err, types.ErrSelfConnect):
		return "self_connect"
	case errors.Is(err, types.ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, types.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, types.ErrHandshakeTimeout):
		return "timeout"
	case errors.Is(err, types.ErrMalformedMessage):
		return "malformed"
	default:
		return "io"
	}
}
