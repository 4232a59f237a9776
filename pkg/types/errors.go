package types

import "errors"

// 错误分类
//
// 各包在调用点用 fmt.Errorf("...: %w", err) 包装，消费方用 errors.Is 匹配。
var (
	// ────────────────────────────────────────────────────────────────────────
	// 传输错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrConnectTimeout 拨号超时
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrConnectRefused 对端拒绝连接
	ErrConnectRefused = errors.New("connect refused")

	// ErrListenBindFailed 监听地址绑定失败
	ErrListenBindFailed = errors.New("listen bind failed")

	// ErrIOClosed 底层通道已关闭
	ErrIOClosed = errors.New("channel closed")

	// ErrSchemeUnsupported 传输方案不受支持
	ErrSchemeUnsupported = errors.New("unsupported transport scheme")

	// ErrListenUnsupported 该方案不支持本地监听（tor/nym 需要外部守护进程）
	ErrListenUnsupported = errors.New("listen not supported on this scheme")

	// ErrMalformedAddress 地址格式错误
	ErrMalformedAddress = errors.New("malformed address")

	// ────────────────────────────────────────────────────────────────────────
	// 握手错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrVersionIncompatible 协议主版本不兼容
	ErrVersionIncompatible = errors.New("incompatible protocol version")

	// ErrSelfConnect 检测到与自身建立连接
	ErrSelfConnect = errors.New("self connection")

	// ErrDuplicate 该地址已存在会话
	ErrDuplicate = errors.New("duplicate session")

	// ErrHandshakeTimeout 握手超时
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrMalformedMessage 握手消息格式错误
	ErrMalformedMessage = errors.New("malformed handshake message")

	// ErrIdentityMismatch 证书派生身份与握手声明身份不一致
	ErrIdentityMismatch = errors.New("certificate identity mismatch")

	// ────────────────────────────────────────────────────────────────────────
	// 策略错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrSchemeNotWhitelisted 方案不在出站白名单中
	ErrSchemeNotWhitelisted = errors.New("scheme not whitelisted")

	// ErrTransportMixingDenied 传输混合未启用
	ErrTransportMixingDenied = errors.New("transport mixing denied")

	// ErrLocalnetDenied 本地网络地址被策略拒绝
	ErrLocalnetDenied = errors.New("localnet address denied")

	// ────────────────────────────────────────────────────────────────────────
	// 资源状态
	// ────────────────────────────────────────────────────────────────────────

	// ErrNoCandidate 暂无可用候选地址（正常瞬态，退避后重试）
	ErrNoCandidate = errors.New("no candidate address available")

	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("session not found")

	// ErrStopped 组件已停止
	ErrStopped = errors.New("component stopped")
)
