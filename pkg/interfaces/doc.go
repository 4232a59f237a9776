// Package interfaces 定义跨模块共享的契约
//
// 传输层契约（Transport / Listener / Conn）由各方案实现，
// 被握手、会话与三类会话管理器消费。接口保持窄：
// 拨号、监听、带半关闭的双向字节流。
package interfaces
