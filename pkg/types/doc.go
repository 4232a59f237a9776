// Package types 定义 OverMesh 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他 overmesh 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据：
//   - Address 对等节点地址（scheme://host:port）
//   - NodeID 节点标识（公钥派生）
//   - SessionID 会话标识
//   - Version 协议版本（semver 三元组）
//   - Direction 会话方向
//   - 错误分类（传输 / 握手 / 策略 / 资源）
package types
