// Package overmesh 是去中心化应用的 P2P 覆盖网络基座
//
// 它负责：发现对等节点、在多种可互换的传输方案上建立经认证的
// 加密会话、在节点流失下维持目标数量的出站连接、接受入站连接、
// 用心跳检测并驱逐死连接——全程无中心协调者。
//
// 上层协议（区块链同步、加密聊天、任务分发）只消费一个通用的
// "在会话上收发帧"接口，本包不理解其消息语义。
//
// 基本用法：
//
//	node, err := overmesh.New(
//		overmesh.WithListenAddrs("tcp+tls://0.0.0.0:25551"),
//		overmesh.WithSeeds("tcp+tls://seed.example.org:25551"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := node.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer node.Close()
package overmesh
