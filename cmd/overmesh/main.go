// Package main 提供 overmesh 命令行入口
//
// 一个最小的覆盖网络守护进程：加载身份、绑定监听、维持出站连接，
// 并周期性打印会话快照。用于联调与搭建种子/骨干节点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/overmesh/go-overmesh"
	"github.com/overmesh/go-overmesh/internal/util/logger"
)

var log = logger.Logger("cmd")

var (
	listen       = flag.String("listen", "", "入站监听地址，逗号分隔（如 tcp+tls://0.0.0.0:25551）")
	external     = flag.String("external", "", "对外通告地址，逗号分隔")
	seeds        = flag.String("seeds", "", "种子地址，逗号分隔")
	peers        = flag.String("peers", "", "手动对等节点，逗号分隔")
	transports   = flag.String("transports", "tcp+tls", "出站方案白名单，逗号分隔")
	slots        = flag.Int("slots", 8, "出站槽位数量")
	attemptLimit = flag.Int("attempt-limit", 0, "手动对等节点连续失败上限（0 = 不限）")
	localnet     = flag.Bool("localnet", false, "接受本地网络地址（仅联调）")
	identityFile = flag.String("identity", "", "身份密钥文件路径（为空则每次生成临时身份）")
	metricsAddr  = flag.String("metrics-addr", "", "指标 HTTP 监听地址（如 127.0.0.1:9464）")
	statusEvery  = flag.Duration("status-every", 30*time.Second, "状态打印间隔")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "overmesh:", err)
		os.Exit(1)
	}
}

func run() error {
	opts := []overmesh.Option{
		overmesh.WithListenAddrs(splitList(*listen)...),
		overmesh.WithExternalAddrs(splitList(*external)...),
		overmesh.WithSeeds(splitList(*seeds)...),
		overmesh.WithPeers(splitList(*peers)...),
		overmesh.WithAllowedTransports(splitList(*transports)...),
		overmesh.WithOutboundConnections(*slots),
		overmesh.WithManualAttemptLimit(*attemptLimit),
		overmesh.WithLocalnet(*localnet),
		overmesh.WithIdentityKeyFile(*identityFile),
	}

	node, err := overmesh.New(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := node.Start(ctx); err != nil {
		return err
	}
	defer node.Close()

	log.Info("节点运行中", "id", node.ID().String())
	for _, addr := range node.ListenAddrs() {
		log.Info("监听", "addr", addr.String())
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, node)
	}

	ticker := time.NewTicker(*statusEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("收到退出信号")
			return nil
		case <-ticker.C:
			printStatus(node)
		}
	}
}

func serveMetrics(addr string, node *overmesh.Node) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(node.Gatherer(), promhttp.HandlerOpts{}))
	log.Info("指标服务", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("指标服务退出", "err", err)
	}
}

func printStatus(node *overmesh.Node) {
	sessions := node.Sessions()
	log.Info("状态", "sessions", len(sessions), "known_addrs", len(node.KnownAddrs()))
	for _, s := range sessions {
		log.Info("会话",
			"id", s.ID.ShortString(),
			"peer", s.Peer.ShortString(),
			"addr", s.Addr.String(),
			"direction", s.Direction.String(),
			"last_seen", s.LastSeen.Format(time.RFC3339))
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
