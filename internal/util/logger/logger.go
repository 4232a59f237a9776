// Package logger 提供 overmesh 的统一日志系统
//
// 基于标准库 log/slog，支持按子系统配置日志级别。
//
// 环境变量配置：
//   - OVERMESH_LOG_LEVEL: 日志级别，支持按子系统配置
//     格式: 子系统=级别,子系统=级别,默认级别
//     示例: outbound=debug,transport=warn,info
//   - OVERMESH_LOG_FORMAT: text 或 json
//
// 使用示例:
//
//	package outbound
//
//	var log = logger.Logger("outbound")
//
//	func foo() {
//	    log.Info("session established", "peer", peerID, "addr", addr)
//	}
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ============================================================================
//                              输出目标
// ============================================================================

var (
	// globalOutput 全局日志输出目标，默认为 stderr
	globalOutput   io.Writer = os.Stderr
	globalOutputMu sync.RWMutex
)

// dynamicWriter 动态查找 globalOutput 的 io.Writer
//
// logger 创建之后修改输出目标也能生效。
type dynamicWriter struct{}

func (w *dynamicWriter) Write(p []byte) (int, error) {
	globalOutputMu.RLock()
	output := globalOutput
	globalOutputMu.RUnlock()
	return output.Write(p)
}

// SetOutput 设置全局日志输出目标
//
// 常用于将日志重定向到文件。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

// ============================================================================
//                              环境变量配置
// ============================================================================

// config 日志配置
type config struct {
	defaultLevel    slog.Level
	subsystemLevels map[string]slog.Level
	json            bool
}

var (
	configCache *config
	configOnce  sync.Once
)

// configFromEnv 从环境变量解析配置（只解析一次）
func configFromEnv() *config {
	configOnce.Do(func() {
		configCache = parseConfig()
	})
	return configCache
}

func parseConfig() *config {
	cfg := &config{
		defaultLevel:    slog.LevelInfo,
		subsystemLevels: make(map[string]slog.Level),
		json:            strings.EqualFold(os.Getenv("OVERMESH_LOG_FORMAT"), "json"),
	}

	spec := os.Getenv("OVERMESH_LOG_LEVEL")
	if spec == "" {
		return cfg
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			cfg.subsystemLevels[strings.TrimSpace(k)] = parseLevel(v)
		} else {
			cfg.defaultLevel = parseLevel(part)
		}
	}
	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ============================================================================
//                              子系统 Handler
// ============================================================================

// subsystemHandler 支持运行时调级的 slog.Handler
type subsystemHandler struct {
	level slog.Level
	inner slog.Handler
	mu    sync.RWMutex
}

func newHandler(subsystem string, level slog.Level, json bool) *subsystemHandler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	output := &dynamicWriter{}
	var inner slog.Handler
	if json {
		inner = slog.NewJSONHandler(output, opts)
	} else {
		inner = slog.NewTextHandler(output, opts)
	}
	inner = inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)})

	return &subsystemHandler{level: level, inner: inner}
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return level >= h.level
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

// SetLevel 动态设置日志级别
func (h *subsystemHandler) SetLevel(level slog.Level) {
	h.mu.Lock()
	h.level = level
	h.mu.Unlock()
}

// ============================================================================
//                              Logger 工厂
// ============================================================================

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调级）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。级别取自 OVERMESH_LOG_LEVEL。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := configFromEnv()
	level := cfg.defaultLevel
	if lvl, ok := cfg.subsystemLevels[subsystem]; ok {
		level = lvl
	}

	handler := newHandler(subsystem, level, cfg.json)
	l := slog.New(handler)

	actual, loaded := loggers.LoadOrStore(subsystem, l)
	if !loaded {
		handlers.Store(subsystem, handler)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Discard 返回丢弃所有日志的 Logger（测试用）
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}
