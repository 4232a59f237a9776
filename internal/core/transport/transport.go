// Package transport 提供按方案分发的传输层注册表
//
// 每个 types.Scheme 恰好映射到一个传输实现（封闭集合）：
//
//	tcp, tcp+tls → tcp.Transport
//	tor, tor+tls, nym → socks.Transport
//	unix → unix.Transport
//
// 新增方案时扩展注册表，而非继承层次。
package transport

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/security"
	"github.com/overmesh/go-overmesh/internal/core/transport/socks"
	"github.com/overmesh/go-overmesh/internal/core/transport/tcp"
	"github.com/overmesh/go-overmesh/internal/core/transport/unix"
	"github.com/overmesh/go-overmesh/internal/util/logger"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

var log = logger.Logger("transport")

// Registry 传输层注册表
type Registry struct {
	byScheme map[types.Scheme]interfaces.Transport
	all      []interfaces.Transport
}

// NewRegistry 创建注册表并装配全部传输实现
func NewRegistry(cfg config.TransportConfig, tlsProvider *security.Provider) *Registry {
	r := &Registry{byScheme: make(map[types.Scheme]interfaces.Transport)}

	r.register(tcp.NewTransport(tlsProvider))
	r.register(socks.NewTor(cfg.TorSocks5, tlsProvider))
	r.register(socks.NewNym(cfg.NymSocks5))
	r.register(unix.NewTransport())

	return r
}

func (r *Registry) register(t interfaces.Transport) {
	r.all = append(r.all, t)
	for _, s := range t.Schemes() {
		r.byScheme[s] = t
	}
}

// Lookup 查找方案对应的传输实现
func (r *Registry) Lookup(scheme types.Scheme) (interfaces.Transport, error) {
	t, ok := r.byScheme[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrSchemeUnsupported, scheme)
	}
	return t, nil
}

// Dial 按地址方案拨号
func (r *Registry) Dial(ctx context.Context, addr types.Address, opts interfaces.DialOptions) (interfaces.Conn, error) {
	t, err := r.Lookup(addr.Scheme)
	if err != nil {
		return nil, err
	}

	log.Debug("拨号", "addr", addr.String())
	return t.Dial(ctx, addr, opts)
}

// Listen 按地址方案监听
func (r *Registry) Listen(addr types.Address) (interfaces.Listener, error) {
	t, err := r.Lookup(addr.Scheme)
	if err != nil {
		return nil, err
	}
	return t.Listen(addr)
}

// Close 关闭全部传输实现
func (r *Registry) Close() error {
	var errs error
	for _, t := range r.all {
		errs = multierr.Append(errs, t.Close())
	}
	return errs
}
