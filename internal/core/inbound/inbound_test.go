package inbound

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/connector"
	"github.com/overmesh/go-overmesh/internal/core/handshake"
	"github.com/overmesh/go-overmesh/internal/core/hosts"
	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/internal/core/liveness"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/transport"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

type harness struct {
	registry   *session.Registry
	transports *transport.Registry
	connector  *connector.Connector
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Net.AllowedTransports = []string{"tcp"}
	cfg.Net.Localnet = true

	policy, err := hosts.NewPolicy(cfg.Net)
	require.NoError(t, err)
	ident, err := identity.Generate()
	require.NoError(t, err)

	registry := session.NewRegistry(ident.ID(), nil)
	t.Cleanup(func() { _ = registry.Close() })
	store := hosts.NewStore(policy)
	live := liveness.New(cfg.Liveness, nil, nil)
	t.Cleanup(live.Stop)
	transports := transport.NewRegistry(cfg.Transport, nil)
	t.Cleanup(func() { _ = transports.Close() })

	conn := connector.New(transports, registry, store, live, nil, handshake.Config{
		Ident:   ident,
		Version: types.ProtocolVersion,
		Nonce:   handshake.NewNonce(),
		Timeout: 2 * time.Second,
	}, time.Second)

	return &harness{registry: registry, transports: transports, connector: conn}
}

// dialAndInitiate 以发起方身份连入被测监听器
func dialAndInitiate(t *testing.T, h *harness, addr types.Address) interfaces.Conn {
	t.Helper()

	ident, err := identity.Generate()
	require.NoError(t, err)
	hs := handshake.Config{
		Ident:   ident,
		Version: types.ProtocolVersion,
		Nonce:   handshake.NewNonce(),
		Timeout: 2 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := h.transports.Dial(ctx, addr, interfaces.DefaultDialOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = handshake.Initiate(conn, hs)
	require.NoError(t, err)
	return conn
}

func TestInboundEstablishesSession(t *testing.T) {
	h := newHarness(t)

	m := NewManager([]types.Address{types.MustParseAddress("tcp://127.0.0.1:0")},
		h.transports, h.connector)
	m.Start()
	defer m.Stop()

	addrs := m.ListenAddrs()
	require.Len(t, addrs, 1)
	assert.NotZero(t, addrs[0].Port, "通配端口应解析为实际端口")

	dialAndInitiate(t, h, addrs[0])

	require.Eventually(t, func() bool {
		return h.registry.CountByDirection(types.DirInbound) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestInboundMultipleConns(t *testing.T) {
	h := newHarness(t)

	m := NewManager([]types.Address{types.MustParseAddress("tcp://127.0.0.1:0")},
		h.transports, h.connector)
	m.Start()
	defer m.Stop()

	addr := m.ListenAddrs()[0]
	dialAndInitiate(t, h, addr)
	dialAndInitiate(t, h, addr)

	// 源端口不同，两个入站会话并存
	require.Eventually(t, func() bool {
		return h.registry.CountByDirection(types.DirInbound) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBindFailureNonFatal(t *testing.T) {
	h := newHarness(t)

	// tor 无法监听：只记告警，其余地址照常服务
	m := NewManager([]types.Address{
		types.MustParseAddress("tor://abcdef.onion:25551"),
		types.MustParseAddress("tcp://127.0.0.1:0"),
	}, h.transports, h.connector)
	m.Start()
	defer m.Stop()

	addrs := m.ListenAddrs()
	require.Len(t, addrs, 1)
	assert.Equal(t, types.SchemeTCP, addrs[0].Scheme)

	dialAndInitiate(t, h, addrs[0])
	require.Eventually(t, func() bool {
		return h.registry.Count() == 1
	}, 5*time.Second, 20*time.Millisecond)
}
