package outbound

import (
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
	"github.com/overmesh/go-overmesh/internal/core/transport/tcp"
	"github.com/overmesh/go-overmesh/pkg/types"
)

type harness struct {
	registry  *session.Registry
	store     *hosts.Store
	connector *connector.Connector
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
	}, 2*time.Second)

	return &harness{registry: registry, store: store, connector: conn}
}

// startPeer 启动一个只做应答方握手的对端节点
func startPeer(t *testing.T) types.Address {
	t.Helper()

	tr := tcp.NewTransport(nil)
	l, err := tr.Listen(types.MustParseAddress("tcp://127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	ident, err := identity.Generate()
	require.NoError(t, err)
	hs := handshake.Config{
		Ident:   ident,
		Version: types.ProtocolVersion,
		Nonce:   handshake.NewNonce(),
		Timeout: 2 * time.Second,
	}

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				if _, err := handshake.Respond(conn, hs); err != nil {
					_ = conn.Close()
				}
			}()
		}
	}()

	return l.Addr()
}

func TestSlotEstablishesSession(t *testing.T) {
	h := newHarness(t)
	peer := startPeer(t)
	h.store.Upsert(peer, types.ProvenanceSeed)

	m := NewManager(1, h.connector, h.store, h.registry)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return h.registry.CountByDirection(types.DirOutbound) == 1
	}, 5*time.Second, 20*time.Millisecond)

	slots := m.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, types.SlotOccupied, slots[0].State)
	assert.True(t, slots[0].Addr.Equal(peer))
	assert.NotEmpty(t, slots[0].SessionID)
}

func TestSlotReconnectsAfterDrop(t *testing.T) {
	h := newHarness(t)
	peer := startPeer(t)
	h.store.Upsert(peer, types.ProvenanceSeed)

	m := NewManager(1, h.connector, h.store, h.registry)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return h.registry.Count() == 1
	}, 5*time.Second, 20*time.Millisecond)

	first := h.registry.List()[0]
	require.NoError(t, h.registry.Remove(first.ID(), types.ErrIOClosed))

	// 槽位在一个重试周期内重新建立会话
	require.Eventually(t, func() bool {
		if h.registry.Count() != 1 {
			return false
		}
		return h.registry.List()[0].ID() != first.ID()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNoCandidateStaysIdle(t *testing.T) {
	h := newHarness(t)

	m := NewManager(2, h.connector, h.store, h.registry)
	m.Start()
	defer m.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, h.registry.Count())
	for _, sl := range m.Slots() {
		assert.Equal(t, types.SlotIdle, sl.State)
	}
}

func TestSlotsNeverDuplicateAddress(t *testing.T) {
	h := newHarness(t)
	peer := startPeer(t)
	h.store.Upsert(peer, types.ProvenanceSeed)

	// 槽位多于候选：只有一个槽位能占用该地址
	m := NewManager(3, h.connector, h.store, h.registry)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return h.registry.Count() == 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, h.registry.Count(), "同一地址不得被多个槽位占用")
}
