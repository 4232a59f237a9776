package manual

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

func newConnector(t *testing.T) (*connector.Connector, *session.Registry) {
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

	return conn, registry
}

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

func TestManualEstablishesSession(t *testing.T) {
	conn, registry := newConnector(t)
	peer := startPeer(t)

	m := NewManager([]types.Address{peer}, 0, conn, nil)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return registry.CountByDirection(types.DirManual) == 1
	}, 5*time.Second, 20*time.Millisecond)

	slots := m.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, types.SlotOccupied, slots[0].State)
	assert.Equal(t, 0, slots[0].Attempts)
}

func TestManualGivesUpAtLimit(t *testing.T) {
	conn, registry := newConnector(t)

	// 无人监听的地址：每次尝试都以拒绝/超时失败
	dead := types.MustParseAddress("tcp://127.0.0.1:1")

	events := make(chan types.SessionEvent, 1)
	m := NewManager([]types.Address{dead}, 2, conn, func(ev types.SessionEvent) {
		events <- ev
	})
	m.Start()
	defer m.Stop()

	select {
	case ev := <-events:
		assert.Equal(t, types.EventSlotGaveUp, ev.Type)
		assert.True(t, ev.Addr.Equal(dead))
		assert.Error(t, ev.Reason)
	case <-time.After(10 * time.Second):
		t.Fatal("等待槽位放弃事件超时")
	}

	slots := m.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, types.SlotGaveUp, slots[0].State)
	assert.Equal(t, 2, slots[0].Attempts)
	assert.Equal(t, 0, registry.Count())
}

func TestManualUnboundedKeepsRetrying(t *testing.T) {
	conn, _ := newConnector(t)
	dead := types.MustParseAddress("tcp://127.0.0.1:1")

	m := NewManager([]types.Address{dead}, 0, conn, nil)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Slots()[0].Attempts >= 2
	}, 10*time.Second, 50*time.Millisecond)
	assert.NotEqual(t, types.SlotGaveUp, m.Slots()[0].State)
}
