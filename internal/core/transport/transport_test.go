package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(config.DefaultTransportConfig(), nil)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestLookupCoversAllSchemes(t *testing.T) {
	r := newTestRegistry(t)

	// 无 TLS 提供者时 tls 方案不可用，其余全覆盖
	for _, s := range []types.Scheme{types.SchemeTCP, types.SchemeTor, types.SchemeNym, types.SchemeUnix} {
		_, err := r.Lookup(s)
		assert.NoError(t, err, "scheme %s", s)
	}
	_, err := r.Lookup(types.SchemeTCPTLS)
	assert.ErrorIs(t, err, types.ErrSchemeUnsupported)
}

func TestDialUnknownScheme(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Dial(context.Background(),
		types.Address{Scheme: "quic", Host: "127.0.0.1", Port: 1},
		interfaces.DefaultDialOptions())
	assert.ErrorIs(t, err, types.ErrSchemeUnsupported)
}

func TestListenUnsupportedScheme(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Listen(types.MustParseAddress("tor://abcdef.onion:25551"))
	assert.ErrorIs(t, err, types.ErrListenUnsupported)
}

func TestUnixRoundTrip(t *testing.T) {
	r := newTestRegistry(t)

	sock := t.TempDir() + "/t.sock"
	addr := types.MustParseAddress("unix://" + sock)

	l, err := r.Listen(addr)
	require.NoError(t, err)
	defer l.Close()

	go func() {
		c, err := l.Accept()
		if err == nil {
			_, _ = c.Write([]byte("ok"))
			_ = c.Close()
		}
	}()

	conn, err := r.Dial(context.Background(), addr, interfaces.DefaultDialOptions())
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 2)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf))
}
