package tcp

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/internal/core/security"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

func TestDialListenPlain(t *testing.T) {
	tr := NewTransport(nil)
	defer tr.Close()

	l, err := tr.Listen(types.MustParseAddress("tcp://127.0.0.1:0"))
	require.NoError(t, err)
	defer l.Close()

	assert.NotZero(t, l.Addr().Port, "端口 0 应被替换为实际端口")

	accepted := make(chan interfaces.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := tr.Dial(context.Background(), l.Addr(), interfaces.DefaultDialOptions())
	require.NoError(t, err)
	defer conn.Close()

	server := <-accepted
	defer server.Close()

	// 双向传输
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	// 写半关闭后对端读到 EOF，读方向仍可用
	require.NoError(t, conn.CloseWrite())
	_, err = server.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDialListenTLS(t *testing.T) {
	identA, err := identity.Generate()
	require.NoError(t, err)
	identB, err := identity.Generate()
	require.NoError(t, err)

	certA, err := security.GenerateCertificate(identA)
	require.NoError(t, err)
	certB, err := security.GenerateCertificate(identB)
	require.NoError(t, err)

	trA := NewTransport(security.NewProvider(certA))
	trB := NewTransport(security.NewProvider(certB))
	defer trA.Close()
	defer trB.Close()

	l, err := trB.Listen(types.MustParseAddress("tcp+tls://127.0.0.1:0"))
	require.NoError(t, err)
	defer l.Close()

	listenAddr := l.Addr()
	listenAddr.Scheme = types.SchemeTCPTLS

	type acceptResult struct {
		conn interfaces.Conn
		data []byte
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		// 服务端 TLS 握手在首次读时完成
		buf := make([]byte, 5)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		accepted <- acceptResult{conn: c, data: buf}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := trA.Dial(ctx, listenAddr, interfaces.DefaultDialOptions())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case res := <-accepted:
		assert.Equal(t, "hello", string(res.data))
		res.conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("等待 TLS 入站数据超时")
	}
}

func TestDialRefused(t *testing.T) {
	tr := NewTransport(nil)
	defer tr.Close()

	// 先监听再关闭，拿到一个几乎必然空闲的端口
	l, err := tr.Listen(types.MustParseAddress("tcp://127.0.0.1:0"))
	require.NoError(t, err)
	addr := l.Addr()
	require.NoError(t, l.Close())

	_, err = tr.Dial(context.Background(), addr, interfaces.DialOptions{Timeout: time.Second})
	assert.ErrorIs(t, err, types.ErrConnectRefused)
}

func TestSchemes(t *testing.T) {
	assert.Equal(t, []types.Scheme{types.SchemeTCP}, NewTransport(nil).Schemes())

	ident, err := identity.Generate()
	require.NoError(t, err)
	cert, err := security.GenerateCertificate(ident)
	require.NoError(t, err)
	tr := NewTransport(security.NewProvider(cert))
	assert.Contains(t, tr.Schemes(), types.SchemeTCPTLS)
}
