package liveness

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/internal/core/session"
	"github.com/overmesh/go-overmesh/internal/core/wire"
	"github.com/overmesh/go-overmesh/pkg/interfaces"
	"github.com/overmesh/go-overmesh/pkg/types"
)

type pipeConn struct {
	net.Conn
}

func (p *pipeConn) CloseWrite() error { return p.Conn.Close() }

var _ interfaces.Conn = (*pipeConn)(nil)

func testSession() (*session.Session, interfaces.Conn) {
	local, remote := net.Pipe()
	var peer types.NodeID
	peer[0] = 1
	s := session.New(&pipeConn{local}, peer, types.ProtocolVersion,
		types.DirOutbound, types.MustParseAddress("tcp+tls://203.0.113.1:9000"))
	return s, &pipeConn{remote}
}

func testService(clk clock.Clock) *Service {
	return New(config.LivenessConfig{
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  20 * time.Second,
	}, clk, nil)
}

func TestHeartbeatSendsPings(t *testing.T) {
	mock := clock.NewMock()
	svc := testService(mock)
	defer svc.Stop()

	s, remote := testSession()
	defer s.Close()

	var pings atomic.Int32
	go func() {
		for {
			typ, _, err := wire.ReadRecord(remote)
			if err != nil {
				return
			}
			if typ == wire.RecordPing {
				pings.Add(1)
			}
		}
	}()

	svc.StartHeartbeat(s)

	require.Eventually(t, func() bool {
		mock.Add(10 * time.Second)
		return pings.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHeartbeatEvictsOnSilence(t *testing.T) {
	mock := clock.NewMock()
	svc := testService(mock)
	defer svc.Stop()

	s, remote := testSession()

	// 对端排空 ping 但从不回 pong
	go func() {
		for {
			if _, _, err := wire.ReadRecord(remote); err != nil {
				return
			}
		}
	}()

	svc.StartHeartbeat(s)

	require.Eventually(t, func() bool {
		mock.Add(10 * time.Second)
		return !s.IsAlive()
	}, 2*time.Second, 20*time.Millisecond, "窗口期无 pong 应驱逐")
	assert.ErrorIs(t, s.CloseReason(), ErrHeartbeatTimeout)
}

func TestHeartbeatPongKeepsAlive(t *testing.T) {
	mock := clock.NewMock()
	svc := testService(mock)
	defer svc.Stop()

	s, remote := testSession()
	defer s.Close()
	s.StartReadLoop()

	// 对端对每个 ping 回 pong
	go func() {
		for {
			typ, payload, err := wire.ReadRecord(remote)
			if err != nil {
				return
			}
			if typ != wire.RecordPing {
				continue
			}
			var ping wire.PingRecord
			if wire.DecodeJSON(payload, &ping) != nil {
				continue
			}
			_ = wire.WriteJSON(remote, wire.RecordPong, &wire.PongRecord{Nonce: ping.Nonce})
		}
	}()

	svc.StartHeartbeat(s)

	// 推进远超窗口期的时长，会话保持存活
	for i := 0; i < 8; i++ {
		mock.Add(10 * time.Second)
		time.Sleep(20 * time.Millisecond)
	}
	assert.True(t, s.IsAlive())
}

func TestStopHeartbeatLeavesSessionAlive(t *testing.T) {
	mock := clock.NewMock()
	svc := testService(mock)

	s, remote := testSession()
	defer s.Close()
	go func() {
		for {
			if _, _, err := wire.ReadRecord(remote); err != nil {
				return
			}
		}
	}()

	svc.StartHeartbeat(s)
	svc.StopHeartbeat(s.ID())

	// 循环已停：推进时钟不再驱逐
	for i := 0; i < 6; i++ {
		mock.Add(10 * time.Second)
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, s.IsAlive())
}
