package hosts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmesh/go-overmesh/internal/config"
	"github.com/overmesh/go-overmesh/pkg/types"
)

func testPolicy(t *testing.T, mutate func(*config.NetConfig)) *Policy {
	t.Helper()
	cfg := config.DefaultNetConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewPolicy(cfg)
	require.NoError(t, err)
	return p
}

// ============================================================================
//                              策略
// ============================================================================

func TestPolicyWhitelist(t *testing.T) {
	p := testPolicy(t, nil) // 默认仅允许 tcp+tls

	assert.NoError(t, p.CheckDialable(types.MustParseAddress("tcp+tls://203.0.113.1:9000")))
	assert.ErrorIs(t, p.CheckDialable(types.MustParseAddress("tcp://203.0.113.1:9000")),
		types.ErrSchemeNotWhitelisted)
	assert.ErrorIs(t, p.CheckDialable(types.MustParseAddress("tor://abcdef.onion:25551")),
		types.ErrSchemeNotWhitelisted)
}

func TestPolicyMixing(t *testing.T) {
	// 入站接受 tcp，混合开启：tcp 可出站
	p := testPolicy(t, func(cfg *config.NetConfig) {
		cfg.Inbound = []string{"tcp://0.0.0.0:9000"}
	})
	assert.NoError(t, p.CheckDialable(types.MustParseAddress("tcp://203.0.113.1:9000")))

	// 混合关闭：同一地址拒绝
	p = testPolicy(t, func(cfg *config.NetConfig) {
		cfg.Inbound = []string{"tcp://0.0.0.0:9000"}
		cfg.TransportMixing = false
	})
	assert.ErrorIs(t, p.CheckDialable(types.MustParseAddress("tcp://203.0.113.1:9000")),
		types.ErrTransportMixingDenied)
}

func TestPolicyLocalnet(t *testing.T) {
	p := testPolicy(t, nil)
	assert.ErrorIs(t, p.CheckDialable(types.MustParseAddress("tcp+tls://127.0.0.1:9000")),
		types.ErrLocalnetDenied)
	assert.ErrorIs(t, p.CheckDialable(types.MustParseAddress("tcp+tls://192.168.1.5:9000")),
		types.ErrLocalnetDenied)

	p = testPolicy(t, func(cfg *config.NetConfig) { cfg.Localnet = true })
	assert.NoError(t, p.CheckDialable(types.MustParseAddress("tcp+tls://127.0.0.1:9000")))
}

// ============================================================================
//                              存储
// ============================================================================

func TestUpsertIdempotent(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	addr := types.MustParseAddress("tcp+tls://203.0.113.1:9000")
	assert.True(t, s.Upsert(addr, types.ProvenanceSeed))
	assert.False(t, s.Upsert(addr, types.ProvenanceGossip), "重复写入不覆盖")
	assert.Equal(t, 1, s.Len())

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, types.ProvenanceSeed, snap[0].Provenance, "来源保留首次写入")
}

func TestOwnAddressNeverStored(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	own := types.MustParseAddress("tcp+tls://203.0.113.9:9000")
	s.AddOwn(own)

	assert.False(t, s.Upsert(own, types.ProvenanceGossip))
	assert.True(t, s.IsOwn(own))
	assert.Equal(t, 0, s.Len())

	// 已有条目在登记为自身地址后被剔除
	other := types.MustParseAddress("tcp+tls://203.0.113.10:9000")
	s.Upsert(other, types.ProvenanceSeed)
	s.AddOwn(other)
	assert.Equal(t, 0, s.Len())
}

func TestCandidateSelection(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	a := types.MustParseAddress("tcp+tls://203.0.113.1:9000")
	b := types.MustParseAddress("tcp+tls://203.0.113.2:9000")
	s.Upsert(a, types.ProvenanceSeed)
	s.Upsert(b, types.ProvenanceSeed)

	// 两次选取拿到两个不同地址（第一个已 pending）
	first, err := s.Candidate(nil)
	require.NoError(t, err)
	second, err := s.Candidate(nil)
	require.NoError(t, err)
	assert.False(t, first.Equal(second))

	// 全部 pending 后无候选
	_, err = s.Candidate(nil)
	assert.ErrorIs(t, err, types.ErrNoCandidate)

	// 释放后重新可选
	s.ClearPending(first)
	again, err := s.Candidate(nil)
	require.NoError(t, err)
	assert.True(t, again.Equal(first))
}

func TestCandidateExcludesOccupied(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	a := types.MustParseAddress("tcp+tls://203.0.113.1:9000")
	s.Upsert(a, types.ProvenanceSeed)

	exclude := map[string]struct{}{a.Key(): {}}
	_, err := s.Candidate(exclude)
	assert.ErrorIs(t, err, types.ErrNoCandidate)
}

func TestCandidateSchemeFiltered(t *testing.T) {
	// 种子使用未白名单方案时槽位永远不得拨号
	s := NewStore(testPolicy(t, nil))
	s.Upsert(types.MustParseAddress("tcp://203.0.113.1:9000"), types.ProvenanceSeed)

	_, err := s.Candidate(nil)
	assert.ErrorIs(t, err, types.ErrNoCandidate)

	// 出现兼容地址后恢复
	ok := types.MustParseAddress("tcp+tls://203.0.113.2:9000")
	s.Upsert(ok, types.ProvenanceSeed)
	got, err := s.Candidate(nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(ok))
}

func TestCandidateDeprioritizesRecentFailure(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	a := types.MustParseAddress("tcp+tls://203.0.113.1:9000")
	b := types.MustParseAddress("tcp+tls://203.0.113.2:9000")
	s.Upsert(a, types.ProvenanceSeed)
	s.Upsert(b, types.ProvenanceSeed)

	s.RecordFailure(a)

	got, err := s.Candidate(nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(b), "刚失败的地址应降权")
}

func TestRecordSuccessResetsFailures(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	a := types.MustParseAddress("tcp+tls://203.0.113.1:9000")
	s.Upsert(a, types.ProvenanceSeed)
	s.RecordFailure(a)
	s.RecordFailure(a)
	s.RecordSuccess(a)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].Failures)
	assert.False(t, snap[0].LastSuccess.IsZero())
}

func TestGossipDedup(t *testing.T) {
	s := NewStore(testPolicy(t, nil))

	addrs := []types.Address{
		types.MustParseAddress("tcp+tls://203.0.113.1:9000"),
		types.MustParseAddress("tcp+tls://203.0.113.2:9000"),
	}
	assert.Equal(t, 2, s.UpsertGossip(addrs))
	assert.Equal(t, 0, s.UpsertGossip(addrs), "重复传播经 LRU 去重")
	assert.Equal(t, 2, s.Len())
}
