package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCompatibility(t *testing.T) {
	v1 := Version{Major: 1, Minor: 0, Patch: 0}
	v1b := Version{Major: 1, Minor: 7, Patch: 3}
	v2 := Version{Major: 2, Minor: 0, Patch: 0}

	assert.True(t, v1.CompatibleWith(v1b), "次版本差异不影响兼容性")
	assert.True(t, v1b.CompatibleWith(v1))
	assert.False(t, v1.CompatibleWith(v2), "主版本不同即不兼容")
	assert.False(t, v2.CompatibleWith(v1))
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)
	assert.Equal(t, "1.2.3", v.String())

	for _, bad := range []string{"", "1.2", "1.2.3.4", "a.b.c", "-1.0.0"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, "ParseVersion(%q) 应当失败", bad)
	}
}

func TestNodeIDRoundTrip(t *testing.T) {
	var id NodeID
	for i := range id {
		id[i] = byte(i)
	}

	parsed, err := ParseNodeID(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))

	_, err = ParseNodeID("")
	assert.Error(t, err)
	_, err = ParseNodeID("0OIl") // 非法 base58 字符
	assert.Error(t, err)
	_, err = ParseNodeID("abc") // 长度不足 32 字节
	assert.Error(t, err)
}
