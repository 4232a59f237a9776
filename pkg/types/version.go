package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
//                              Version - 协议版本
// ============================================================================

// Version 协议版本（semver 三元组）
//
// 握手时双方交换版本，主版本不同即判定不兼容。
type Version struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
	Patch uint32 `json:"patch"`
}

// ProtocolVersion 当前网络协议版本
var ProtocolVersion = Version{Major: 1, Minor: 0, Patch: 0}

// String 返回 "major.minor.patch" 形式
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CompatibleWith 检查版本兼容性（主版本相等即兼容）
func (v Version) CompatibleWith(other Version) bool {
	return v.Major == other.Major
}

// ParseVersion 解析 "major.minor.patch" 形式的版本字符串
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("无效的版本格式: %q", s)
	}
	nums := make([]uint32, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("无效的版本段 %q: %w", p, err)
		}
		nums[i] = uint32(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}
