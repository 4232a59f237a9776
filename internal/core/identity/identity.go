// Package identity 提供节点身份管理
//
// 身份是一把持久的 ed25519 密钥；NodeID 由公钥的 SHA256 派生，
// 不可伪造。TLS 方案的传输层证书也由这把密钥签发。
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/overmesh/go-overmesh/pkg/types"
)

// Identity 节点身份
type Identity struct {
	priv ed25519.PrivateKey
	id   types.NodeID
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("生成身份密钥失败: %w", err)
	}
	return FromPrivateKey(priv), nil
}

// FromPrivateKey 从已有私钥构造身份
func FromPrivateKey(priv ed25519.PrivateKey) *Identity {
	return &Identity{
		priv: priv,
		id:   DeriveNodeID(priv.Public().(ed25519.PublicKey)),
	}
}

// Load 加载身份
//
// keyFile 为空时生成临时身份（不落盘）；文件不存在时生成并保存。
func Load(keyFile string) (*Identity, error) {
	if keyFile == "" {
		return Generate()
	}

	priv, err := loadKeyFile(keyFile)
	if err == nil {
		return FromPrivateKey(priv), nil
	}

	ident, genErr := Generate()
	if genErr != nil {
		return nil, genErr
	}
	if saveErr := saveKeyFile(keyFile, ident.priv); saveErr != nil {
		return nil, fmt.Errorf("保存身份密钥失败: %w", saveErr)
	}
	return ident, nil
}

// ID 返回节点标识
func (i *Identity) ID() types.NodeID {
	return i.id
}

// PublicKey 返回身份公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// PrivateKey 返回身份私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.priv
}

// Sign 使用身份私钥签名
func (i *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(i.priv, msg)
}

// Verify 校验签名
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

// DeriveNodeID 由公钥派生 NodeID（SHA256）
func DeriveNodeID(pub ed25519.PublicKey) types.NodeID {
	return types.NodeID(sha256.Sum256(pub))
}
