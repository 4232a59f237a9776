// Package security 提供基于身份密钥的 TLS 安全层
//
// TLS 方案（tcp+tls / tor+tls）在传输层内执行证书握手。
// 证书是由节点身份私钥签发的临时自签名证书，不走 PKI：
// 对端通过证书公钥派生 NodeID 完成认证（trust-on-first-use，
// 以协议身份为锚，而非 CA）。
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/overmesh/go-overmesh/internal/core/identity"
	"github.com/overmesh/go-overmesh/pkg/types"
)

// certValidity 证书有效期
//
// 证书是临时的，每次启动重新签发；取一年是为了覆盖长期运行的
// 守护进程，前移一小时容忍时钟偏差。
const certValidity = 365 * 24 * time.Hour

// GenerateCertificate 由身份私钥生成自签名证书
//
// 证书公钥与身份公钥一致，保证 NodeID 可从证书派生且不可伪造。
func GenerateCertificate(ident *identity.Identity) (*tls.Certificate, error) {
	if ident == nil {
		return nil, fmt.Errorf("identity 未设置")
	}

	priv := ident.PrivateKey()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"OverMesh"},
			CommonName:   "OverMesh Node " + ident.ID().ShortString(),
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	if err != nil {
		return nil, fmt.Errorf("创建证书失败: %w", err)
	}

	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("解析证书失败: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, nil
}

// DeriveNodeIDFromCert 从证书公钥派生 NodeID
//
// 这是对端身份的唯一可信来源。
func DeriveNodeIDFromCert(cert *x509.Certificate) (types.NodeID, error) {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return types.EmptyNodeID, fmt.Errorf("证书公钥类型不受支持: %T", cert.PublicKey)
	}
	return identity.DeriveNodeID(pub), nil
}

// VerifyPeerCertificate 验证对端证书链
//
// 验证逻辑：
//  1. 必须恰好有一张自签名证书
//  2. 证书在有效期内
//  3. 自签名完整（公钥能验证自身签名）
//  4. 返回由公钥派生的 NodeID，供握手层与协议身份交叉核对
func VerifyPeerCertificate(rawCerts [][]byte) (types.NodeID, error) {
	if len(rawCerts) != 1 {
		return types.EmptyNodeID, fmt.Errorf("对端证书数量异常: %d", len(rawCerts))
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return types.EmptyNodeID, fmt.Errorf("解析对端证书失败: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return types.EmptyNodeID, fmt.Errorf("对端证书不在有效期内")
	}

	// 直接校验自签名：证书不是 CA，不能走 CheckSignatureFrom 的
	// 父子链路径（那要求父证书具备 IsCA + KeyUsageCertSign）
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return types.EmptyNodeID, fmt.Errorf("对端证书自签名无效: %w", err)
	}

	return DeriveNodeIDFromCert(cert)
}
