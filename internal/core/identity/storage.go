package identity

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const keyPEMType = "PRIVATE KEY"

// loadKeyFile 从 PEM 文件加载 ed25519 私钥（PKCS#8）
func loadKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != keyPEMType {
		return nil, fmt.Errorf("密钥文件 %s 不是合法的 PEM 私钥", path)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}

	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("密钥类型不是 ed25519: %T", key)
	}
	return priv, nil
}

// saveKeyFile 将私钥写入 PEM 文件（0600）
func saveKeyFile(path string, priv ed25519.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("编码私钥失败: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	data := pem.EncodeToMemory(&pem.Block{Type: keyPEMType, Bytes: der})
	return os.WriteFile(path, data, 0o600)
}
