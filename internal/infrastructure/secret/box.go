package secret

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fernet/fernet-go"
	"go.uber.org/zap"
)

// Prefix 密文标记, 带此前缀的字符串视为已加密
const Prefix = "ENC:"

// Box 本地对称加密盒
// nil Box 退化为恒等变换, 明文进明文出
type Box struct {
	key    *fernet.Key
	logger *zap.Logger
}

// NewBox 加载或生成密钥文件
// 密钥损坏或不可读属于致命错误, 由调用方决定是否继续
func NewBox(keyPath string, logger *zap.Logger) (*Box, error) {
	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateKey(keyPath, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", keyPath, err)
	}

	key, err := fernet.DecodeKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("corrupt key file %s: %w", keyPath, err)
	}

	return &Box{key: key, logger: logger}, nil
}

// generateKey 首次启动生成密钥, 文件只留属主读写权限
func generateKey(keyPath string, logger *zap.Logger) (*Box, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	if dir := filepath.Dir(keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create key dir: %w", err)
		}
	}
	if err := os.WriteFile(keyPath, []byte(key.Encode()), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	logger.Info("Encryption key generated", zap.String("path", keyPath))
	return &Box{key: &key, logger: logger}, nil
}

// Encrypt 加密字符串, 输出带 ENC: 前缀
// 加密不可用时原样返回明文
func (b *Box) Encrypt(plaintext string) string {
	if b == nil || b.key == nil || plaintext == "" {
		return plaintext
	}
	if strings.HasPrefix(plaintext, Prefix) {
		return plaintext
	}

	token, err := fernet.EncryptAndSign([]byte(plaintext), b.key)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("Encrypt failed, storing plaintext", zap.Error(err))
		}
		return plaintext
	}
	return Prefix + string(token)
}

// Decrypt 解密字符串
// 无 ENC: 前缀或无法解密时原样返回
func (b *Box) Decrypt(s string) string {
	if !strings.HasPrefix(s, Prefix) {
		return s
	}
	if b == nil || b.key == nil {
		return s
	}

	msg := fernet.VerifyAndDecrypt([]byte(strings.TrimPrefix(s, Prefix)), 0, []*fernet.Key{b.key})
	if msg == nil {
		if b.logger != nil {
			b.logger.Warn("Decrypt failed, returning ciphertext")
		}
		return s
	}
	return string(msg)
}

// Available 加密是否可用
func (b *Box) Available() bool {
	return b != nil && b.key != nil
}
