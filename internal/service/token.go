package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenByteLength 令牌随机字节数（编码后为 64 位十六进制）
const tokenByteLength = 32

// GenerateToken 生成登录令牌
// 使用 crypto/rand，熵为 256 位；唯一性靠数据库唯一索引兜底，
// 冲突时由调用方重新生成。
func GenerateToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成令牌失败: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenFragment 返回令牌的前若干位（日志与告警中避免记录完整令牌）
func TokenFragment(token string, length int) string {
	if length <= 0 || len(token) <= length {
		return token
	}
	return token[:length]
}
