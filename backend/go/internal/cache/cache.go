// Package cache 提供轮次回放与数据查询去重使用的键值缓存。
package cache

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache 是带过期时间的字节缓存。未命中时返回 ok=false 且 err 为 nil。
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Canonical 把 v 编码为规范 JSON：对象键有序，无多余空白。
// encoding/json 对 map 的键排序，结构体按字段顺序输出，因此相同内容总是得到相同的字节。
func Canonical(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化缓存键失败: %w", err)
	}
	// 二次解析后再编码，使结构体与 map 表示的同一内容得到一致的结果
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("序列化缓存键失败: %w", err)
	}
	return json.Marshal(generic)
}

// Fingerprint 返回规范 JSON 的 SHA-256 十六进制摘要。
func Fingerprint(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// MD5Key 返回 prefix 加规范 JSON 的 MD5 摘要，用于数据查询去重。
func MD5Key(prefix string, v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return prefix + hex.EncodeToString(sum[:]), nil
}

// GetJSON 读取并解析缓存值。
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("解析缓存值失败: %w", err)
	}
	return true, nil
}

// SetJSON 序列化并写入缓存。
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化缓存值失败: %w", err)
	}
	return c.Set(ctx, key, raw, ttl)
}
