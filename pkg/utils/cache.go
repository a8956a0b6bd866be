package utils

import (
	"sync"
	"time"
)

// TTLCache 带过期时间的进程内缓存
// 使用 sync.Map 保证并发安全，过期采取懒删除
type TTLCache struct {
	store sync.Map
}

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      interface{}
	expiration int64
}

// NewTTLCache 创建缓存实例
func NewTTLCache() *TTLCache {
	return &TTLCache{}
}

// Set 设置缓存，ttl 为 0 表示永不过期（需显式 Delete）
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	c.store.Store(key, cacheItem{value: value, expiration: exp})
}

// Get 获取缓存并验证是否过期
func (c *TTLCache) Get(key string) (interface{}, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		return nil, false
	}

	item := val.(cacheItem)

	// 检查是否过期
	if item.expiration > 0 && time.Now().UnixNano() > item.expiration {
		c.store.Delete(key) // 懒删除
		return nil, false
	}

	return item.value, true
}

// Delete 删除缓存
func (c *TTLCache) Delete(key string) {
	c.store.Delete(key)
}
