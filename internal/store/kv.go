package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 简单字符串缓存（Redis）
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// ElderCacheKey 已确认存在的长者: careplan:elder:{elder_id}
func ElderCacheKey(elderID string) string {
	return "careplan:elder:" + elderID
}

// ElderCache 长者存在性缓存，只记录正向结果；nil 或底层 KV 为空时不缓存
type ElderCache struct {
	kv  KV
	ttl time.Duration
}

func NewElderCache(kv KV, ttl time.Duration) *ElderCache {
	return &ElderCache{kv: kv, ttl: ttl}
}

// Known 缓存命中返回 true；未命中返回 (false, nil)
func (c *ElderCache) Known(ctx context.Context, elderID string) (bool, error) {
	if c == nil || c.kv == nil {
		return false, nil
	}
	if _, err := c.kv.Get(ctx, ElderCacheKey(elderID)); err != nil {
		if errors.Is(err, ErrMiss) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remember 记录长者存在
func (c *ElderCache) Remember(ctx context.Context, elderID string) error {
	if c == nil || c.kv == nil {
		return nil
	}
	return c.kv.Set(ctx, ElderCacheKey(elderID), "1", c.ttl)
}
