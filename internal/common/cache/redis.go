// Package cache 提供 Redis 连接与短期占位
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dumeirei/storefront-settlement/internal/common/config"
	"github.com/redis/go-redis/v9"
)

var rdb *redis.Client

// Init 初始化 Redis 连接
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	return rdb, nil
}

// GetClient 获取 Redis 客户端
func GetClient() *redis.Client {
	return rdb
}

// Close 关闭 Redis 连接
func Close() error {
	if rdb != nil {
		return rdb.Close()
	}
	return nil
}

// 缓存键前缀
const (
	KeyPrefixRedeemCode = "redeem:code"
	KeyPrefixRateLimit  = "ratelimit"
)

// BuildKey 构建缓存键
func BuildKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// Reserver 基于 SETNX 的短期占位，用于跨请求互斥同一个值
type Reserver struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewReserver 创建占位器
func NewReserver(client *redis.Client, prefix string, ttl time.Duration) *Reserver {
	return &Reserver{client: client, prefix: prefix, ttl: ttl}
}

// Reserve 占位，返回 false 表示已被其他请求占用
func (r *Reserver) Reserve(ctx context.Context, value string) (bool, error) {
	return r.client.SetNX(ctx, BuildKey(r.prefix, value), 1, r.ttl).Result()
}

// Release 释放占位
func (r *Reserver) Release(ctx context.Context, value string) error {
	return r.client.Del(ctx, BuildKey(r.prefix, value)).Err()
}
