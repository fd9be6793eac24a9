// Package cache Redis 缓存模块单元测试
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dumeirei/storefront-settlement/internal/common/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis 创建 miniredis 测试实例
func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestInit_Success(t *testing.T) {
	s := setupMiniRedis(t)

	cfg := &config.RedisConfig{
		Host:        s.Host(),
		Port:        s.Server().Addr().Port,
		PoolSize:    10,
		DialTimeout: 5,
		ReadTimeout: 3,
	}

	client, err := Init(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, client)
	assert.Same(t, client, GetClient())
	t.Cleanup(func() {
		_ = Close()
	})
}

func TestInit_ConnectionFailed(t *testing.T) {
	cfg := &config.RedisConfig{
		Host:        "invalid-host",
		Port:        9999,
		DialTimeout: 1,
	}

	client, err := Init(cfg)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect redis")
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "redeem:code:123456", BuildKey(KeyPrefixRedeemCode, "123456"))
	assert.Equal(t, "ratelimit", BuildKey(KeyPrefixRateLimit))
}

func TestReserver(t *testing.T) {
	s := setupMiniRedis(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := NewReserver(client, KeyPrefixRedeemCode, 30*time.Second)
	ctx := context.Background()

	t.Run("首次占位成功", func(t *testing.T) {
		ok, err := r.Reserve(ctx, "654321")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, s.Exists("redeem:code:654321"))
	})

	t.Run("重复占位失败", func(t *testing.T) {
		ok, err := r.Reserve(ctx, "654321")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("释放后可再次占位", func(t *testing.T) {
		require.NoError(t, r.Release(ctx, "654321"))
		ok, err := r.Reserve(ctx, "654321")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("过期后自动释放", func(t *testing.T) {
		ok, err := r.Reserve(ctx, "111111")
		require.NoError(t, err)
		require.True(t, ok)

		s.FastForward(31 * time.Second)

		ok, err = r.Reserve(ctx, "111111")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
