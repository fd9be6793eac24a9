package shop

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-settlement/internal/models"
)

const sampleYAML = `
delivery:
  waimai:
    fee: 6
    free_threshold: 88
refund_sub_mch_id: "1900001234"
member_levels:
  - level: 2
    threshold: 300
    coupons:
      - template_id: 12
        count: 2
  - level: 1
    threshold: 100
    coupons:
      - template_id: 11
        count: 1
      - template_id: 99
        count: 0
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	t.Run("配送规则覆盖默认值", func(t *testing.T) {
		rule := cfg.DeliveryRuleFor(models.ChannelDelivery)
		assert.True(t, rule.Fee.Equal(decimal.NewFromInt(6)))
		assert.True(t, rule.FreeThreshold.Equal(decimal.NewFromInt(88)))

		express := cfg.DeliveryRuleFor(models.ChannelExpress)
		assert.True(t, express.Fee.Equal(decimal.NewFromInt(10)))
	})

	t.Run("自提无配送费", func(t *testing.T) {
		rule := cfg.DeliveryRuleFor(models.ChannelPickup)
		assert.True(t, rule.Fee.IsZero())
	})

	t.Run("等级按序排列并忽略零数量赠券", func(t *testing.T) {
		require.Len(t, cfg.MemberLevels, 2)
		assert.Equal(t, 1, cfg.MemberLevels[0].Level)
		assert.Len(t, cfg.MemberLevels[0].Coupons, 1)

		l2, ok := cfg.Level(2)
		require.True(t, ok)
		assert.Equal(t, int64(2), l2.Coupons[0].Count)
	})

	assert.Equal(t, "1900001234", cfg.RefundSubMchID)
}

func TestParse_DecimalAmounts(t *testing.T) {
	cfg, err := Parse([]byte(`
delivery:
  waimai:
    fee: 0.1
    free_threshold: 88.88
  kuaidi:
    fee: "2.335"
member_levels:
  - level: 1
    threshold: 99.99
`))
	require.NoError(t, err)

	t.Run("小数金额按原文精确解析", func(t *testing.T) {
		rule := cfg.DeliveryRuleFor(models.ChannelDelivery)
		assert.Equal(t, "0.1", rule.Fee.String())
		assert.True(t, rule.Fee.Equal(decimal.RequireFromString("0.1")))
		assert.Equal(t, "88.88", rule.FreeThreshold.String())
		assert.Equal(t, "99.99", cfg.MemberLevels[0].Threshold.String())
	})

	t.Run("超过两位小数四舍五入", func(t *testing.T) {
		assert.Equal(t, "2.34", cfg.DeliveryRuleFor(models.ChannelExpress).Fee.StringFixed(2))
	})

	t.Run("未配置门槛为零", func(t *testing.T) {
		assert.True(t, cfg.DeliveryRuleFor(models.ChannelExpress).FreeThreshold.IsZero())
	})
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"未知配送方式", "delivery:\n  drone:\n    fee: 1\n"},
		{"等级越界", "member_levels:\n  - level: 5\n    threshold: 10\n"},
		{"门槛倒挂", "member_levels:\n  - level: 1\n    threshold: 300\n  - level: 2\n    threshold: 100\n"},
		{"非法YAML", "delivery: ["},
		{"金额非数字", "delivery:\n  waimai:\n    fee: abc\n"},
		{"配送费为负", "delivery:\n  waimai:\n    fee: -1\n"},
		{"门槛为负", "member_levels:\n  - level: 1\n    threshold: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFileProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("文件不存在使用默认配置", func(t *testing.T) {
		p, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		cfg, err := p.Get(ctx)
		require.NoError(t, err)
		assert.Len(t, cfg.MemberLevels, 4)
		assert.Empty(t, cfg.RefundSubMchID)
	})

	t.Run("重新加载", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shop.yaml")
		require.NoError(t, os.WriteFile(path, []byte("refund_sub_mch_id: a\n"), 0o644))
		p, err := NewFileProvider(path)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("refund_sub_mch_id: b\n"), 0o644))
		require.NoError(t, p.Reload())
		cfg, _ := p.Get(ctx)
		assert.Equal(t, "b", cfg.RefundSubMchID)
	})
}
