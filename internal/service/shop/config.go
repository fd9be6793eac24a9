// Package shop 提供门店配置（配送费、退款子商户号、会员等级）
package shop

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dumeirei/storefront-settlement/internal/models"
)

// Provider 门店配置提供者
type Provider interface {
	Get(ctx context.Context) (*Config, error)
}

// DeliveryRule 配送费规则，满 FreeThreshold 免配送费
type DeliveryRule struct {
	Fee           decimal.Decimal
	FreeThreshold decimal.Decimal
}

// CouponGrant 升级赠券
type CouponGrant struct {
	TemplateID int64
	Count      int64
}

// MemberLevel 会员等级门槛与赠券
type MemberLevel struct {
	Level     int
	Threshold decimal.Decimal
	Coupons   []CouponGrant
}

// Config 门店配置
type Config struct {
	Delivery       map[string]DeliveryRule
	RefundSubMchID string
	MemberLevels   []MemberLevel
}

// DeliveryRuleFor 获取履约方式对应的配送规则，自提无配送费
func (c *Config) DeliveryRuleFor(channel string) DeliveryRule {
	if channel == models.ChannelPickup {
		return DeliveryRule{}
	}
	return c.Delivery[channel]
}

// Level 获取等级配置
func (c *Config) Level(level int) (MemberLevel, bool) {
	for _, l := range c.MemberLevels {
		if l.Level == level {
			return l, true
		}
	}
	return MemberLevel{}, false
}

// DefaultConfig 默认门店配置
func DefaultConfig() *Config {
	return &Config{
		Delivery: map[string]DeliveryRule{
			models.ChannelDelivery: {Fee: decimal.NewFromInt(5), FreeThreshold: decimal.NewFromInt(88)},
			models.ChannelExpress:  {Fee: decimal.NewFromInt(10), FreeThreshold: decimal.NewFromInt(99)},
		},
		MemberLevels: []MemberLevel{
			{Level: 1, Threshold: decimal.NewFromInt(100)},
			{Level: 2, Threshold: decimal.NewFromInt(300)},
			{Level: 3, Threshold: decimal.NewFromInt(500)},
			{Level: 4, Threshold: decimal.NewFromInt(1000)},
		},
	}
}

// fileConfig YAML 文件结构，金额按原文解析为 decimal
type fileConfig struct {
	Delivery map[string]struct {
		Fee           decimal.Decimal `yaml:"fee"`
		FreeThreshold decimal.Decimal `yaml:"free_threshold"`
	} `yaml:"delivery"`
	RefundSubMchID string `yaml:"refund_sub_mch_id"`
	MemberLevels   []struct {
		Level     int             `yaml:"level"`
		Threshold decimal.Decimal `yaml:"threshold"`
		Coupons   []struct {
			TemplateID int64 `yaml:"template_id"`
			Count      int64 `yaml:"count"`
		} `yaml:"coupons"`
	} `yaml:"member_levels"`
}

// Parse 解析 YAML 配置，未配置的部分使用默认值
func Parse(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing shop config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.RefundSubMchID = fc.RefundSubMchID

	for channel, rule := range fc.Delivery {
		if channel != models.ChannelDelivery && channel != models.ChannelExpress {
			return nil, fmt.Errorf("unknown delivery channel %q", channel)
		}
		if rule.Fee.IsNegative() || rule.FreeThreshold.IsNegative() {
			return nil, fmt.Errorf("delivery %q amounts must not be negative", channel)
		}
		cfg.Delivery[channel] = DeliveryRule{
			Fee:           rule.Fee.Round(2),
			FreeThreshold: rule.FreeThreshold.Round(2),
		}
	}

	if len(fc.MemberLevels) > 0 {
		levels := make([]MemberLevel, 0, len(fc.MemberLevels))
		for _, l := range fc.MemberLevels {
			if l.Level < 1 || l.Level > 4 {
				return nil, fmt.Errorf("member level %d out of range", l.Level)
			}
			if l.Threshold.IsNegative() {
				return nil, fmt.Errorf("member level %d threshold must not be negative", l.Level)
			}
			ml := MemberLevel{Level: l.Level, Threshold: l.Threshold.Round(2)}
			for _, c := range l.Coupons {
				if c.Count > 0 {
					ml.Coupons = append(ml.Coupons, CouponGrant{TemplateID: c.TemplateID, Count: c.Count})
				}
			}
			levels = append(levels, ml)
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
		for i := 1; i < len(levels); i++ {
			if levels[i].Threshold.LessThan(levels[i-1].Threshold) {
				return nil, fmt.Errorf("member level %d threshold below level %d", levels[i].Level, levels[i-1].Level)
			}
		}
		cfg.MemberLevels = levels
	}

	return cfg, nil
}

// FileProvider 从 YAML 文件加载门店配置
type FileProvider struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewFileProvider 加载配置文件，文件不存在时使用默认配置
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload 重新读取配置文件
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	var cfg *Config
	switch {
	case os.IsNotExist(err):
		cfg = DefaultConfig()
	case err != nil:
		return fmt.Errorf("reading shop config %s: %w", p.path, err)
	default:
		if cfg, err = Parse(data); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// Get 获取当前配置
func (p *FileProvider) Get(_ context.Context) (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, nil
}

// StaticProvider 固定配置
type StaticProvider struct {
	Config *Config
}

// Get 获取配置
func (p StaticProvider) Get(_ context.Context) (*Config, error) {
	return p.Config, nil
}
