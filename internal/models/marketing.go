package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponTemplate 优惠券模板
type CouponTemplate struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string          `gorm:"type:varchar(100);not null" json:"title"`
	MinSpend        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_spend"`
	Discount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	TotalQuantity   int64           `gorm:"not null" json:"total_quantity"`
	ClaimedQuantity int64           `gorm:"not null;default:0" json:"claimed_quantity"`
	Claimable       bool            `gorm:"not null;default:true" json:"claimable"`
	Status          string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CouponTemplate) TableName() string {
	return "coupon_templates"
}

// Remaining 剩余可发放数量
func (t *CouponTemplate) Remaining() int64 {
	if r := t.TotalQuantity - t.ClaimedQuantity; r > 0 {
		return r
	}
	return 0
}

// 通用启用状态
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// AccountCoupon 账户持有的优惠券
type AccountCoupon struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   int64           `gorm:"index;not null" json:"account_id"`
	TemplateID  int64           `gorm:"index;not null" json:"template_id"`
	Title       string          `gorm:"type:varchar(100);not null" json:"title"`
	MinSpend    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_spend"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Source      string          `gorm:"type:varchar(20);not null" json:"source"`
	Status      string          `gorm:"type:varchar(20);index;not null" json:"status"`
	UsedOrderNo *string         `gorm:"type:varchar(64)" json:"used_order_no,omitempty"`
	UsedAt      *time.Time      `json:"used_at,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (AccountCoupon) TableName() string {
	return "account_coupons"
}

// AccountCouponStatus 优惠券状态
const (
	CouponStatusUnused = "unused"
	CouponStatusUsed   = "used"
)

// AccountCouponSource 优惠券来源
const (
	CouponSourceClaim   = "claim"    // 主动领取
	CouponSourceLevelUp = "level_up" // 会员升级赠送
)

// GiftUnlimitedStock 无限库存
const GiftUnlimitedStock int64 = -1

// Gift 积分兑换礼品
// TotalQuantity > 0 时按已兑数量计数，否则按 Stock 递减
type Gift struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"type:varchar(100);not null" json:"name"`
	CostPoints       int64     `gorm:"not null" json:"cost_points"`
	Status           string    `gorm:"type:varchar(20);not null" json:"status"`
	TotalQuantity    int64     `gorm:"not null;default:0" json:"total_quantity"`
	RedeemedQuantity int64     `gorm:"not null;default:0" json:"redeemed_quantity"`
	Stock            int64     `gorm:"not null;default:0" json:"stock"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Gift) TableName() string {
	return "gifts"
}

// UsesQuantityPair 是否按总量/已兑数量计库存
func (g *Gift) UsesQuantityPair() bool {
	return g.TotalQuantity > 0
}

// InStock 是否还有库存
func (g *Gift) InStock() bool {
	if g.UsesQuantityPair() {
		return g.RedeemedQuantity < g.TotalQuantity
	}
	return g.Stock == GiftUnlimitedStock || g.Stock > 0
}

// RedemptionRecord 未核销的兑换码，核销即删除
type RedemptionRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code       string    `gorm:"type:varchar(6);uniqueIndex;not null" json:"code"`
	AccountID  int64     `gorm:"index;not null" json:"account_id"`
	GiftID     int64     `gorm:"index;not null" json:"gift_id"`
	GiftName   string    `gorm:"type:varchar(100);not null" json:"gift_name"`
	CostPoints int64     `gorm:"not null" json:"cost_points"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (RedemptionRecord) TableName() string {
	return "redemption_records"
}
