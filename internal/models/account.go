package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 顾客账户
type Account struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OpenID        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Phone         *string         `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Nickname      string          `gorm:"type:varchar(50)" json:"nickname"`
	Balance       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Points        int64           `gorm:"not null;default:0" json:"points"`
	MemberLevel   int             `gorm:"not null;default:0" json:"member_level"`
	TotalRecharge decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_recharge"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Account) TableName() string {
	return "accounts"
}

// Address 收货地址
type Address struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index;not null" json:"account_id"`
	Receiver  string    `gorm:"type:varchar(50);not null" json:"receiver"`
	Phone     string    `gorm:"type:varchar(20);not null" json:"phone"`
	Detail    string    `gorm:"type:varchar(255);not null" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Address) TableName() string {
	return "addresses"
}

// WalletTransaction 余额流水
type WalletTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     int64           `gorm:"index;not null" json:"account_id"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	RelatedNo     string          `gorm:"type:varchar(64);index" json:"related_no"`
	Remark        string          `gorm:"type:varchar(255)" json:"remark,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// WalletTransactionType 余额流水类型
const (
	WalletTxRecharge = "recharge" // 充值
	WalletTxConsume  = "consume"  // 消费
	WalletTxRefund   = "refund"   // 退款
)

// PointsLog 积分流水
type PointsLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index;not null" json:"account_id"`
	Type      string    `gorm:"type:varchar(20);not null" json:"type"`
	Points    int64     `gorm:"not null" json:"points"`
	Balance   int64     `gorm:"not null" json:"balance"`
	RelatedNo string    `gorm:"type:varchar(64);index" json:"related_no"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (PointsLog) TableName() string {
	return "points_logs"
}

// PointsLogType 积分流水类型
const (
	PointsLogEarn   = "earn"   // 消费获得
	PointsLogRevert = "revert" // 售后扣回
	PointsLogRedeem = "redeem" // 兑换礼品
)
