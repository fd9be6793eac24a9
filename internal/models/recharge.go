package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Recharge 余额充值单
type Recharge struct {
	ID              int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	RechargeNo      string                      `gorm:"type:varchar(64);uniqueIndex;not null" json:"recharge_no"`
	AccountID       int64                       `gorm:"index;not null" json:"account_id"`
	Amount          decimal.Decimal             `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          string                      `gorm:"type:varchar(20);index;not null" json:"status"`
	PaidAt          *time.Time                  `json:"paid_at,omitempty"`
	ExternalTxnRef  *string                     `gorm:"type:varchar(64)" json:"external_txn_ref,omitempty"`
	MemberLevelFrom int                         `gorm:"not null;default:0" json:"member_level_from"`
	MemberLevelTo   int                         `gorm:"not null;default:0" json:"member_level_to"`
	GrantWarnings   datatypes.JSONSlice[string] `json:"grant_warnings,omitempty"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Recharge) TableName() string {
	return "recharges"
}

// RechargeStatus 充值状态
const (
	RechargeStatusPending   = "pending"
	RechargeStatusPaid      = "paid"
	RechargeStatusCancelled = "cancelled"
)
