package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order 订单模型
type Order struct {
	ID              int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo         string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	AccountID       int64        `gorm:"index;not null" json:"account_id"`
	Channel         string       `gorm:"type:varchar(20);not null" json:"channel"`
	Status          string       `gorm:"type:varchar(20);index;not null" json:"status"`
	Payment         OrderPayment `gorm:"embedded;embeddedPrefix:pay_" json:"payment"`
	Amount          OrderAmount  `gorm:"embedded;embeddedPrefix:amount_" json:"amount"`
	PointsEarn      int64        `gorm:"not null;default:0" json:"points_earn"`
	PointsCredited  bool         `gorm:"not null;default:false" json:"points_credited"`
	UsedCouponID    *int64       `gorm:"index" json:"used_coupon_id,omitempty"`
	ReceiverName    *string      `gorm:"type:varchar(50)" json:"receiver_name,omitempty"`
	ReceiverPhone   *string      `gorm:"type:varchar(20)" json:"receiver_phone,omitempty"`
	ReceiverAddress *string      `gorm:"type:varchar(255)" json:"receiver_address,omitempty"`
	Remark          *string      `gorm:"type:varchar(255)" json:"remark,omitempty"`
	PickupTime      *string      `gorm:"type:varchar(32)" json:"pickup_time,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Items  []OrderItem  `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Refund *OrderRefund `gorm:"foreignKey:OrderID" json:"refund,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderPayment 订单支付信息
type OrderPayment struct {
	Method           string     `gorm:"type:varchar(20);not null" json:"method"`
	Status           string     `gorm:"type:varchar(20);not null" json:"status"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	ExternalOrderRef string     `gorm:"type:varchar(64);index" json:"external_order_ref"`
	ExternalTxnRef   *string    `gorm:"type:varchar(64)" json:"external_txn_ref,omitempty"`
}

// OrderAmount 订单金额明细
type OrderAmount struct {
	Goods          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"goods"`
	Delivery       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"delivery"`
	VipDiscount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"vip_discount"`
	CouponDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"coupon_discount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
}

// OrderChannel 履约方式
const (
	ChannelPickup   = "ziti"   // 到店自提
	ChannelDelivery = "waimai" // 外卖配送
	ChannelExpress  = "kuaidi" // 快递
)

// OrderStatus 订单状态
const (
	OrderStatusPendingPayment = "pending_payment" // 待支付
	OrderStatusProcessing     = "processing"      // 制作中
	OrderStatusReady          = "ready"           // 待取餐
	OrderStatusDelivering     = "delivering"      // 配送中
	OrderStatusDone           = "done"            // 已完成
	OrderStatusCancelled      = "cancelled"       // 已取消
	OrderStatusClosed         = "closed"          // 超时关闭
)

// PaymentMethod 支付方式
const (
	PaymentMethodWechat  = "wechat"  // 微信支付
	PaymentMethodBalance = "balance" // 余额支付
	PaymentMethodFree    = "free"    // 零元单
)

// PaymentStatus 支付状态
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// IsPaid 是否已支付
func (o *Order) IsPaid() bool {
	return o.Payment.Status == PaymentStatusPaid
}

// OrderItem 订单项，单价为下单时快照
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64           `gorm:"index;not null" json:"order_id"`
	ProductID   int64           `gorm:"not null" json:"product_id"`
	SkuID       *int64          `json:"sku_id,omitempty"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	SkuName     *string         `gorm:"type:varchar(100)" json:"sku_name,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
}

// TableName 表名
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderRefund 订单售后，每个订单至多一条
type OrderRefund struct {
	ID                int64                          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           int64                          `gorm:"uniqueIndex;not null" json:"order_id"`
	OrderNo           string                         `gorm:"type:varchar(64);index;not null" json:"order_no"`
	AccountID         int64                          `gorm:"index;not null" json:"account_id"`
	Status            string                         `gorm:"type:varchar(20);index;not null" json:"status"`
	Reason            string                         `gorm:"type:varchar(255)" json:"reason"`
	Remark            *string                        `gorm:"type:varchar(255)" json:"remark,omitempty"`
	Source            string                         `gorm:"type:varchar(20);not null" json:"source"`
	Amount            decimal.Decimal                `gorm:"type:decimal(12,2);not null" json:"amount"`
	AppliedAt         time.Time                      `gorm:"not null" json:"applied_at"`
	HandleAt          *time.Time                     `json:"handle_at,omitempty"`
	RefundedAt        *time.Time                     `json:"refunded_at,omitempty"`
	ExternalRefundRef *string                        `gorm:"type:varchar(64);uniqueIndex" json:"external_refund_ref,omitempty"`
	PointsReverted    bool                           `gorm:"not null;default:false" json:"points_reverted"`
	PointsDelta       int64                          `gorm:"not null;default:0" json:"points_delta"`
	Logs              datatypes.JSONSlice[RefundLog] `json:"logs"`
	CreatedAt         time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (OrderRefund) TableName() string {
	return "order_refunds"
}

// RefundLog 售后操作日志
type RefundLog struct {
	Action   string    `json:"action"`
	Operator string    `json:"operator"`
	Remark   string    `json:"remark,omitempty"`
	At       time.Time `json:"at"`
}

// RefundStatus 售后状态
const (
	RefundStatusApplied    = "applied"    // 已申请
	RefundStatusProcessing = "processing" // 退款中
	RefundStatusSuccess    = "success"    // 已退款
	RefundStatusRejected   = "rejected"   // 已驳回
	RefundStatusFailed     = "failed"     // 退款失败
)

// RefundSource 售后发起方
const (
	RefundSourceCustomer = "customer"
	RefundSourceMerchant = "merchant"
)

// IsActive 是否处于进行中的售后
func (r *OrderRefund) IsActive() bool {
	return r.Status == RefundStatusApplied || r.Status == RefundStatusProcessing
}

// AppendLog 追加日志
func (r *OrderRefund) AppendLog(action, operator, remark string, at time.Time) {
	r.Logs = append(r.Logs, RefundLog{Action: action, Operator: operator, Remark: remark, At: at})
}
