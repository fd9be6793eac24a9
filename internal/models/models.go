// Package models 定义结算引擎的持久化模型
package models

// All 返回需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Address{},
		&WalletTransaction{},
		&PointsLog{},
		&Product{},
		&ProductSku{},
		&Order{},
		&OrderItem{},
		&OrderRefund{},
		&Recharge{},
		&CouponTemplate{},
		&AccountCoupon{},
		&Gift{},
		&RedemptionRecord{},
	}
}
