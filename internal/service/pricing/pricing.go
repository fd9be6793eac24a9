// Package pricing 订单金额计算
//
// 所有金额按四舍五入保留两位小数，各项分别取整后再计算应付金额：
//
//	Total = max(0, Goods + Delivery - VipDiscount - CouponDiscount)
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
)

// VipLevel 享受会员折扣的最低等级
const VipLevel = 4

// VipRate 会员折扣比例
var VipRate = decimal.RequireFromString("0.05")

// Coupon 参与计算的优惠券
type Coupon struct {
	MinSpend decimal.Decimal
	Discount decimal.Decimal
}

// Input 计算参数
type Input struct {
	Goods       decimal.Decimal
	Channel     string
	Delivery    shop.DeliveryRule
	MemberLevel int
	Coupon      *Coupon
}

// round2 四舍五入保留两位小数
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal 单行小计
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return round2(price.Mul(decimal.NewFromInt(int64(quantity))))
}

// DeliveryFee 配送费，自提为 0，商品金额达到免配送门槛时免收
// 门槛为 0 表示不设免配送门槛
func DeliveryFee(goods decimal.Decimal, channel string, rule shop.DeliveryRule) decimal.Decimal {
	if channel == models.ChannelPickup || !rule.Fee.IsPositive() {
		return decimal.Zero
	}
	if rule.FreeThreshold.IsPositive() && goods.GreaterThanOrEqual(rule.FreeThreshold) {
		return decimal.Zero
	}
	return round2(rule.Fee)
}

// VipDiscount 会员折扣，仅 L4 享受
func VipDiscount(base decimal.Decimal, level int) decimal.Decimal {
	if level < VipLevel {
		return decimal.Zero
	}
	return round2(base.Mul(VipRate))
}

// Compute 计算订单金额明细
// 未达到优惠券使用门槛时返回 ErrCouponNotApplicable
func Compute(in Input) (models.OrderAmount, error) {
	goods := round2(in.Goods)
	if goods.IsNegative() {
		return models.OrderAmount{}, errors.ErrInvalidAmount
	}

	delivery := DeliveryFee(goods, in.Channel, in.Delivery)
	vip := VipDiscount(goods.Add(delivery), in.MemberLevel)

	couponDiscount := decimal.Zero
	if in.Coupon != nil {
		if goods.LessThan(in.Coupon.MinSpend) {
			return models.OrderAmount{}, errors.ErrCouponNotApplicable
		}
		couponDiscount = round2(in.Coupon.Discount)
	}

	total := goods.Add(delivery).Sub(vip).Sub(couponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return models.OrderAmount{
		Goods:          goods,
		Delivery:       delivery,
		VipDiscount:    vip,
		CouponDiscount: couponDiscount,
		Total:          round2(total),
	}, nil
}

// PointsEarn 订单可得积分，实付金额向下取整
func PointsEarn(total decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	return total.Floor().IntPart()
}
