package pricing

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var waimaiRule = shop.DeliveryRule{Fee: d("5"), FreeThreshold: d("88")}

func TestCompute_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		delivery string
		vip      string
		coupon   string
		total    string
		points   int64
	}{
		{
			name:     "外卖满额免配送且L4享95折",
			in:       Input{Goods: d("100"), Channel: models.ChannelDelivery, Delivery: waimaiRule, MemberLevel: 4},
			delivery: "0.00", vip: "5.00", coupon: "0.00", total: "95.00", points: 95,
		},
		{
			name:     "外卖未满额收配送费",
			in:       Input{Goods: d("50"), Channel: models.ChannelDelivery, Delivery: waimaiRule, MemberLevel: 3},
			delivery: "5.00", vip: "0.00", coupon: "0.00", total: "55.00", points: 55,
		},
		{
			name:     "自提无配送费",
			in:       Input{Goods: d("50"), Channel: models.ChannelPickup, Delivery: waimaiRule},
			delivery: "0.00", vip: "0.00", coupon: "0.00", total: "50.00", points: 50,
		},
		{
			name:     "配送费计入会员折扣基数",
			in:       Input{Goods: d("50"), Channel: models.ChannelDelivery, Delivery: waimaiRule, MemberLevel: 4},
			delivery: "5.00", vip: "2.75", coupon: "0.00", total: "52.25", points: 52,
		},
		{
			name:     "优惠券抵扣",
			in:       Input{Goods: d("30"), Channel: models.ChannelPickup, Coupon: &Coupon{MinSpend: d("20"), Discount: d("5")}},
			delivery: "0.00", vip: "0.00", coupon: "5.00", total: "25.00", points: 25,
		},
		{
			name:     "优惠券面额大于应付时为零元",
			in:       Input{Goods: d("8"), Channel: models.ChannelPickup, Coupon: &Coupon{MinSpend: d("0"), Discount: d("10")}},
			delivery: "0.00", vip: "0.00", coupon: "10.00", total: "0.00", points: 0,
		},
		{
			name:     "配送规则全为零时不收费",
			in:       Input{Goods: d("10"), Channel: models.ChannelExpress},
			delivery: "0.00", vip: "0.00", coupon: "0.00", total: "10.00", points: 10,
		},
		{
			name:     "无免配送门槛时始终收费",
			in:       Input{Goods: d("500"), Channel: models.ChannelExpress, Delivery: shop.DeliveryRule{Fee: d("10")}},
			delivery: "10.00", vip: "0.00", coupon: "0.00", total: "510.00", points: 510,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := Compute(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.delivery, amount.Delivery.StringFixed(2))
			assert.Equal(t, tt.vip, amount.VipDiscount.StringFixed(2))
			assert.Equal(t, tt.coupon, amount.CouponDiscount.StringFixed(2))
			assert.Equal(t, tt.total, amount.Total.StringFixed(2))
			assert.Equal(t, tt.points, PointsEarn(amount.Total))
		})
	}
}

func TestDeliveryFee(t *testing.T) {
	tests := []struct {
		name    string
		goods   string
		channel string
		rule    shop.DeliveryRule
		want    string
	}{
		{"门槛为0且有配送费时收费", "0", models.ChannelDelivery, shop.DeliveryRule{Fee: d("5"), FreeThreshold: d("0")}, "5.00"},
		{"门槛为0时大额订单仍收费", "9999.99", models.ChannelExpress, shop.DeliveryRule{Fee: d("10"), FreeThreshold: decimal.Zero}, "10.00"},
		{"恰好达到门槛免费", "88", models.ChannelDelivery, waimaiRule, "0.00"},
		{"差一分未达门槛收费", "87.99", models.ChannelDelivery, waimaiRule, "5.00"},
		{"配送费为0不收费", "10", models.ChannelDelivery, shop.DeliveryRule{FreeThreshold: d("88")}, "0.00"},
		{"自提忽略规则", "10", models.ChannelPickup, shop.DeliveryRule{Fee: d("5")}, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeliveryFee(d(tt.goods), tt.channel, tt.rule).StringFixed(2))
		})
	}
}

func TestCompute_CouponNotApplicable(t *testing.T) {
	_, err := Compute(Input{
		Goods:   d("19.99"),
		Channel: models.ChannelPickup,
		Coupon:  &Coupon{MinSpend: d("20"), Discount: d("5")},
	})
	assert.True(t, stderrors.Is(err, errors.ErrCouponNotApplicable))
}

func TestCompute_NegativeGoods(t *testing.T) {
	_, err := Compute(Input{Goods: d("-1"), Channel: models.ChannelPickup})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidAmount))
}

func TestVipDiscount_RoundHalfUp(t *testing.T) {
	// 10.10 * 0.05 = 0.505
	assert.Equal(t, "0.51", VipDiscount(d("10.10"), 4).StringFixed(2))
	// 10.01 * 0.05 = 0.5005
	assert.Equal(t, "0.50", VipDiscount(d("10.01"), 4).StringFixed(2))
	// 10.30 * 0.05 = 0.515
	assert.Equal(t, "0.52", VipDiscount(d("10.30"), 4).StringFixed(2))
	assert.True(t, VipDiscount(d("100"), 3).IsZero())
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "59.97", LineTotal(d("19.99"), 3).StringFixed(2))
	assert.True(t, LineTotal(d("12.5"), 0).IsZero())
}

func TestPointsEarn(t *testing.T) {
	assert.Equal(t, int64(95), PointsEarn(d("95.99")))
	assert.Equal(t, int64(0), PointsEarn(d("0.99")))
	assert.Equal(t, int64(0), PointsEarn(decimal.Zero))
}

// 金额不变式：Total = round2(max(0, Goods + Delivery - Vip - Coupon))，且各项非负
func TestCompute_AmountInvariantGrid(t *testing.T) {
	goodsGrid := []string{"0", "0.01", "9.99", "19.99", "50", "87.99", "88", "88.01", "99", "100", "333.33", "1000.05"}
	channels := []string{models.ChannelPickup, models.ChannelDelivery, models.ChannelExpress}
	rules := map[string]shop.DeliveryRule{
		models.ChannelDelivery: waimaiRule,
		models.ChannelExpress:  {Fee: d("10"), FreeThreshold: d("99")},
	}
	coupons := []*Coupon{nil, {MinSpend: d("0"), Discount: d("3")}, {MinSpend: d("0"), Discount: d("200")}}

	for _, g := range goodsGrid {
		for _, ch := range channels {
			for level := 0; level <= 4; level++ {
				for ci, c := range coupons {
					name := fmt.Sprintf("%s/%s/L%d/c%d", g, ch, level, ci)
					amount, err := Compute(Input{Goods: d(g), Channel: ch, Delivery: rules[ch], MemberLevel: level, Coupon: c})
					require.NoError(t, err, name)

					expected := amount.Goods.Add(amount.Delivery).Sub(amount.VipDiscount).Sub(amount.CouponDiscount)
					if expected.IsNegative() {
						expected = decimal.Zero
					}
					assert.True(t, amount.Total.Equal(expected.Round(2)), name)
					assert.False(t, amount.Total.IsNegative(), name)
					assert.False(t, amount.Delivery.IsNegative(), name)
					assert.True(t, amount.Total.Equal(amount.Total.Round(2)), name)
					assert.LessOrEqual(t, PointsEarn(amount.Total), amount.Total.IntPart(), name)
				}
			}
		}
	}
}
