// Package helpers 提供测试辅助工具
package helpers

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/storefront-settlement/internal/models"
)

// NewTestDB 创建内存 SQLite 数据库并迁移全部模型
// 内存库按连接隔离，限制为单连接保证所有查询看到同一份数据
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// RandomString 生成随机字符串
func RandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// RandomPhone 生成随机手机号
func RandomPhone() string {
	return fmt.Sprintf("138%08d", rand.Intn(100000000))
}

// Money 构造金额
func Money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// CreateAccount 创建测试账户
func CreateAccount(t *testing.T, db *gorm.DB, balance string, points int64) *models.Account {
	t.Helper()

	phone := RandomPhone()
	account := &models.Account{
		OpenID:        "openid_" + RandomString(12),
		Phone:         &phone,
		Nickname:      "测试用户" + RandomString(4),
		Balance:       Money(balance),
		Points:        points,
		TotalRecharge: decimal.Zero,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

// SetMemberLevel 设置会员等级
func SetMemberLevel(t *testing.T, db *gorm.DB, account *models.Account, level int) {
	t.Helper()
	require.NoError(t, db.Model(account).Update("member_level", level).Error)
	account.MemberLevel = level
}

// CreateAddress 创建收货地址
func CreateAddress(t *testing.T, db *gorm.DB, accountID int64) *models.Address {
	t.Helper()

	address := &models.Address{
		AccountID: accountID,
		Receiver:  "张三",
		Phone:     RandomPhone(),
		Detail:    "科技园路" + RandomString(2) + "号",
	}
	require.NoError(t, db.Create(address).Error)
	return address
}

// CreateProduct 创建上架商品
func CreateProduct(t *testing.T, db *gorm.DB, price string) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:    "测试商品" + RandomString(4),
		Price:   Money(price),
		OnShelf: true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// CreateSku 创建商品规格
func CreateSku(t *testing.T, db *gorm.DB, productID int64, price string, onShelf bool) *models.ProductSku {
	t.Helper()

	sku := &models.ProductSku{
		ProductID: productID,
		Name:      "规格" + RandomString(2),
		Price:     Money(price),
		OnShelf:   onShelf,
	}
	require.NoError(t, db.Create(sku).Error)
	if !onShelf {
		require.NoError(t, db.Model(sku).Update("on_shelf", false).Error)
	}
	return sku
}

// CreateCouponTemplate 创建优惠券模板
func CreateCouponTemplate(t *testing.T, db *gorm.DB, minSpend, discount string, total int64) *models.CouponTemplate {
	t.Helper()

	template := &models.CouponTemplate{
		Title:         fmt.Sprintf("满%s减%s", minSpend, discount),
		MinSpend:      Money(minSpend),
		Discount:      Money(discount),
		TotalQuantity: total,
		Claimable:     true,
		Status:        models.StatusActive,
	}
	require.NoError(t, db.Create(template).Error)
	return template
}

// GrantCoupon 给账户发放一张未使用的优惠券
func GrantCoupon(t *testing.T, db *gorm.DB, accountID int64, template *models.CouponTemplate) *models.AccountCoupon {
	t.Helper()

	coupon := &models.AccountCoupon{
		AccountID:  accountID,
		TemplateID: template.ID,
		Title:      template.Title,
		MinSpend:   template.MinSpend,
		Discount:   template.Discount,
		Source:     models.CouponSourceClaim,
		Status:     models.CouponStatusUnused,
	}
	require.NoError(t, db.Create(coupon).Error)
	return coupon
}

// CreateGift 创建礼品，total > 0 时按总量计库存，否则按 stock
func CreateGift(t *testing.T, db *gorm.DB, cost, total, stock int64) *models.Gift {
	t.Helper()

	gift := &models.Gift{
		Name:          "礼品" + RandomString(4),
		CostPoints:    cost,
		Status:        models.StatusActive,
		TotalQuantity: total,
		Stock:         stock,
	}
	require.NoError(t, db.Create(gift).Error)
	return gift
}

// CreatePaidOrder 创建已支付订单
func CreatePaidOrder(t *testing.T, db *gorm.DB, accountID int64, method, status, total string) *models.Order {
	t.Helper()

	now := time.Now()
	amount := Money(total)
	orderNo := fmt.Sprintf("OD%d%s", now.UnixNano(), RandomString(4))
	order := &models.Order{
		OrderNo:   orderNo,
		AccountID: accountID,
		Channel:   models.ChannelPickup,
		Status:    status,
		Payment: models.OrderPayment{
			Method:           method,
			Status:           models.PaymentStatusPaid,
			PaidAt:           &now,
			ExternalOrderRef: orderNo,
		},
		Amount: models.OrderAmount{
			Goods: amount,
			Total: amount,
		},
		PointsEarn:     amount.IntPart(),
		PointsCredited: true,
	}
	if status == models.OrderStatusDone {
		order.CompletedAt = &now
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

// ReloadAccount 重新读取账户
func ReloadAccount(t *testing.T, db *gorm.DB, id int64) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, db.First(&account, id).Error)
	return &account
}

// ReloadOrder 重新读取订单（含售后）
func ReloadOrder(t *testing.T, db *gorm.DB, orderNo string) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.Preload("Items").Preload("Refund").Where("order_no = ?", orderNo).First(&order).Error)
	return &order
}
