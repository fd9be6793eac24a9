package points

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/tests/helpers"
)

func newLedger(db *gorm.DB) *Ledger {
	return NewLedger(repository.NewAccountRepository(db), repository.NewOrderRepository(db))
}

func TestLedger_CreditOrder(t *testing.T) {
	db := helpers.NewTestDB(t)
	ledger := newLedger(db)
	ctx := context.Background()

	account := helpers.CreateAccount(t, db, "0", 10)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "95.50")
	require.NoError(t, db.Model(order).Update("points_credited", false).Error)
	order.PointsCredited = false

	t.Run("首次发放", func(t *testing.T) {
		var credited int64
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			credited, err = ledger.CreditOrder(ctx, tx, order)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(95), credited)
		assert.Equal(t, int64(105), helpers.ReloadAccount(t, db, account.ID).Points)
	})

	t.Run("重复发放无效", func(t *testing.T) {
		var credited int64
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			credited, err = ledger.CreditOrder(ctx, tx, order)
			return err
		})
		require.NoError(t, err)
		assert.Zero(t, credited)
		assert.Equal(t, int64(105), helpers.ReloadAccount(t, db, account.ID).Points)
	})

	logs, err := repository.NewAccountRepository(db).ListPointsLogs(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.PointsLogEarn, logs[0].Type)
	assert.Equal(t, int64(105), logs[0].Balance)
}

func TestLedger_RevertOrder(t *testing.T) {
	db := helpers.NewTestDB(t)
	ledger := newLedger(db)
	ctx := context.Background()

	t.Run("只扣减当前剩余积分", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 30)
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusDone, "80")
		refund := &models.OrderRefund{}

		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return ledger.RevertOrder(ctx, tx, order, refund)
		}))
		assert.True(t, refund.PointsReverted)
		assert.Equal(t, int64(30), refund.PointsDelta)
		assert.Zero(t, helpers.ReloadAccount(t, db, account.ID).Points)
	})

	t.Run("已退回不再扣减", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 100)
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusDone, "40")
		refund := &models.OrderRefund{PointsReverted: true, PointsDelta: 40}

		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return ledger.RevertOrder(ctx, tx, order, refund)
		}))
		assert.Equal(t, int64(40), refund.PointsDelta)
		assert.Equal(t, int64(100), helpers.ReloadAccount(t, db, account.ID).Points)
	})

	t.Run("未发放积分的订单不扣减", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 100)
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "40")
		order.PointsCredited = false
		refund := &models.OrderRefund{}

		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return ledger.RevertOrder(ctx, tx, order, refund)
		}))
		assert.True(t, refund.PointsReverted)
		assert.Zero(t, refund.PointsDelta)
		assert.Equal(t, int64(100), helpers.ReloadAccount(t, db, account.ID).Points)
	})
}
