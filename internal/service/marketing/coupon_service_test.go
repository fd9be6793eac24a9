package marketing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/tests/helpers"
)

func setupCouponService(db *gorm.DB) *CouponService {
	return NewCouponService(db, repository.NewCouponRepository(db), repository.NewAccountRepository(db))
}

func reloadTemplate(t *testing.T, db *gorm.DB, id int64) *models.CouponTemplate {
	t.Helper()
	var tmpl models.CouponTemplate
	require.NoError(t, db.First(&tmpl, id).Error)
	return &tmpl
}

func TestCouponService_ClaimCoupon(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc := setupCouponService(db)
	ctx := context.Background()

	t.Run("领取成功", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 0)
		tmpl := helpers.CreateCouponTemplate(t, db, "50", "8", 10)

		coupon, err := svc.ClaimCoupon(ctx, account.ID, tmpl.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CouponSourceClaim, coupon.Source)
		assert.Equal(t, models.CouponStatusUnused, coupon.Status)
		assert.True(t, helpers.Money("8").Equal(coupon.Discount))
		assert.Equal(t, int64(1), reloadTemplate(t, db, tmpl.ID).ClaimedQuantity)

		list, err := svc.ListAccountCoupons(ctx, account.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("重复领取", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 0)
		tmpl := helpers.CreateCouponTemplate(t, db, "0", "3", 10)

		_, err := svc.ClaimCoupon(ctx, account.ID, tmpl.ID)
		require.NoError(t, err)
		_, err = svc.ClaimCoupon(ctx, account.ID, tmpl.ID)
		assert.ErrorIs(t, err, errors.ErrCouponClaimed)
		assert.Equal(t, int64(1), reloadTemplate(t, db, tmpl.ID).ClaimedQuantity)
	})

	t.Run("已领完", func(t *testing.T) {
		tmpl := helpers.CreateCouponTemplate(t, db, "0", "3", 1)
		first := helpers.CreateAccount(t, db, "0", 0)
		second := helpers.CreateAccount(t, db, "0", 0)

		_, err := svc.ClaimCoupon(ctx, first.ID, tmpl.ID)
		require.NoError(t, err)
		_, err = svc.ClaimCoupon(ctx, second.ID, tmpl.ID)
		assert.ErrorIs(t, err, errors.ErrCouponOutOfStock)
	})

	t.Run("仅升级赠送或已停用的模板不可领取", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 0)

		levelOnly := helpers.CreateCouponTemplate(t, db, "0", "3", 10)
		require.NoError(t, db.Model(levelOnly).Update("claimable", false).Error)
		_, err := svc.ClaimCoupon(ctx, account.ID, levelOnly.ID)
		assert.ErrorIs(t, err, errors.ErrCouponUnavailable)

		inactive := helpers.CreateCouponTemplate(t, db, "0", "3", 10)
		require.NoError(t, db.Model(inactive).Update("status", models.StatusInactive).Error)
		_, err = svc.ClaimCoupon(ctx, account.ID, inactive.ID)
		assert.ErrorIs(t, err, errors.ErrCouponUnavailable)
	})

	t.Run("模板或账户不存在", func(t *testing.T) {
		account := helpers.CreateAccount(t, db, "0", 0)
		_, err := svc.ClaimCoupon(ctx, account.ID, 987654)
		assert.ErrorIs(t, err, errors.ErrCouponNotFound)

		tmpl := helpers.CreateCouponTemplate(t, db, "0", "3", 10)
		_, err = svc.ClaimCoupon(ctx, 987654, tmpl.ID)
		assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	})
}

func TestCouponService_ConcurrentClaimNeverOversells(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc := setupCouponService(db)
	ctx := context.Background()
	tmpl := helpers.CreateCouponTemplate(t, db, "0", "5", 3)

	var wg sync.WaitGroup
	results := make(chan error, 6)
	for i := 0; i < 6; i++ {
		account := helpers.CreateAccount(t, db, "0", 0)
		wg.Add(1)
		go func(accountID int64) {
			defer wg.Done()
			_, err := svc.ClaimCoupon(ctx, accountID, tmpl.ID)
			results <- err
		}(account.ID)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errors.ErrCouponOutOfStock)
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(3), reloadTemplate(t, db, tmpl.ID).ClaimedQuantity)
}

func TestCouponService_ListClaimable(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc := setupCouponService(db)
	ctx := context.Background()

	open := helpers.CreateCouponTemplate(t, db, "0", "3", 5)
	full := helpers.CreateCouponTemplate(t, db, "0", "3", 1)
	require.NoError(t, db.Model(full).Update("claimed_quantity", 1).Error)
	hidden := helpers.CreateCouponTemplate(t, db, "0", "3", 5)
	require.NoError(t, db.Model(hidden).Update("claimable", false).Error)

	list, err := svc.ListClaimable(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)
	assert.Equal(t, int64(5), list[0].Remaining)
}
