package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/models"
)

// CouponRepository 优惠券仓储（模板与账户持有的优惠券）
type CouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓储
func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// CreateTemplate 创建优惠券模板
func (r *CouponRepository) CreateTemplate(ctx context.Context, template *models.CouponTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

// GetTemplateForUpdate 获取优惠券模板（加锁）
func (r *CouponRepository) GetTemplateForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.CouponTemplate, error) {
	var template models.CouponTemplate
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// IncrementClaimed 增加已发放数量，余量不足时返回 ErrNoRowsAffected
func (r *CouponRepository) IncrementClaimed(ctx context.Context, tx *gorm.DB, id int64, n int64) error {
	result := tx.WithContext(ctx).Model(&models.CouponTemplate{}).
		Where("id = ? AND total_quantity - claimed_quantity >= ?", id, n).
		UpdateColumn("claimed_quantity", gorm.Expr("claimed_quantity + ?", n))
	return checkAffected(result)
}

// CreateCoupons 批量发放优惠券
func (r *CouponRepository) CreateCoupons(ctx context.Context, tx *gorm.DB, coupons []*models.AccountCoupon) error {
	if len(coupons) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&coupons).Error
}

// GetUnusedForUpdate 获取账户未使用的优惠券（加锁）
func (r *CouponRepository) GetUnusedForUpdate(ctx context.Context, tx *gorm.DB, id, accountID int64) (*models.AccountCoupon, error) {
	var coupon models.AccountCoupon
	err := database.ForUpdate(tx.WithContext(ctx)).
		Where("id = ? AND account_id = ? AND status = ?", id, accountID, models.CouponStatusUnused).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// MarkUsed 未使用 -> 已使用
func (r *CouponRepository) MarkUsed(ctx context.Context, tx *gorm.DB, id int64, orderNo string, at time.Time) error {
	result := tx.WithContext(ctx).Model(&models.AccountCoupon{}).
		Where("id = ? AND status = ?", id, models.CouponStatusUnused).
		UpdateColumns(map[string]interface{}{
			"status":        models.CouponStatusUsed,
			"used_order_no": orderNo,
			"used_at":       at,
			"updated_at":    at,
		})
	return checkAffected(result)
}

// Restore 退还订单占用的优惠券
func (r *CouponRepository) Restore(ctx context.Context, tx *gorm.DB, id int64, orderNo string) error {
	result := tx.WithContext(ctx).Model(&models.AccountCoupon{}).
		Where("id = ? AND status = ? AND used_order_no = ?", id, models.CouponStatusUsed, orderNo).
		UpdateColumns(map[string]interface{}{
			"status":        models.CouponStatusUnused,
			"used_order_no": nil,
			"used_at":       nil,
			"updated_at":    time.Now(),
		})
	return checkAffected(result)
}

// ListUnused 获取账户当前可用优惠券
func (r *CouponRepository) ListUnused(ctx context.Context, accountID int64) ([]*models.AccountCoupon, error) {
	var list []*models.AccountCoupon
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, models.CouponStatusUnused).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// CountByTemplate 统计账户持有某模板优惠券的数量
func (r *CouponRepository) CountByTemplate(ctx context.Context, tx *gorm.DB, accountID, templateID int64) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.AccountCoupon{}).
		Where("account_id = ? AND template_id = ?", accountID, templateID).
		Count(&count).Error
	return count, err
}

// ListClaimable 获取可主动领取且仍有余量的模板
func (r *CouponRepository) ListClaimable(ctx context.Context) ([]*models.CouponTemplate, error) {
	var list []*models.CouponTemplate
	err := r.db.WithContext(ctx).
		Where("status = ? AND claimable = ? AND claimed_quantity < total_quantity", models.StatusActive, true).
		Order("id ASC").
		Find(&list).Error
	return list, err
}
