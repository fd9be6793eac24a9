package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/models"
)

// RechargeRepository 充值单仓储
type RechargeRepository struct {
	db *gorm.DB
}

// NewRechargeRepository 创建充值单仓储
func NewRechargeRepository(db *gorm.DB) *RechargeRepository {
	return &RechargeRepository{db: db}
}

// Create 创建充值单
func (r *RechargeRepository) Create(ctx context.Context, recharge *models.Recharge) error {
	return r.db.WithContext(ctx).Create(recharge).Error
}

// GetByRechargeNo 根据充值单号获取
func (r *RechargeRepository) GetByRechargeNo(ctx context.Context, rechargeNo string) (*models.Recharge, error) {
	var recharge models.Recharge
	if err := r.db.WithContext(ctx).Where("recharge_no = ?", rechargeNo).First(&recharge).Error; err != nil {
		return nil, err
	}
	return &recharge, nil
}

// GetForUpdate 根据充值单号获取（加锁）
func (r *RechargeRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, rechargeNo string) (*models.Recharge, error) {
	var recharge models.Recharge
	err := database.ForUpdate(tx.WithContext(ctx)).Where("recharge_no = ?", rechargeNo).First(&recharge).Error
	if err != nil {
		return nil, err
	}
	return &recharge, nil
}

// DeletePending 删除未支付充值单
func (r *RechargeRepository) DeletePending(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.RechargeStatusPending).
		Delete(&models.Recharge{})
	return checkAffected(result)
}

// MarkPaid 待支付 -> 已支付
func (r *RechargeRepository) MarkPaid(ctx context.Context, tx *gorm.DB, recharge *models.Recharge) error {
	result := tx.WithContext(ctx).Model(&models.Recharge{}).
		Where("id = ? AND status = ?", recharge.ID, models.RechargeStatusPending).
		Select("status", "paid_at", "external_txn_ref", "member_level_from", "member_level_to", "grant_warnings", "updated_at").
		Updates(recharge)
	return checkAffected(result)
}
