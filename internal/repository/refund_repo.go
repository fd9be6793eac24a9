package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/models"
)

// RefundRepository 售后仓储
type RefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建售后仓储
func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// GetByOrderID 获取订单售后（加锁），不存在时返回 gorm.ErrRecordNotFound
func (r *RefundRepository) GetByOrderID(ctx context.Context, tx *gorm.DB, orderID int64) (*models.OrderRefund, error) {
	var refund models.OrderRefund
	err := database.ForUpdate(tx.WithContext(ctx)).Where("order_id = ?", orderID).First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// GetByExternalRef 根据退款单号获取售后
func (r *RefundRepository) GetByExternalRef(ctx context.Context, ref string) (*models.OrderRefund, error) {
	var refund models.OrderRefund
	err := r.db.WithContext(ctx).Where("external_refund_ref = ?", ref).First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// Save 创建或整体更新售后
func (r *RefundRepository) Save(ctx context.Context, tx *gorm.DB, refund *models.OrderRefund) error {
	return tx.WithContext(ctx).Save(refund).Error
}

// DeleteApplied 撤销处于已申请状态的售后
func (r *RefundRepository) DeleteApplied(ctx context.Context, tx *gorm.DB, id int64) error {
	result := tx.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.RefundStatusApplied).
		Delete(&models.OrderRefund{})
	return checkAffected(result)
}

// Transit 按前置状态条件整体保存售后
func (r *RefundRepository) Transit(ctx context.Context, tx *gorm.DB, refund *models.OrderRefund, from string) error {
	result := tx.WithContext(ctx).Model(&models.OrderRefund{}).
		Where("id = ? AND status = ?", refund.ID, from).
		Select("*").Omit("id", "created_at").
		Updates(refund)
	return checkAffected(result)
}
