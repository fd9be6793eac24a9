package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/models"
)

// RedemptionRepository 兑换码仓储
type RedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository 创建兑换码仓储
func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// CodeExists 兑换码是否已被任一账户占用（未核销）
func (r *RedemptionRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RedemptionRecord{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// Create 写入兑换记录，兑换码冲突时返回唯一约束错误
func (r *RedemptionRepository) Create(ctx context.Context, tx *gorm.DB, record *models.RedemptionRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

// GetByCode 根据兑换码获取
func (r *RedemptionRepository) GetByCode(ctx context.Context, code string) (*models.RedemptionRecord, error) {
	var record models.RedemptionRecord
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Consume 核销即删除，并发核销时仅一方成功
func (r *RedemptionRepository) Consume(ctx context.Context, tx *gorm.DB, id int64) error {
	return checkAffected(tx.WithContext(ctx).Delete(&models.RedemptionRecord{}, id))
}

// ListByAccount 获取账户未核销的兑换码
func (r *RedemptionRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.RedemptionRecord, error) {
	var list []*models.RedemptionRecord
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&list).Error
	return list, err
}
