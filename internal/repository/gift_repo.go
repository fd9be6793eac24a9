package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/models"
)

// GiftRepository 礼品仓储
type GiftRepository struct {
	db *gorm.DB
}

// NewGiftRepository 创建礼品仓储
func NewGiftRepository(db *gorm.DB) *GiftRepository {
	return &GiftRepository{db: db}
}

// Create 创建礼品
func (r *GiftRepository) Create(ctx context.Context, gift *models.Gift) error {
	return r.db.WithContext(ctx).Create(gift).Error
}

// GetByID 获取礼品
func (r *GiftRepository) GetByID(ctx context.Context, id int64) (*models.Gift, error) {
	var gift models.Gift
	if err := r.db.WithContext(ctx).First(&gift, id).Error; err != nil {
		return nil, err
	}
	return &gift, nil
}

// GetForUpdate 获取礼品（加锁）
func (r *GiftRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.Gift, error) {
	var gift models.Gift
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&gift, id).Error; err != nil {
		return nil, err
	}
	return &gift, nil
}

// TakeOne 扣减一件库存，无限库存不变，售罄时返回 ErrNoRowsAffected
func (r *GiftRepository) TakeOne(ctx context.Context, tx *gorm.DB, gift *models.Gift) error {
	db := tx.WithContext(ctx).Model(&models.Gift{})
	switch {
	case gift.UsesQuantityPair():
		return checkAffected(db.
			Where("id = ? AND redeemed_quantity < total_quantity", gift.ID).
			UpdateColumn("redeemed_quantity", gorm.Expr("redeemed_quantity + 1")))
	case gift.Stock == models.GiftUnlimitedStock:
		return nil
	default:
		return checkAffected(db.
			Where("id = ? AND stock > 0", gift.ID).
			UpdateColumn("stock", gorm.Expr("stock - 1")))
	}
}

// ListActive 获取上架中的礼品
func (r *GiftRepository) ListActive(ctx context.Context) ([]*models.Gift, error) {
	var list []*models.Gift
	err := r.db.WithContext(ctx).Where("status = ?", models.StatusActive).Order("cost_points ASC, id ASC").Find(&list).Error
	return list, err
}
