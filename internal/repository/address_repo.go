package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/models"
)

// AddressRepository 地址仓储
type AddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository 创建地址仓储
func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Create 创建地址
func (r *AddressRepository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// GetByAccount 获取账户下的指定地址
func (r *AddressRepository) GetByAccount(ctx context.Context, tx *gorm.DB, id, accountID int64) (*models.Address, error) {
	var address models.Address
	err := tx.WithContext(ctx).Where("id = ? AND account_id = ?", id, accountID).First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// ListByAccount 获取账户地址列表
func (r *AddressRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.Address, error) {
	var list []*models.Address
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id DESC").Find(&list).Error
	return list, err
}

// CountByAccount 统计账户地址数量
func (r *AddressRepository) CountByAccount(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Address{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
