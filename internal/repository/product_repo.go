package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/models"
)

// ProductRepository 商品仓储，结算流程只读
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create 创建商品（含 SKU）
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// GetProduct 在事务内读取商品
func (r *ProductRepository) GetProduct(ctx context.Context, tx *gorm.DB, id int64) (*models.Product, error) {
	var product models.Product
	if err := tx.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetSku 在事务内读取商品规格
func (r *ProductRepository) GetSku(ctx context.Context, tx *gorm.DB, productID, skuID int64) (*models.ProductSku, error) {
	var sku models.ProductSku
	err := tx.WithContext(ctx).Where("id = ? AND product_id = ?", skuID, productID).First(&sku).Error
	if err != nil {
		return nil, err
	}
	return &sku, nil
}
