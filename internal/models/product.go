package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品
type Product struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"type:varchar(200);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	OnShelf   bool            `gorm:"not null;default:true" json:"on_shelf"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Skus []ProductSku `gorm:"foreignKey:ProductID" json:"skus,omitempty"`
}

// TableName 表名
func (Product) TableName() string {
	return "products"
}

// ProductSku 商品规格
type ProductSku struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64           `gorm:"index;not null" json:"product_id"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	OnShelf   bool            `gorm:"not null;default:true" json:"on_shelf"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (ProductSku) TableName() string {
	return "product_skus"
}
