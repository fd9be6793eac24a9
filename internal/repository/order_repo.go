package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/models"
)

// OrderRepository 订单仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单（含订单项）
func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

// GetByOrderNo 根据订单号获取订单（包含订单项与售后）
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Refund").
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByExternalRef 根据支付单号获取订单
func (r *OrderRepository) GetByExternalRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("pay_external_order_ref = ?", ref).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetForUpdate 根据订单号获取订单（加锁）
func (r *OrderRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, orderNo string) (*models.Order, error) {
	var order models.Order
	err := database.ForUpdate(tx.WithContext(ctx)).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Delete 删除订单及订单项
func (r *OrderRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if err := tx.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Delete(&models.Order{}, id).Error
}

// MarkPaid 待支付 -> 已支付，重复回调时返回 ErrNoRowsAffected
func (r *OrderRepository) MarkPaid(ctx context.Context, tx *gorm.DB, id int64, txnRef string, paidAt time.Time) error {
	result := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND pay_status = ?", id, models.PaymentStatusPending).
		UpdateColumns(map[string]interface{}{
			"pay_status":           models.PaymentStatusPaid,
			"pay_paid_at":          paidAt,
			"pay_external_txn_ref": txnRef,
			"updated_at":           paidAt,
		})
	return checkAffected(result)
}

// TransitStatus 按前置状态条件更新订单状态
func (r *OrderRepository) TransitStatus(ctx context.Context, tx *gorm.DB, id int64, from []string, to string, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	result := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		UpdateColumns(updates)
	return checkAffected(result)
}

// CancelPending 关闭未支付订单，支付状态必须仍为待支付
func (r *OrderRepository) CancelPending(ctx context.Context, tx *gorm.DB, id int64, to string, at time.Time) error {
	result := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND pay_status = ?", id, models.OrderStatusPendingPayment, models.PaymentStatusPending).
		UpdateColumns(map[string]interface{}{
			"status":       to,
			"cancelled_at": at,
			"updated_at":   at,
		})
	return checkAffected(result)
}

// MarkPointsCredited 标记积分已发放，仅成功一次
func (r *OrderRepository) MarkPointsCredited(ctx context.Context, tx *gorm.DB, id int64) error {
	result := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND points_credited = ?", id, false).
		UpdateColumn("points_credited", true)
	return checkAffected(result)
}

// ListStalePending 获取超时未支付订单
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND pay_status = ? AND created_at < ?",
			models.OrderStatusPendingPayment, models.PaymentStatusPending, before).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListByAccount 获取账户订单列表
func (r *OrderRepository) ListByAccount(ctx context.Context, accountID int64, offset, limit int) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Items").Preload("Refund").
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
