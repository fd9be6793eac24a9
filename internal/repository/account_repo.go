package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/models"
)

// AccountRepository 账户仓储
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create 创建账户
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID 根据 ID 获取账户
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByOpenID 根据 OpenID 获取账户
func (r *AccountRepository) GetByOpenID(ctx context.Context, openID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("open_id = ?", openID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetForUpdate 获取账户（加锁）
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.Account, error) {
	var account models.Account
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// DeductBalance 扣减余额，余额不足时返回 ErrNoRowsAffected
func (r *AccountRepository) DeductBalance(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	return checkAffected(result)
}

// AddBalance 增加余额
func (r *AccountRepository) AddBalance(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	return checkAffected(result)
}

// AddPoints 增加积分
func (r *AccountRepository) AddPoints(ctx context.Context, tx *gorm.DB, id int64, points int64) error {
	result := tx.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", points))
	return checkAffected(result)
}

// DeductPoints 扣减积分，积分不足时返回 ErrNoRowsAffected
func (r *AccountRepository) DeductPoints(ctx context.Context, tx *gorm.DB, id int64, points int64) error {
	result := tx.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND points >= ?", id, points).
		UpdateColumn("points", gorm.Expr("points - ?", points))
	return checkAffected(result)
}

// ApplyRecharge 充值到账：余额与累计充值同时增加，会员等级只升不降
func (r *AccountRepository) ApplyRecharge(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal, level int) error {
	result := tx.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND member_level <= ?", id, level).
		UpdateColumns(map[string]interface{}{
			"balance":        gorm.Expr("balance + ?", amount),
			"total_recharge": gorm.Expr("total_recharge + ?", amount),
			"member_level":   level,
		})
	return checkAffected(result)
}

// CreateWalletTransaction 写入余额流水
func (r *AccountRepository) CreateWalletTransaction(ctx context.Context, tx *gorm.DB, txn *models.WalletTransaction) error {
	return tx.WithContext(ctx).Create(txn).Error
}

// CreatePointsLog 写入积分流水
func (r *AccountRepository) CreatePointsLog(ctx context.Context, tx *gorm.DB, log *models.PointsLog) error {
	return tx.WithContext(ctx).Create(log).Error
}

// ListWalletTransactions 获取余额流水
func (r *AccountRepository) ListWalletTransactions(ctx context.Context, accountID int64, offset, limit int) ([]*models.WalletTransaction, int64, error) {
	var list []*models.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListPointsLogs 获取积分流水
func (r *AccountRepository) ListPointsLogs(ctx context.Context, accountID int64) ([]*models.PointsLog, error) {
	var list []*models.PointsLog
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&list).Error
	return list, err
}
