// Package points 订单积分的发放与退回
package points

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
)

// Ledger 积分账本
// 订单积分只发放一次（PointsCredited），售后只退回一次（PointsReverted）
type Ledger struct {
	accountRepo *repository.AccountRepository
	orderRepo   *repository.OrderRepository
}

// NewLedger 创建积分账本
func NewLedger(accountRepo *repository.AccountRepository, orderRepo *repository.OrderRepository) *Ledger {
	return &Ledger{
		accountRepo: accountRepo,
		orderRepo:   orderRepo,
	}
}

// CreditOrder 发放订单积分，返回实际发放的积分
// 必须在事务内调用，重复调用不会重复发放
func (l *Ledger) CreditOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error) {
	if err := l.orderRepo.MarkPointsCredited(ctx, tx, order.ID); err != nil {
		if stderrors.Is(err, repository.ErrNoRowsAffected) {
			return 0, nil
		}
		return 0, err
	}
	order.PointsCredited = true

	if order.PointsEarn <= 0 {
		return 0, nil
	}

	account, err := l.accountRepo.GetForUpdate(ctx, tx, order.AccountID)
	if err != nil {
		return 0, err
	}
	if err := l.accountRepo.AddPoints(ctx, tx, account.ID, order.PointsEarn); err != nil {
		return 0, err
	}
	if err := l.accountRepo.CreatePointsLog(ctx, tx, &models.PointsLog{
		AccountID: account.ID,
		Type:      models.PointsLogEarn,
		Points:    order.PointsEarn,
		Balance:   account.Points + order.PointsEarn,
		RelatedNo: order.OrderNo,
	}); err != nil {
		return 0, err
	}

	logger.Info("订单积分已发放",
		logger.OrderNo(order.OrderNo),
		logger.AccountID(account.ID),
		logger.Int64("points", order.PointsEarn),
	)
	return order.PointsEarn, nil
}

// RevertOrder 退回订单积分，扣减 min(订单积分, 当前积分)
// 未发放积分的订单不扣减；refund.PointsReverted 保证只退回一次
func (l *Ledger) RevertOrder(ctx context.Context, tx *gorm.DB, order *models.Order, refund *models.OrderRefund) error {
	if refund.PointsReverted {
		return nil
	}
	refund.PointsReverted = true
	refund.PointsDelta = 0

	if !order.PointsCredited || order.PointsEarn <= 0 {
		return nil
	}

	account, err := l.accountRepo.GetForUpdate(ctx, tx, order.AccountID)
	if err != nil {
		return err
	}
	delta := order.PointsEarn
	if account.Points < delta {
		delta = account.Points
	}
	if delta <= 0 {
		return nil
	}

	if err := l.accountRepo.DeductPoints(ctx, tx, account.ID, delta); err != nil {
		return err
	}
	if err := l.accountRepo.CreatePointsLog(ctx, tx, &models.PointsLog{
		AccountID: account.ID,
		Type:      models.PointsLogRevert,
		Points:    -delta,
		Balance:   account.Points - delta,
		RelatedNo: order.OrderNo,
	}); err != nil {
		return err
	}
	refund.PointsDelta = delta

	logger.Info("售后退回订单积分",
		logger.OrderNo(order.OrderNo),
		logger.AccountID(account.ID),
		logger.Int64("points", delta),
	)
	return nil
}
