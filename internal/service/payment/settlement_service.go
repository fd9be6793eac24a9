// Package payment 提供支付回调结算与通知分发
package payment

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	"github.com/dumeirei/storefront-settlement/internal/common/tracing"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/internal/service/points"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// SettlementService 订单支付结算
type SettlementService struct {
	db        *gorm.DB
	orderRepo *repository.OrderRepository
	ledger    *points.Ledger
	publisher mqtt.EventPublisher
}

// NewSettlementService 创建支付结算服务
func NewSettlementService(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	accountRepo *repository.AccountRepository,
	publisher mqtt.EventPublisher,
) *SettlementService {
	if publisher == nil {
		publisher = mqtt.NoopPublisher{}
	}
	return &SettlementService{
		db:        db,
		orderRepo: orderRepo,
		ledger:    points.NewLedger(accountRepo, orderRepo),
		publisher: publisher,
	}
}

// SettleOrderPayment 处理订单支付成功通知
// 重复通知与并发通知只有一次生效
func (s *SettlementService) SettleOrderPayment(ctx context.Context, n *wechatpay.PaymentNotification) (err error) {
	ctx, span := tracing.StartSpan(ctx, "payment.SettleOrderPayment", tracing.WithOrderNo(n.ExternalRef))
	defer func() { tracing.End(span, err) }()

	if !n.Success() {
		logger.Info("支付通知非成功状态，忽略",
			logger.ExternalRef(n.ExternalRef),
			logger.String("status", n.Status),
		)
		return nil
	}

	found, err := s.orderRepo.GetByExternalRef(ctx, n.ExternalRef)
	if err != nil {
		if repository.IsNotFound(err) {
			logger.Warn("支付通知未匹配到订单", logger.ExternalRef(n.ExternalRef))
			metrics.GetMetrics().RecordSettlement("order", "unknown")
			return nil
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if found.IsPaid() {
		metrics.GetMetrics().RecordSettlement("order", "duplicate")
		return nil
	}

	var (
		order   *models.Order
		settled bool
		credit  int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, tx, found.OrderNo)
		if err != nil {
			return err
		}
		if order.IsPaid() {
			return nil
		}

		now := time.Now()
		if err := s.orderRepo.MarkPaid(ctx, tx, order.ID, n.TxnRef, now); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return nil
			}
			return err
		}
		order.Payment.Status = models.PaymentStatusPaid
		order.Payment.PaidAt = &now
		order.Payment.ExternalTxnRef = &n.TxnRef

		if order.Status == models.OrderStatusPendingPayment {
			err := s.orderRepo.TransitStatus(ctx, tx, order.ID,
				[]string{models.OrderStatusPendingPayment}, models.OrderStatusProcessing, nil)
			if err != nil {
				return err
			}
			order.Status = models.OrderStatusProcessing
		} else {
			logger.Warn("订单已关闭但收到支付，需人工退款",
				logger.OrderNo(order.OrderNo),
				logger.String("status", order.Status),
				logger.ExternalRef(n.ExternalRef),
			)
		}

		credit, err = s.ledger.CreditOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		if errors.IsAppError(err) {
			return err
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if !settled {
		metrics.GetMetrics().RecordSettlement("order", "duplicate")
		return nil
	}

	if order.Status != models.OrderStatusProcessing {
		metrics.GetMetrics().RecordSettlement("order", "late_paid")
		// 超时关闭的订单可走售后退款，已取消订单只能人工退款
		s.publisher.Publish(ctx, mqtt.EventOrderLatePaid, map[string]interface{}{
			"order_no":   order.OrderNo,
			"status":     order.Status,
			"total":      order.Amount.Total.StringFixed(2),
			"refundable": order.Status == models.OrderStatusClosed,
		})
		return nil
	}

	metrics.GetMetrics().RecordSettlement("order", "paid")
	s.publisher.Publish(ctx, mqtt.EventOrderPaid, map[string]interface{}{
		"order_no": order.OrderNo,
		"status":   order.Status,
		"total":    order.Amount.Total.StringFixed(2),
	})
	logger.Info("订单支付成功",
		logger.OrderNo(order.OrderNo),
		logger.AccountID(order.AccountID),
		logger.String("txn_ref", n.TxnRef),
		logger.Int64("points", credit),
	)
	return nil
}
