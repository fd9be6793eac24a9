package order

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	"github.com/dumeirei/storefront-settlement/internal/common/tracing"
	"github.com/dumeirei/storefront-settlement/internal/common/utils"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/internal/service/points"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
	"github.com/dumeirei/storefront-settlement/pkg/sms"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// 售后日志动作
const (
	RefundActionApply   = "apply"
	RefundActionReapply = "reapply"
	RefundActionApprove = "approve"
	RefundActionReject  = "reject"
	RefundActionSuccess = "success"
	RefundActionFail    = "fail"
)

// 售后处理决定
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// DefaultRefundWindow 订单完成后可申请售后的期限
const DefaultRefundWindow = 3 * 24 * time.Hour

// RefundService 售后服务
type RefundService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	refundRepo  *repository.RefundRepository
	accountRepo *repository.AccountRepository
	ledger      *points.Ledger
	shop        shop.Provider
	gateway     wechatpay.Gateway
	sms         sms.Sender
	publisher   mqtt.EventPublisher
	window      time.Duration
	now         func() time.Time
}

// NewRefundService 创建售后服务
func NewRefundService(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	refundRepo *repository.RefundRepository,
	accountRepo *repository.AccountRepository,
	shopProvider shop.Provider,
	gateway wechatpay.Gateway,
	smsSender sms.Sender,
	publisher mqtt.EventPublisher,
) *RefundService {
	if publisher == nil {
		publisher = mqtt.NoopPublisher{}
	}
	return &RefundService{
		db:          db,
		orderRepo:   orderRepo,
		refundRepo:  refundRepo,
		accountRepo: accountRepo,
		ledger:      points.NewLedger(accountRepo, orderRepo),
		shop:        shopProvider,
		gateway:     gateway,
		sms:         smsSender,
		publisher:   publisher,
		window:      DefaultRefundWindow,
		now:         time.Now,
	}
}

// SetWindow 设置售后期限
func (s *RefundService) SetWindow(d time.Duration) {
	if d > 0 {
		s.window = d
	}
}

// ApplyRefundRequest 售后申请
// 商家代客申请时 Source 为 merchant，不校验订单归属
type ApplyRefundRequest struct {
	AccountID int64  `json:"-"`
	OrderNo   string `json:"-"`
	Reason    string `json:"reason" binding:"required,max=255"`
	Source    string `json:"-"`
	Operator  string `json:"-"`
}

// HandleRefundRequest 售后处理
type HandleRefundRequest struct {
	OrderNo  string `json:"-"`
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Remark   string `json:"remark,omitempty" binding:"max=255"`
	Operator string `json:"-"`
}

// lockOrder 事务内加锁读取订单，accountID 非 0 时校验归属
func (s *RefundService) lockOrder(ctx context.Context, tx *gorm.DB, orderNo string, accountID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetForUpdate(ctx, tx, orderNo)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, err
	}
	if accountID != 0 && order.AccountID != accountID {
		return nil, errors.ErrOrderNotFound
	}
	return order, nil
}

// lockRefund 事务内加锁读取订单售后
func (s *RefundService) lockRefund(ctx context.Context, tx *gorm.DB, orderID int64) (*models.OrderRefund, error) {
	refund, err := s.refundRepo.GetByOrderID(ctx, tx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrRefundNotFound
		}
		return nil, err
	}
	return refund, nil
}

// checkEligible 校验订单是否可申请售后
func (s *RefundService) checkEligible(order *models.Order, now time.Time) error {
	if !order.IsPaid() {
		return errors.ErrRefundNotAllowed.WithMessage("订单未支付")
	}
	if order.Status == models.OrderStatusCancelled {
		return errors.ErrRefundNotAllowed.WithMessage("订单已取消")
	}
	if order.Status == models.OrderStatusDone {
		if order.CompletedAt == nil || now.After(order.CompletedAt.Add(s.window)) {
			return errors.ErrRefundNotAllowed.WithMessage("已超过售后期限")
		}
	}
	return nil
}

// ApplyRefund 申请售后，被驳回或退款失败后可重新申请
func (s *RefundService) ApplyRefund(ctx context.Context, req *ApplyRefundRequest) (refund *models.OrderRefund, err error) {
	ctx, span := tracing.StartSpan(ctx, "refund.ApplyRefund", tracing.WithOrderNo(req.OrderNo))
	defer func() { tracing.End(span, err) }()

	source := req.Source
	if source == "" {
		source = models.RefundSourceCustomer
	}
	accountID := req.AccountID
	if source == models.RefundSourceMerchant {
		accountID = 0
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		order, err := s.lockOrder(ctx, tx, req.OrderNo, accountID)
		if err != nil {
			return err
		}
		if err := s.checkEligible(order, now); err != nil {
			return err
		}

		existing, err := s.refundRepo.GetByOrderID(ctx, tx, order.ID)
		if err != nil && !repository.IsNotFound(err) {
			return err
		}

		if existing == nil {
			refund = &models.OrderRefund{
				OrderID:   order.ID,
				OrderNo:   order.OrderNo,
				AccountID: order.AccountID,
				Status:    models.RefundStatusApplied,
				Reason:    req.Reason,
				Source:    source,
				Amount:    order.Amount.Total,
				AppliedAt: now,
			}
			refund.AppendLog(RefundActionApply, req.Operator, req.Reason, now)
			if err := s.refundRepo.Save(ctx, tx, refund); err != nil {
				if database.IsUniqueViolation(err) {
					return errors.ErrRefundStatusError.WithMessage("售后处理中")
				}
				return err
			}
			return nil
		}

		switch existing.Status {
		case models.RefundStatusApplied, models.RefundStatusProcessing:
			return errors.ErrRefundStatusError.WithMessage("售后处理中")
		case models.RefundStatusSuccess:
			return errors.ErrRefundNotAllowed.WithMessage("订单已退款")
		}

		from := existing.Status
		existing.Status = models.RefundStatusApplied
		existing.Reason = req.Reason
		existing.Source = source
		existing.Remark = nil
		existing.Amount = order.Amount.Total
		existing.AppliedAt = now
		existing.HandleAt = nil
		existing.RefundedAt = nil
		existing.AppendLog(RefundActionReapply, req.Operator, req.Reason, now)
		if err := s.refundRepo.Transit(ctx, tx, existing, from); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrRefundStatusError
			}
			return err
		}
		refund = existing
		return nil
	})
	if err := wrapTxError(err); err != nil {
		return nil, err
	}

	metrics.GetMetrics().RecordRefund(models.RefundStatusApplied)
	s.publisher.Publish(ctx, mqtt.EventRefundApplied, map[string]interface{}{
		"order_no": refund.OrderNo,
		"amount":   refund.Amount.StringFixed(2),
		"reason":   refund.Reason,
		"source":   refund.Source,
	})
	logger.Info("售后申请成功",
		logger.OrderNo(refund.OrderNo),
		logger.AccountID(refund.AccountID),
		logger.String("source", refund.Source),
	)
	return refund, nil
}

// CancelRefund 用户撤销售后申请，仅已申请状态可撤销
func (s *RefundService) CancelRefund(ctx context.Context, accountID int64, orderNo string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderNo, accountID)
		if err != nil {
			return err
		}
		refund, err := s.lockRefund(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if refund.Status != models.RefundStatusApplied {
			return errors.ErrRefundStatusError.WithMessage("售后已在处理，无法撤销")
		}
		if err := s.refundRepo.DeleteApplied(ctx, tx, refund.ID); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrRefundStatusError.WithMessage("售后已在处理，无法撤销")
			}
			return err
		}
		return nil
	})
	if err := wrapTxError(err); err != nil {
		return err
	}

	logger.Info("售后申请已撤销", logger.OrderNo(orderNo), logger.AccountID(accountID))
	return nil
}

// HandleRefund 商家处理售后
// 零元单与余额支付的订单同意即退款成功；微信支付订单发起网关退款，结果以退款回调为准
func (s *RefundService) HandleRefund(ctx context.Context, req *HandleRefundRequest) (refund *models.OrderRefund, err error) {
	ctx, span := tracing.StartSpan(ctx, "refund.HandleRefund", tracing.WithOrderNo(req.OrderNo))
	defer func() { tracing.End(span, err) }()

	if req.Decision != DecisionApprove && req.Decision != DecisionReject {
		return nil, errors.ErrInvalidParams.WithMessage("处理结果必须为 approve 或 reject")
	}

	cfg, err := s.shop.Get(ctx)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	var order *models.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		var err error
		order, err = s.lockOrder(ctx, tx, req.OrderNo, 0)
		if err != nil {
			return err
		}
		refund, err = s.lockRefund(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if refund.Status != models.RefundStatusApplied {
			return errors.ErrRefundStatusError
		}

		refund.HandleAt = &now
		if req.Remark != "" {
			refund.Remark = utils.StringPtr(req.Remark)
		}

		if req.Decision == DecisionReject {
			refund.Status = models.RefundStatusRejected
			refund.AppendLog(RefundActionReject, req.Operator, req.Remark, now)
			return s.transit(ctx, tx, refund, models.RefundStatusApplied)
		}

		refund.AppendLog(RefundActionApprove, req.Operator, req.Remark, now)
		switch {
		case order.Payment.Method == models.PaymentMethodWechat && refund.Amount.IsPositive():
			if cfg.RefundSubMchID == "" {
				return errors.ErrRefundConfigMissing
			}
			// 沿用已发往网关的退款单号，网关按单号去重
			if refund.ExternalRefundRef == nil {
				refundNo := utils.GenerateOrderNo("RF")
				refund.ExternalRefundRef = &refundNo
			}
			refund.Status = models.RefundStatusProcessing

		case order.Payment.Method == models.PaymentMethodBalance && refund.Amount.IsPositive():
			account, err := s.accountRepo.GetForUpdate(ctx, tx, order.AccountID)
			if err != nil {
				return err
			}
			if err := s.accountRepo.AddBalance(ctx, tx, account.ID, refund.Amount); err != nil {
				return err
			}
			if err := s.accountRepo.CreateWalletTransaction(ctx, tx, &models.WalletTransaction{
				AccountID:     account.ID,
				Type:          models.WalletTxRefund,
				Amount:        refund.Amount,
				BalanceBefore: account.Balance,
				BalanceAfter:  account.Balance.Add(refund.Amount),
				RelatedNo:     order.OrderNo,
				Remark:        "售后退款",
			}); err != nil {
				return err
			}
			if err := s.markSuccess(ctx, tx, order, refund, req.Operator, now); err != nil {
				return err
			}

		default:
			if err := s.markSuccess(ctx, tx, order, refund, req.Operator, now); err != nil {
				return err
			}
		}
		return s.transit(ctx, tx, refund, models.RefundStatusApplied)
	})
	if err := wrapTxError(err); err != nil {
		return nil, err
	}

	metrics.GetMetrics().RecordRefund(refund.Status)
	logger.Info("售后已处理",
		logger.OrderNo(refund.OrderNo),
		logger.String("decision", req.Decision),
		logger.String("status", refund.Status),
		logger.String("operator", req.Operator),
	)

	if refund.Status == models.RefundStatusProcessing {
		return s.dispatchRefund(ctx, order, refund, cfg.RefundSubMchID)
	}
	s.notifyOutcome(ctx, refund)
	return refund, nil
}

// dispatchRefund 事务提交后向网关发起退款，失败则标记退款失败
func (s *RefundService) dispatchRefund(ctx context.Context, order *models.Order, refund *models.OrderRefund, subMchID string) (*models.OrderRefund, error) {
	refundNo := utils.SafeString(refund.ExternalRefundRef)
	resp, err := s.gateway.CreateRefund(ctx, &wechatpay.RefundRequest{
		OutTradeNo:  order.Payment.ExternalOrderRef,
		OutRefundNo: refundNo,
		Reason:      refund.Reason,
		Refund:      refund.Amount,
		Total:       order.Amount.Total,
		SubMchID:    subMchID,
	})
	if err != nil {
		logger.Error("发起退款失败",
			logger.OrderNo(order.OrderNo),
			logger.RefundNo(refundNo),
			logger.Err(err),
		)
		if failErr := s.SettleRefund(context.WithoutCancel(ctx), &wechatpay.RefundNotification{
			ExternalRef: refundNo,
			Status:      wechatpay.RefundStatusAbnormal,
		}); failErr != nil {
			logger.Error("标记退款失败出错", logger.RefundNo(refundNo), logger.Err(failErr))
		}
		return nil, errors.ErrRefundFailed.WithError(err)
	}

	logger.Info("已发起网关退款",
		logger.OrderNo(order.OrderNo),
		logger.RefundNo(refundNo),
		logger.String("gateway_status", resp.Status),
	)
	if resp.Status == wechatpay.RefundStatusSuccess {
		if err := s.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: refundNo, Status: resp.Status}); err != nil {
			return nil, err
		}
		return s.GetRefund(ctx, order.OrderNo)
	}
	return refund, nil
}

// SettleRefund 处理网关退款结果，按退款单号幂等
func (s *RefundService) SettleRefund(ctx context.Context, n *wechatpay.RefundNotification) (err error) {
	ctx, span := tracing.StartSpan(ctx, "refund.SettleRefund", tracing.WithRefundNo(n.ExternalRef))
	defer func() { tracing.End(span, err) }()

	found, err := s.refundRepo.GetByExternalRef(ctx, n.ExternalRef)
	if err != nil {
		if repository.IsNotFound(err) {
			logger.Warn("退款回调未匹配到售后", logger.RefundNo(n.ExternalRef))
			return nil
		}
		return errors.ErrDatabaseError.WithError(err)
	}

	var (
		refund  *models.OrderRefund
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		order, err := s.lockOrder(ctx, tx, found.OrderNo, 0)
		if err != nil {
			return err
		}
		refund, err = s.lockRefund(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if utils.SafeString(refund.ExternalRefundRef) != n.ExternalRef {
			return nil
		}

		from := refund.Status
		switch {
		case from == models.RefundStatusSuccess:
			return nil
		case n.Success():
			// 单号已发往网关，任何未成功状态收到成功通知都以网关为准
			if err := s.markSuccess(ctx, tx, order, refund, "gateway", now); err != nil {
				return err
			}
		default:
			if from != models.RefundStatusProcessing {
				return nil
			}
			refund.Status = models.RefundStatusFailed
			refund.AppendLog(RefundActionFail, "gateway", n.Status, now)
		}
		changed = true
		return s.transit(ctx, tx, refund, from)
	})
	if err := wrapTxError(err); err != nil {
		return err
	}
	if !changed {
		logger.Info("退款结果已处理，忽略重复通知", logger.RefundNo(n.ExternalRef))
		return nil
	}

	metrics.GetMetrics().RecordRefund(refund.Status)
	logger.Info("退款结果已更新",
		logger.OrderNo(refund.OrderNo),
		logger.RefundNo(n.ExternalRef),
		logger.String("status", refund.Status),
	)
	s.notifyOutcome(ctx, refund)
	return nil
}

// markSuccess 标记退款成功并退回订单积分
func (s *RefundService) markSuccess(ctx context.Context, tx *gorm.DB, order *models.Order, refund *models.OrderRefund, operator string, now time.Time) error {
	if err := s.ledger.RevertOrder(ctx, tx, order, refund); err != nil {
		return err
	}
	refund.Status = models.RefundStatusSuccess
	refund.RefundedAt = &now
	refund.AppendLog(RefundActionSuccess, operator, "", now)
	return nil
}

// transit 条件保存售后，前置状态已变化时返回状态错误
func (s *RefundService) transit(ctx context.Context, tx *gorm.DB, refund *models.OrderRefund, from string) error {
	if err := s.refundRepo.Transit(ctx, tx, refund, from); err != nil {
		if stderrors.Is(err, repository.ErrNoRowsAffected) {
			return errors.ErrRefundStatusError
		}
		return err
	}
	return nil
}

// notifyOutcome 售后结果短信通知，失败不影响售后流程
func (s *RefundService) notifyOutcome(ctx context.Context, refund *models.OrderRefund) {
	if s.sms == nil {
		return
	}

	var template string
	switch refund.Status {
	case models.RefundStatusSuccess:
		template = sms.TemplateRefundSuccess
	case models.RefundStatusFailed:
		template = sms.TemplateRefundFailed
	case models.RefundStatusRejected:
		template = sms.TemplateRefundRejected
	default:
		return
	}

	account, err := s.accountRepo.GetByID(ctx, refund.AccountID)
	if err != nil || account.Phone == nil || *account.Phone == "" {
		return
	}
	params := map[string]string{
		"order_no": refund.OrderNo,
		"amount":   refund.Amount.StringFixed(2),
	}
	if err := s.sms.Send(ctx, *account.Phone, template, params); err != nil {
		logger.Warn("售后短信发送失败",
			logger.OrderNo(refund.OrderNo),
			logger.String("phone", utils.MaskPhone(*account.Phone)),
			logger.Err(err),
		)
	}
}

// GetRefund 获取订单售后
func (s *RefundService) GetRefund(ctx context.Context, orderNo string) (*models.OrderRefund, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if order.Refund == nil {
		return nil, errors.ErrRefundNotFound
	}
	return order.Refund, nil
}
