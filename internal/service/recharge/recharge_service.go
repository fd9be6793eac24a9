// Package recharge 提供余额充值与会员升级
package recharge

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	"github.com/dumeirei/storefront-settlement/internal/common/tracing"
	"github.com/dumeirei/storefront-settlement/internal/common/utils"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// DefaultMaxAmount 单笔充值上限
var DefaultMaxAmount = decimal.NewFromInt(5000)

// errSettled 事务内发现充值单已被并发结算
var errSettled = stderrors.New("recharge already settled")

// RechargeService 充值服务
type RechargeService struct {
	db           *gorm.DB
	rechargeRepo *repository.RechargeRepository
	accountRepo  *repository.AccountRepository
	couponRepo   *repository.CouponRepository
	shop         shop.Provider
	gateway      wechatpay.Gateway
	publisher    mqtt.EventPublisher
	maxAmount    decimal.Decimal
}

// NewRechargeService 创建充值服务
func NewRechargeService(
	db *gorm.DB,
	rechargeRepo *repository.RechargeRepository,
	accountRepo *repository.AccountRepository,
	couponRepo *repository.CouponRepository,
	shopProvider shop.Provider,
	gateway wechatpay.Gateway,
	publisher mqtt.EventPublisher,
) *RechargeService {
	if publisher == nil {
		publisher = mqtt.NoopPublisher{}
	}
	return &RechargeService{
		db:           db,
		rechargeRepo: rechargeRepo,
		accountRepo:  accountRepo,
		couponRepo:   couponRepo,
		shop:         shopProvider,
		gateway:      gateway,
		publisher:    publisher,
		maxAmount:    DefaultMaxAmount,
	}
}

// SetMaxAmount 设置单笔充值上限
func (s *RechargeService) SetMaxAmount(max decimal.Decimal) {
	if max.IsPositive() {
		s.maxAmount = max
	}
}

// CreateRechargeRequest 充值请求
type CreateRechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreateRechargeResponse 充值响应
type CreateRechargeResponse struct {
	Recharge *models.Recharge        `json:"recharge"`
	Payment  *wechatpay.ClientPayload `json:"payment"`
}

// LevelFor 累计充值对应的会员等级，取门槛不超过累计金额的最高等级
func LevelFor(total decimal.Decimal, levels []shop.MemberLevel) int {
	level := 0
	for _, l := range levels {
		if l.Threshold.LessThanOrEqual(total) && l.Level > level {
			level = l.Level
		}
	}
	return level
}

// CreateRechargeOrder 创建充值单并发起支付，发起失败时删除充值单
func (s *RechargeService) CreateRechargeOrder(ctx context.Context, accountID int64, amount decimal.Decimal) (resp *CreateRechargeResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "recharge.CreateRechargeOrder", tracing.WithAccountID(accountID))
	defer func() { tracing.End(span, err) }()

	if !amount.IsPositive() || amount.GreaterThan(s.maxAmount) || !amount.Equal(amount.Round(2)) {
		return nil, errors.ErrInvalidAmount.WithMessage(
			fmt.Sprintf("充值金额需大于0且不超过%s元", s.maxAmount.StringFixed(2)))
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrAccountNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	recharge := &models.Recharge{
		RechargeNo: utils.GenerateOrderNo("RC"),
		AccountID:  accountID,
		Amount:     amount,
		Status:     models.RechargeStatusPending,
	}
	if err := s.rechargeRepo.Create(ctx, recharge); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	span.SetAttributes(tracing.WithRechargeNo(recharge.RechargeNo))

	payload, err := s.gateway.CreatePaymentIntent(ctx, &wechatpay.PaymentIntentRequest{
		OutTradeNo:  recharge.RechargeNo,
		Description: "余额充值",
		Amount:      amount,
		OpenID:      account.OpenID,
	})
	if err != nil {
		logger.Warn("充值发起支付失败，删除充值单",
			logger.RechargeNo(recharge.RechargeNo),
			logger.AccountID(accountID),
			logger.Err(err),
		)
		if delErr := s.rechargeRepo.DeletePending(context.WithoutCancel(ctx), recharge.ID); delErr != nil {
			logger.Error("删除充值单失败", logger.RechargeNo(recharge.RechargeNo), logger.Err(delErr))
		}
		return nil, errors.ErrPaymentFailed.WithError(err)
	}

	logger.Info("充值单已创建",
		logger.RechargeNo(recharge.RechargeNo),
		logger.AccountID(accountID),
		logger.String("amount", amount.StringFixed(2)),
	)
	return &CreateRechargeResponse{Recharge: recharge, Payment: payload}, nil
}

// SettleRecharge 处理充值支付成功通知
// 余额、累计充值、会员等级与升级赠券在一个事务内完成，重复通知只生效一次
func (s *RechargeService) SettleRecharge(ctx context.Context, n *wechatpay.PaymentNotification) (err error) {
	ctx, span := tracing.StartSpan(ctx, "recharge.SettleRecharge", tracing.WithRechargeNo(n.ExternalRef))
	defer func() { tracing.End(span, err) }()

	if !n.Success() {
		logger.Info("充值通知非成功状态，忽略", logger.RechargeNo(n.ExternalRef), logger.String("status", n.Status))
		return nil
	}

	found, err := s.rechargeRepo.GetByRechargeNo(ctx, n.ExternalRef)
	if err != nil {
		if repository.IsNotFound(err) {
			logger.Warn("充值通知未匹配到充值单", logger.RechargeNo(n.ExternalRef))
			metrics.GetMetrics().RecordSettlement("recharge", "unknown")
			return nil
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if found.Status != models.RechargeStatusPending {
		metrics.GetMetrics().RecordSettlement("recharge", "duplicate")
		return nil
	}

	cfg, err := s.shop.Get(ctx)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}

	var recharge *models.Recharge
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var err error
		recharge, err = s.rechargeRepo.GetForUpdate(ctx, tx, n.ExternalRef)
		if err != nil {
			return err
		}
		if recharge.Status != models.RechargeStatusPending {
			return errSettled
		}

		account, err := s.accountRepo.GetForUpdate(ctx, tx, recharge.AccountID)
		if err != nil {
			return err
		}
		nextBalance := account.Balance.Add(recharge.Amount)
		nextTotal := account.TotalRecharge.Add(recharge.Amount)
		nextLevel := LevelFor(nextTotal, cfg.MemberLevels)
		if nextLevel < account.MemberLevel {
			nextLevel = account.MemberLevel
		}

		if err := s.accountRepo.ApplyRecharge(ctx, tx, account.ID, recharge.Amount, nextLevel); err != nil {
			return err
		}
		if err := s.accountRepo.CreateWalletTransaction(ctx, tx, &models.WalletTransaction{
			AccountID:     account.ID,
			Type:          models.WalletTxRecharge,
			Amount:        recharge.Amount,
			BalanceBefore: account.Balance,
			BalanceAfter:  nextBalance,
			RelatedNo:     recharge.RechargeNo,
			Remark:        "余额充值",
		}); err != nil {
			return err
		}

		warnings, err := s.grantBundles(ctx, tx, account.ID, account.MemberLevel, nextLevel, cfg)
		if err != nil {
			return err
		}

		recharge.Status = models.RechargeStatusPaid
		recharge.PaidAt = &now
		if n.TxnRef != "" {
			recharge.ExternalTxnRef = utils.StringPtr(n.TxnRef)
		}
		recharge.MemberLevelFrom = account.MemberLevel
		recharge.MemberLevelTo = nextLevel
		recharge.GrantWarnings = warnings
		if err := s.rechargeRepo.MarkPaid(ctx, tx, recharge); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errSettled
			}
			return err
		}
		return nil
	})
	if stderrors.Is(err, errSettled) {
		metrics.GetMetrics().RecordSettlement("recharge", "duplicate")
		return nil
	}
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordSettlement("recharge", "paid")
	metrics.GetMetrics().RecordRecharge(recharge.MemberLevelTo)
	s.publisher.Publish(ctx, mqtt.EventRechargePaid, map[string]interface{}{
		"recharge_no": recharge.RechargeNo,
		"amount":      recharge.Amount.StringFixed(2),
		"level_from":  recharge.MemberLevelFrom,
		"level_to":    recharge.MemberLevelTo,
	})
	logger.Info("充值到账",
		logger.RechargeNo(recharge.RechargeNo),
		logger.AccountID(recharge.AccountID),
		logger.String("amount", recharge.Amount.StringFixed(2)),
		logger.Int("level_from", recharge.MemberLevelFrom),
		logger.Int("level_to", recharge.MemberLevelTo),
		logger.Int("warnings", len(recharge.GrantWarnings)),
	)
	return nil
}

// grantBundles 发放 (from, to] 各等级的升级赠券
// 同一模板跨等级合并后一次扣减库存；库存不足时按余量发放并记录告警
func (s *RechargeService) grantBundles(ctx context.Context, tx *gorm.DB, accountID int64, from, to int, cfg *shop.Config) ([]string, error) {
	var (
		order  []int64
		counts = map[int64]int64{}
	)
	for lvl := from + 1; lvl <= to; lvl++ {
		level, ok := cfg.Level(lvl)
		if !ok {
			continue
		}
		for _, grant := range level.Coupons {
			if _, seen := counts[grant.TemplateID]; !seen {
				order = append(order, grant.TemplateID)
			}
			counts[grant.TemplateID] += grant.Count
		}
	}

	warnings := []string{}
	for _, templateID := range order {
		want := counts[templateID]
		if want <= 0 {
			continue
		}

		template, err := s.couponRepo.GetTemplateForUpdate(ctx, tx, templateID)
		if err != nil {
			if repository.IsNotFound(err) {
				warnings = append(warnings, fmt.Sprintf("优惠券模板[%d]不存在，未发放", templateID))
				continue
			}
			return nil, err
		}
		if template.Status != models.StatusActive {
			warnings = append(warnings, fmt.Sprintf("优惠券[%s]已停用，未发放", template.Title))
			continue
		}

		grant := want
		if remaining := template.Remaining(); remaining < want {
			grant = remaining
			warnings = append(warnings, fmt.Sprintf("优惠券[%s]库存不足，应发%d张，实发%d张", template.Title, want, grant))
		}
		if grant == 0 {
			continue
		}

		if err := s.couponRepo.IncrementClaimed(ctx, tx, templateID, grant); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				warnings = append(warnings, fmt.Sprintf("优惠券[%s]库存不足，未发放", template.Title))
				continue
			}
			return nil, err
		}

		coupons := make([]*models.AccountCoupon, 0, grant)
		for i := int64(0); i < grant; i++ {
			coupons = append(coupons, &models.AccountCoupon{
				AccountID:  accountID,
				TemplateID: template.ID,
				Title:      template.Title,
				MinSpend:   template.MinSpend,
				Discount:   template.Discount,
				Source:     models.CouponSourceLevelUp,
				Status:     models.CouponStatusUnused,
			})
		}
		if err := s.couponRepo.CreateCoupons(ctx, tx, coupons); err != nil {
			return nil, err
		}
	}

	for _, w := range warnings {
		logger.Warn("升级赠券发放告警", logger.AccountID(accountID), logger.String("warning", w))
	}
	return warnings, nil
}

// ConfirmRechargePaid 主动查询充值支付结果，已支付则结算
func (s *RechargeService) ConfirmRechargePaid(ctx context.Context, accountID int64, rechargeNo string) (*models.Recharge, error) {
	recharge, err := s.GetRecharge(ctx, accountID, rechargeNo)
	if err != nil {
		return nil, err
	}
	if recharge.Status != models.RechargeStatusPending {
		return recharge, nil
	}

	result, err := s.gateway.QueryPayment(ctx, rechargeNo)
	if err != nil {
		return nil, errors.ErrPaymentFailed.WithMessage("查询支付结果失败").WithError(err)
	}
	if !result.Paid() {
		return recharge, nil
	}

	if err := s.SettleRecharge(ctx, &wechatpay.PaymentNotification{
		ExternalRef: rechargeNo,
		Status:      result.TradeState,
		TxnRef:      result.TransactionID,
	}); err != nil {
		return nil, err
	}
	return s.GetRecharge(ctx, accountID, rechargeNo)
}

// GetRecharge 获取账户充值单
func (s *RechargeService) GetRecharge(ctx context.Context, accountID int64, rechargeNo string) (*models.Recharge, error) {
	recharge, err := s.rechargeRepo.GetByRechargeNo(ctx, rechargeNo)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrRechargeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if recharge.AccountID != accountID {
		return nil, errors.ErrRechargeNotFound
	}
	return recharge, nil
}
