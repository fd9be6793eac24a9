// Package order 提供订单与售后服务
package order

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
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
	"github.com/dumeirei/storefront-settlement/internal/service/pricing"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// PaymentSettler 支付结算
type PaymentSettler interface {
	SettleOrderPayment(ctx context.Context, n *wechatpay.PaymentNotification) error
}

// OrderService 订单服务
type OrderService struct {
	db           *gorm.DB
	orderRepo    *repository.OrderRepository
	accountRepo  *repository.AccountRepository
	addressRepo  *repository.AddressRepository
	productRepo  *repository.ProductRepository
	couponRepo   *repository.CouponRepository
	ledger       *points.Ledger
	shop         shop.Provider
	gateway      wechatpay.Gateway
	settler      PaymentSettler
	publisher    mqtt.EventPublisher
	retryBackoff time.Duration
}

// NewOrderService 创建订单服务
func NewOrderService(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	accountRepo *repository.AccountRepository,
	addressRepo *repository.AddressRepository,
	productRepo *repository.ProductRepository,
	couponRepo *repository.CouponRepository,
	shopProvider shop.Provider,
	gateway wechatpay.Gateway,
	publisher mqtt.EventPublisher,
) *OrderService {
	if publisher == nil {
		publisher = mqtt.NoopPublisher{}
	}
	return &OrderService{
		db:           db,
		orderRepo:    orderRepo,
		accountRepo:  accountRepo,
		addressRepo:  addressRepo,
		productRepo:  productRepo,
		couponRepo:   couponRepo,
		ledger:       points.NewLedger(accountRepo, orderRepo),
		shop:         shopProvider,
		gateway:      gateway,
		publisher:    publisher,
		retryBackoff: 50 * time.Millisecond,
	}
}

// SetRetryBackoff 设置事务冲突重试间隔
func (s *OrderService) SetRetryBackoff(d time.Duration) {
	s.retryBackoff = d
}

// SetSettler 设置主动查单后的支付结算
func (s *OrderService) SetSettler(settler PaymentSettler) {
	s.settler = settler
}

// CartLine 购物车行
type CartLine struct {
	ProductID int64  `json:"product_id" binding:"required"`
	SkuID     *int64 `json:"sku_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Channel    string     `json:"channel" binding:"required"`
	Items      []CartLine `json:"items"`
	AddressID  *int64     `json:"address_id,omitempty"`
	CouponID   *int64     `json:"coupon_id,omitempty"`
	PayMethod  string     `json:"pay_method" binding:"required"`
	Remark     string     `json:"remark,omitempty"`
	PickupTime string     `json:"pickup_time,omitempty"`
}

// CreateOrderResponse 下单响应
type CreateOrderResponse struct {
	Order   *models.Order            `json:"order"`
	Payment *wechatpay.ClientPayload `json:"payment,omitempty"`
}

// validChannels 履约方式
var validChannels = map[string]bool{
	models.ChannelPickup:   true,
	models.ChannelDelivery: true,
	models.ChannelExpress:  true,
}

// validate 事务外的参数校验
func (req *CreateOrderRequest) validate() error {
	if len(req.Items) == 0 {
		return errors.ErrCartEmpty
	}
	if !validChannels[req.Channel] {
		return errors.ErrInvalidMode.WithMessage(fmt.Sprintf("不支持的配送方式: %s", req.Channel))
	}
	if req.PayMethod != models.PaymentMethodWechat && req.PayMethod != models.PaymentMethodBalance {
		return errors.ErrInvalidMode.WithMessage(fmt.Sprintf("不支持的支付方式: %s", req.PayMethod))
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return errors.ErrInvalidParams.WithMessage("商品数量必须大于0")
		}
	}
	return nil
}

// CreateOrder 创建订单
// 事务冲突时重试一次；微信支付在事务提交后发起，失败则删除订单并退还优惠券
func (s *OrderService) CreateOrder(ctx context.Context, accountID int64, req *CreateOrderRequest) (resp *CreateOrderResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "order.CreateOrder", tracing.WithAccountID(accountID))
	defer func() { tracing.End(span, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}

	cfg, err := s.shop.Get(ctx)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	var (
		order  *models.Order
		openID string
	)
	err = s.withRetry(ctx, func() error {
		var txErr error
		order, openID, txErr = s.createInTx(ctx, accountID, req, cfg)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.WithOrderNo(order.OrderNo))

	resp = &CreateOrderResponse{Order: order}
	if order.Payment.Method == models.PaymentMethodWechat {
		payload, err := s.gateway.CreatePaymentIntent(ctx, &wechatpay.PaymentIntentRequest{
			OutTradeNo:  order.Payment.ExternalOrderRef,
			Description: fmt.Sprintf("订单支付-%s", order.OrderNo),
			Amount:      order.Amount.Total,
			OpenID:      openID,
		})
		if err != nil {
			logger.Warn("发起支付失败，撤销订单",
				logger.OrderNo(order.OrderNo),
				logger.AccountID(accountID),
				logger.Err(err),
			)
			s.discardOrder(ctx, order)
			metrics.GetMetrics().RecordOrder("discarded")
			return nil, errors.ErrPaymentFailed.WithError(err)
		}
		resp.Payment = payload
	}

	metrics.GetMetrics().RecordOrder("created")
	s.publisher.Publish(ctx, mqtt.EventOrderCreated, map[string]interface{}{
		"order_no": order.OrderNo,
		"channel":  order.Channel,
		"status":   order.Status,
		"total":    order.Amount.Total.StringFixed(2),
	})
	logger.Info("订单创建成功",
		logger.OrderNo(order.OrderNo),
		logger.AccountID(accountID),
		logger.String("method", order.Payment.Method),
		logger.String("total", order.Amount.Total.StringFixed(2)),
	)
	return resp, nil
}

// withRetry 执行事务，瞬时冲突时重试一次
func (s *OrderService) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !database.IsTransientError(err) {
		return wrapTxError(err)
	}

	logger.Warn("下单事务冲突，重试", logger.Err(err))
	select {
	case <-ctx.Done():
		return errors.ErrTransaction.WithError(ctx.Err())
	case <-time.After(s.retryBackoff):
	}

	err = fn()
	if err != nil && database.IsTransientError(err) {
		return errors.ErrTransaction.WithError(err)
	}
	return wrapTxError(err)
}

// wrapTxError 业务错误原样返回，其余包装为数据库错误
func wrapTxError(err error) error {
	if err == nil || errors.IsAppError(err) {
		return err
	}
	return errors.ErrDatabaseError.WithError(err)
}

// createInTx 在一个事务内校验并落库订单
func (s *OrderService) createInTx(ctx context.Context, accountID int64, req *CreateOrderRequest, cfg *shop.Config) (*models.Order, string, error) {
	var (
		order  *models.Order
		openID string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		orderNo := utils.GenerateOrderNo("OD")

		// 1. 重新读取商品价格
		items, goods, err := s.snapshotItems(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		// 2. 账户与收货地址
		account, err := s.accountRepo.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrAccountNotFound
			}
			return err
		}
		openID = account.OpenID

		order = &models.Order{
			OrderNo:   orderNo,
			AccountID: accountID,
			Channel:   req.Channel,
			Status:    models.OrderStatusPendingPayment,
			Payment: models.OrderPayment{
				Method:           req.PayMethod,
				Status:           models.PaymentStatusPending,
				ExternalOrderRef: orderNo,
			},
			Items: items,
		}
		if req.Remark != "" {
			order.Remark = utils.StringPtr(req.Remark)
		}
		if req.PickupTime != "" {
			order.PickupTime = utils.StringPtr(req.PickupTime)
		}

		if req.Channel != models.ChannelPickup {
			if req.AddressID == nil {
				return errors.ErrAddressRequired
			}
			address, err := s.addressRepo.GetByAccount(ctx, tx, *req.AddressID, accountID)
			if err != nil {
				if repository.IsNotFound(err) {
					return errors.ErrAddressNotFound
				}
				return err
			}
			order.ReceiverName = utils.StringPtr(address.Receiver)
			order.ReceiverPhone = utils.StringPtr(address.Phone)
			order.ReceiverAddress = utils.StringPtr(address.Detail)
		}

		// 3. 优惠券
		var coupon *pricing.Coupon
		if req.CouponID != nil {
			instance, err := s.couponRepo.GetUnusedForUpdate(ctx, tx, *req.CouponID, accountID)
			if err != nil {
				if repository.IsNotFound(err) {
					return errors.ErrCouponNotFound
				}
				return err
			}
			coupon = &pricing.Coupon{MinSpend: instance.MinSpend, Discount: instance.Discount}
			order.UsedCouponID = &instance.ID
		}

		// 4. 金额
		amount, err := pricing.Compute(pricing.Input{
			Goods:       goods,
			Channel:     req.Channel,
			Delivery:    cfg.DeliveryRuleFor(req.Channel),
			MemberLevel: account.MemberLevel,
			Coupon:      coupon,
		})
		if err != nil {
			return err
		}
		order.Amount = amount
		order.PointsEarn = pricing.PointsEarn(amount.Total)

		if order.UsedCouponID != nil {
			if err := s.couponRepo.MarkUsed(ctx, tx, *order.UsedCouponID, orderNo, now); err != nil {
				if stderrors.Is(err, repository.ErrNoRowsAffected) {
					return errors.ErrCouponNotFound
				}
				return err
			}
		}

		// 5. 支付方式分支
		paidNow := false
		switch {
		case !amount.Total.IsPositive():
			order.Payment.Method = models.PaymentMethodFree
			paidNow = true
		case req.PayMethod == models.PaymentMethodBalance:
			if account.Balance.LessThan(amount.Total) {
				return errors.ErrBalanceInsufficient
			}
			if err := s.accountRepo.DeductBalance(ctx, tx, accountID, amount.Total); err != nil {
				if stderrors.Is(err, repository.ErrNoRowsAffected) {
					return errors.ErrBalanceInsufficient
				}
				return err
			}
			if err := s.accountRepo.CreateWalletTransaction(ctx, tx, &models.WalletTransaction{
				AccountID:     accountID,
				Type:          models.WalletTxConsume,
				Amount:        amount.Total.Neg(),
				BalanceBefore: account.Balance,
				BalanceAfter:  account.Balance.Sub(amount.Total),
				RelatedNo:     orderNo,
				Remark:        "余额支付订单",
			}); err != nil {
				return err
			}
			paidNow = true
		}

		if paidNow {
			order.Status = models.OrderStatusProcessing
			order.Payment.Status = models.PaymentStatusPaid
			order.Payment.PaidAt = &now
		}

		// 6. 落库
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}
		if paidNow {
			if _, err := s.ledger.CreditOrder(ctx, tx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return order, openID, nil
}

// snapshotItems 读取商品与规格，按服务端价格生成订单项
func (s *OrderService) snapshotItems(ctx context.Context, tx *gorm.DB, lines []CartLine) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(lines))
	goods := decimal.Zero

	for _, line := range lines {
		product, err := s.productRepo.GetProduct(ctx, tx, line.ProductID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, goods, errors.ErrProductUnavailable.WithMessage(fmt.Sprintf("商品[%d]不存在或已下架", line.ProductID))
			}
			return nil, goods, err
		}
		if !product.OnShelf {
			return nil, goods, errors.ErrProductUnavailable.WithMessage(fmt.Sprintf("商品[%s]已下架", product.Name))
		}

		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    line.Quantity,
		}

		if line.SkuID != nil {
			sku, err := s.productRepo.GetSku(ctx, tx, product.ID, *line.SkuID)
			if err != nil {
				if repository.IsNotFound(err) {
					return nil, goods, errors.ErrProductUnavailable.WithMessage(fmt.Sprintf("商品[%s]规格不存在", product.Name))
				}
				return nil, goods, err
			}
			if !sku.OnShelf {
				return nil, goods, errors.ErrProductUnavailable.WithMessage(fmt.Sprintf("商品[%s]规格[%s]已下架", product.Name, sku.Name))
			}
			item.SkuID = &sku.ID
			item.SkuName = utils.StringPtr(sku.Name)
			item.Price = sku.Price
		}

		item.TotalAmount = pricing.LineTotal(item.Price, item.Quantity)
		goods = goods.Add(item.TotalAmount)
		items = append(items, item)
	}
	return items, goods, nil
}

// discardOrder 删除发起支付失败的订单并退还优惠券
func (s *OrderService) discardOrder(ctx context.Context, order *models.Order) {
	ctx = context.WithoutCancel(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.restoreCoupon(ctx, tx, order); err != nil {
			return err
		}
		return s.orderRepo.Delete(ctx, tx, order.ID)
	})
	if err != nil {
		logger.Error("撤销订单失败", logger.OrderNo(order.OrderNo), logger.Err(err))
	}
}

// restoreCoupon 退还订单占用的优惠券
func (s *OrderService) restoreCoupon(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.UsedCouponID == nil {
		return nil
	}
	err := s.couponRepo.Restore(ctx, tx, *order.UsedCouponID, order.OrderNo)
	if stderrors.Is(err, repository.ErrNoRowsAffected) {
		logger.Warn("优惠券已不在本订单占用中", logger.OrderNo(order.OrderNo), logger.Int64("coupon_id", *order.UsedCouponID))
		return nil
	}
	return err
}

// CancelUnpaidOrder 用户取消未支付订单
func (s *OrderService) CancelUnpaidOrder(ctx context.Context, accountID int64, orderNo string) error {
	if err := s.closePending(ctx, orderNo, &accountID, models.OrderStatusCancelled); err != nil {
		return err
	}
	metrics.GetMetrics().RecordOrder("cancelled")
	logger.Info("订单已取消", logger.OrderNo(orderNo), logger.AccountID(accountID))
	return nil
}

// CloseOrder 关闭超时未支付订单
func (s *OrderService) CloseOrder(ctx context.Context, orderNo string) error {
	if err := s.closePending(ctx, orderNo, nil, models.OrderStatusClosed); err != nil {
		return err
	}
	metrics.GetMetrics().RecordOrder("closed")
	logger.Info("超时订单已关闭", logger.OrderNo(orderNo))
	return nil
}

// closePending 待支付订单 -> 已取消/已关闭，并退还优惠券
func (s *OrderService) closePending(ctx context.Context, orderNo string, accountID *int64, to string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetForUpdate(ctx, tx, orderNo)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrOrderNotFound
			}
			return err
		}
		if accountID != nil && order.AccountID != *accountID {
			return errors.ErrOrderNotFound
		}
		if order.Status != models.OrderStatusPendingPayment || order.IsPaid() {
			return errors.ErrOrderStatusError.WithMessage("仅待支付订单可以取消")
		}

		if err := s.orderRepo.CancelPending(ctx, tx, order.ID, to, time.Now()); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrOrderStatusError.WithMessage("仅待支付订单可以取消")
			}
			return err
		}
		return s.restoreCoupon(ctx, tx, order)
	})
	return wrapTxError(err)
}

// fulfillmentRank 履约状态顺序
var fulfillmentRank = map[string]int{
	models.OrderStatusProcessing: 1,
	models.OrderStatusReady:      2,
	models.OrderStatusDelivering: 3,
	models.OrderStatusDone:       4,
}

// AdvanceOrder 商家推进履约状态，只能向前
func (s *OrderService) AdvanceOrder(ctx context.Context, orderNo, to string) (*models.Order, error) {
	toRank, ok := fulfillmentRank[to]
	if !ok || to == models.OrderStatusProcessing {
		return nil, errors.ErrInvalidParams.WithMessage(fmt.Sprintf("无效的目标状态: %s", to))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetForUpdate(ctx, tx, orderNo)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrOrderNotFound
			}
			return err
		}
		fromRank, ok := fulfillmentRank[order.Status]
		if !ok || fromRank >= toRank {
			return errors.ErrOrderStatusError.WithMessage(fmt.Sprintf("订单状态 %s 无法变更为 %s", order.Status, to))
		}
		if to == models.OrderStatusDelivering && order.Channel == models.ChannelPickup {
			return errors.ErrOrderStatusError.WithMessage("自提订单无需配送")
		}

		fields := map[string]interface{}{}
		if to == models.OrderStatusDone {
			fields["completed_at"] = time.Now()
		}
		if err := s.orderRepo.TransitStatus(ctx, tx, order.ID, []string{order.Status}, to, fields); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrOrderStatusError
			}
			return err
		}
		return nil
	})
	if err := wrapTxError(err); err != nil {
		return nil, err
	}

	if to == models.OrderStatusDone {
		metrics.GetMetrics().RecordOrder("completed")
	}
	logger.Info("订单状态推进", logger.OrderNo(orderNo), logger.String("to", to))
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

// ConfirmOrderPaid 主动查询支付结果，已支付则走支付结算
func (s *OrderService) ConfirmOrderPaid(ctx context.Context, accountID int64, orderNo string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, accountID, orderNo)
	if err != nil {
		return nil, err
	}
	if order.IsPaid() || order.Payment.Method != models.PaymentMethodWechat || s.settler == nil {
		return order, nil
	}

	result, err := s.gateway.QueryPayment(ctx, order.Payment.ExternalOrderRef)
	if err != nil {
		return nil, errors.ErrPaymentFailed.WithMessage("查询支付结果失败").WithError(err)
	}
	if !result.Paid() {
		return order, nil
	}

	if err := s.settler.SettleOrderPayment(ctx, &wechatpay.PaymentNotification{
		ExternalRef: order.Payment.ExternalOrderRef,
		Status:      result.TradeState,
		TxnRef:      result.TransactionID,
	}); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

// GetOrder 获取账户订单
func (s *OrderService) GetOrder(ctx context.Context, accountID int64, orderNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if order.AccountID != accountID {
		return nil, errors.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 获取账户订单列表
func (s *OrderService) ListOrders(ctx context.Context, accountID int64, page, pageSize int) ([]*models.Order, int64, error) {
	p := utils.Pagination{Page: page, PageSize: pageSize}
	p.Normalize()
	orders, total, err := s.orderRepo.ListByAccount(ctx, accountID, p.GetOffset(), p.GetLimit())
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return orders, total, nil
}

// ListStalePending 获取超时未支付订单号
func (s *OrderService) ListStalePending(ctx context.Context, timeout time.Duration, limit int) ([]string, error) {
	orders, err := s.orderRepo.ListStalePending(ctx, time.Now().Add(-timeout), limit)
	if err != nil {
		return nil, err
	}
	nos := make([]string, 0, len(orders))
	for _, o := range orders {
		nos = append(nos, o.OrderNo)
	}
	return nos, nil
}
