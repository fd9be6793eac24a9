package order

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	"github.com/dumeirei/storefront-settlement/pkg/sms"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
	"github.com/dumeirei/storefront-settlement/tests/helpers"
)

const testSubMchID = "1900000109"

func setupRefundService(db *gorm.DB, gw wechatpay.Gateway, subMchID string) (*RefundService, *sms.MockSender) {
	cfg := shop.DefaultConfig()
	cfg.RefundSubMchID = subMchID
	sender := sms.NewMockSender()
	svc := NewRefundService(
		db,
		repository.NewOrderRepository(db),
		repository.NewRefundRepository(db),
		repository.NewAccountRepository(db),
		shop.StaticProvider{Config: cfg},
		gw,
		sender,
		nil,
	)
	return svc, sender
}

func applyRefund(t *testing.T, svc *RefundService, order *models.Order) *models.OrderRefund {
	t.Helper()
	refund, err := svc.ApplyRefund(context.Background(), &ApplyRefundRequest{
		AccountID: order.AccountID,
		OrderNo:   order.OrderNo,
		Reason:    "不想要了",
	})
	require.NoError(t, err)
	return refund
}

func TestRefundService_ApplyRefund(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc, _ := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 0)

	t.Run("制作中订单可申请", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusProcessing, "30")
		refund := applyRefund(t, svc, order)

		assert.Equal(t, models.RefundStatusApplied, refund.Status)
		assert.Equal(t, "30.00", refund.Amount.StringFixed(2))
		assert.Equal(t, models.RefundSourceCustomer, refund.Source)
		require.Len(t, refund.Logs, 1)
		assert.Equal(t, RefundActionApply, refund.Logs[0].Action)

		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "再次申请"})
		assert.True(t, stderrors.Is(err, errors.ErrRefundStatusError))
	})

	t.Run("未支付订单不可申请", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusPendingPayment, "30")
		require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("pay_status", models.PaymentStatusPending).Error)

		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "x"})
		assert.True(t, stderrors.Is(err, errors.ErrRefundNotAllowed))
	})

	t.Run("已取消订单不可申请", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusCancelled, "30")
		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "x"})
		assert.True(t, stderrors.Is(err, errors.ErrRefundNotAllowed))
	})

	t.Run("不能申请他人订单", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusProcessing, "30")
		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID + 1000, OrderNo: order.OrderNo, Reason: "x"})
		assert.True(t, stderrors.Is(err, errors.ErrOrderNotFound))
	})

	t.Run("商家代客申请不校验归属", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusReady, "30")
		refund, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{
			OrderNo:  order.OrderNo,
			Reason:   "商品售罄",
			Source:   models.RefundSourceMerchant,
			Operator: "admin",
		})
		require.NoError(t, err)
		assert.Equal(t, models.RefundSourceMerchant, refund.Source)
		assert.Equal(t, account.ID, refund.AccountID)
	})
}

func TestRefundService_ApplyRefund_Window(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc, _ := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 0)

	t.Run("完成3天内可申请", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusDone, "30")
		svc.now = func() time.Time { return order.CompletedAt.Add(71 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "x"})
		require.NoError(t, err)
	})

	t.Run("超过3天不可申请", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusDone, "30")
		svc.now = func() time.Time { return order.CompletedAt.Add(73 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "x"})
		assert.True(t, stderrors.Is(err, errors.ErrRefundNotAllowed))
	})

	t.Run("可配置售后期限", func(t *testing.T) {
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusDone, "30")
		svc.SetWindow(24 * time.Hour)
		svc.now = func() time.Time { return order.CompletedAt.Add(25 * time.Hour) }
		defer func() {
			svc.now = time.Now
			svc.SetWindow(DefaultRefundWindow)
		}()

		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "x"})
		assert.True(t, stderrors.Is(err, errors.ErrRefundNotAllowed))
	})
}

func TestRefundService_CancelRefund(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc, _ := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 0)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusProcessing, "30")

	applyRefund(t, svc, order)
	require.NoError(t, svc.CancelRefund(ctx, account.ID, order.OrderNo))

	_, err := svc.GetRefund(ctx, order.OrderNo)
	assert.True(t, stderrors.Is(err, errors.ErrRefundNotFound))

	err = svc.CancelRefund(ctx, account.ID, order.OrderNo)
	assert.True(t, stderrors.Is(err, errors.ErrRefundNotFound))

	t.Run("撤销后可重新申请", func(t *testing.T) {
		refund := applyRefund(t, svc, order)
		assert.Equal(t, models.RefundStatusApplied, refund.Status)
	})

	t.Run("已处理不可撤销", func(t *testing.T) {
		_, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionReject})
		require.NoError(t, err)
		err = svc.CancelRefund(ctx, account.ID, order.OrderNo)
		assert.True(t, stderrors.Is(err, errors.ErrRefundStatusError))
	})
}

func TestRefundService_RejectAndReapply(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc, sender := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 0)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusProcessing, "30")
	applyRefund(t, svc, order)

	refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{
		OrderNo:  order.OrderNo,
		Decision: DecisionReject,
		Remark:   "已出餐",
		Operator: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusRejected, refund.Status)
	assert.Equal(t, "已出餐", *refund.Remark)
	assert.NotNil(t, refund.HandleAt)

	msg := sender.GetLastMessage()
	require.NotNil(t, msg)
	assert.Equal(t, sms.TemplateRefundRejected, msg.TemplateKey)
	assert.Equal(t, *account.Phone, msg.Phone)

	reapplied := applyRefund(t, svc, order)
	assert.Equal(t, models.RefundStatusApplied, reapplied.Status)
	assert.Nil(t, reapplied.Remark)
	assert.Nil(t, reapplied.HandleAt)
	require.Len(t, reapplied.Logs, 3)
	assert.Equal(t, RefundActionReapply, reapplied.Logs[2].Action)
}

func TestRefundService_ApproveBalance(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc, sender := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 100)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusProcessing, "30")
	applyRefund(t, svc, order)

	refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove, Operator: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusSuccess, refund.Status)
	assert.NotNil(t, refund.RefundedAt)
	assert.True(t, refund.PointsReverted)
	assert.Equal(t, int64(30), refund.PointsDelta)

	updated := helpers.ReloadAccount(t, db, account.ID)
	assert.Equal(t, "30.00", updated.Balance.StringFixed(2))
	assert.Equal(t, int64(70), updated.Points)
	assert.Equal(t, sms.TemplateRefundSuccess, sender.GetLastMessage().TemplateKey)

	t.Run("重复同意只退款一次", func(t *testing.T) {
		_, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		assert.True(t, stderrors.Is(err, errors.ErrRefundStatusError))

		again := helpers.ReloadAccount(t, db, account.ID)
		assert.Equal(t, "30.00", again.Balance.StringFixed(2))
		assert.Equal(t, int64(70), again.Points)

		txns, total, err := repository.NewAccountRepository(db).ListWalletTransactions(ctx, account.ID, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, models.WalletTxRefund, txns[0].Type)
	})

	t.Run("已退款订单不可再次申请", func(t *testing.T) {
		_, err := svc.ApplyRefund(ctx, &ApplyRefundRequest{AccountID: account.ID, OrderNo: order.OrderNo, Reason: "x"})
		assert.True(t, stderrors.Is(err, errors.ErrRefundNotAllowed))
	})
}

func TestRefundService_ApprovePointsClamp(t *testing.T) {
	db := helpers.NewTestDB(t)
	svc, _ := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 10)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodFree, models.OrderStatusProcessing, "0")
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("points_earn", 25).Error)
	applyRefund(t, svc, order)

	refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusSuccess, refund.Status)
	assert.Equal(t, int64(10), refund.PointsDelta)
	assert.Zero(t, helpers.ReloadAccount(t, db, account.ID).Points)
}

func TestRefundService_ApproveWechat(t *testing.T) {
	db := helpers.NewTestDB(t)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 100)

	t.Run("未配置子商户号", func(t *testing.T) {
		svc, _ := setupRefundService(db, &helpers.MockGateway{}, "")
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "30")
		applyRefund(t, svc, order)

		_, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		assert.True(t, stderrors.Is(err, errors.ErrRefundConfigMissing))

		refund, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusApplied, refund.Status)
	})

	t.Run("退款中等待回调并幂等结算", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, sender := setupRefundService(db, gw, testSubMchID)
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "30")
		applyRefund(t, svc, order)

		gw.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req *wechatpay.RefundRequest) bool {
			return req.OutTradeNo == order.OrderNo && req.SubMchID == testSubMchID && req.Refund.StringFixed(2) == "30.00"
		})).Return(&wechatpay.RefundResponse{Status: wechatpay.RefundStatusProcessing}, nil).Once()

		refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusProcessing, refund.Status)
		require.NotNil(t, refund.ExternalRefundRef)
		ref := *refund.ExternalRefundRef
		assert.Equal(t, int64(100), helpers.ReloadAccount(t, db, account.ID).Points)

		notice := &wechatpay.RefundNotification{ExternalRef: ref, Status: wechatpay.RefundStatusSuccess}
		require.NoError(t, svc.SettleRefund(ctx, notice))
		require.NoError(t, svc.SettleRefund(ctx, notice))

		settled, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusSuccess, settled.Status)
		assert.Equal(t, int64(30), settled.PointsDelta)
		assert.Equal(t, int64(70), helpers.ReloadAccount(t, db, account.ID).Points)
		assert.Len(t, sender.Messages(), 1)
		gw.AssertExpectations(t)
	})

	t.Run("网关同步成功直接结算", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, _ := setupRefundService(db, gw, testSubMchID)
		fresh := helpers.CreateAccount(t, db, "0", 50)
		order := helpers.CreatePaidOrder(t, db, fresh.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "20")
		applyRefund(t, svc, order)

		gw.On("CreateRefund", mock.Anything, mock.Anything).
			Return(&wechatpay.RefundResponse{Status: wechatpay.RefundStatusSuccess}, nil).Once()

		refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusSuccess, refund.Status)
		assert.Equal(t, int64(30), helpers.ReloadAccount(t, db, fresh.ID).Points)
	})

	t.Run("发起退款失败标记失败且可重新申请", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, sender := setupRefundService(db, gw, testSubMchID)
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "30")
		applyRefund(t, svc, order)

		gw.On("CreateRefund", mock.Anything, mock.Anything).Return(nil, stderrors.New("connection reset")).Once()

		_, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		assert.True(t, stderrors.Is(err, errors.ErrRefundFailed))

		refund, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusFailed, refund.Status)
		assert.False(t, refund.PointsReverted)
		assert.Equal(t, sms.TemplateRefundFailed, sender.GetLastMessage().TemplateKey)

		reapplied := applyRefund(t, svc, order)
		assert.Equal(t, models.RefundStatusApplied, reapplied.Status)
		require.NotNil(t, reapplied.ExternalRefundRef)
		assert.Equal(t, *refund.ExternalRefundRef, *reapplied.ExternalRefundRef)
	})
}

func TestRefundService_SettleRefund(t *testing.T) {
	db := helpers.NewTestDB(t)
	ctx := context.Background()
	account := helpers.CreateAccount(t, db, "0", 100)

	processing := func(t *testing.T, svc *RefundService, gw *helpers.MockGateway) (*models.Order, string) {
		t.Helper()
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "10")
		applyRefund(t, svc, order)
		gw.On("CreateRefund", mock.Anything, mock.Anything).
			Return(&wechatpay.RefundResponse{Status: wechatpay.RefundStatusProcessing}, nil).Once()
		refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		require.NoError(t, err)
		return order, *refund.ExternalRefundRef
	}

	t.Run("未知退款单号忽略", func(t *testing.T) {
		svc, _ := setupRefundService(db, &helpers.MockGateway{}, testSubMchID)
		err := svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: "RF_UNKNOWN", Status: wechatpay.RefundStatusSuccess})
		assert.NoError(t, err)
	})

	t.Run("失败后迟到的成功通知仍然结算", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, _ := setupRefundService(db, gw, testSubMchID)
		order, ref := processing(t, svc, gw)

		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: ref, Status: wechatpay.RefundStatusAbnormal}))
		refund, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusFailed, refund.Status)

		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: ref, Status: wechatpay.RefundStatusClosed}))
		refund, err = svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusFailed, refund.Status)
		assert.Len(t, refund.Logs, 3)

		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: ref, Status: wechatpay.RefundStatusSuccess}))
		refund, err = svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusSuccess, refund.Status)
	})

	t.Run("重新申请后旧单号的成功通知仍然结算", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, _ := setupRefundService(db, gw, testSubMchID)
		fresh := helpers.CreateAccount(t, db, "0", 50)
		order := helpers.CreatePaidOrder(t, db, fresh.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "20")
		applyRefund(t, svc, order)

		gw.On("CreateRefund", mock.Anything, mock.Anything).Return(nil, stderrors.New("timeout")).Once()
		_, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		require.True(t, stderrors.Is(err, errors.ErrRefundFailed))

		failed, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		require.NotNil(t, failed.ExternalRefundRef)
		oldRef := *failed.ExternalRefundRef

		applyRefund(t, svc, order)
		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: oldRef, Status: wechatpay.RefundStatusSuccess}))
		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: oldRef, Status: wechatpay.RefundStatusSuccess}))

		refund, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusSuccess, refund.Status)
		assert.True(t, refund.PointsReverted)
		assert.Equal(t, int64(30), helpers.ReloadAccount(t, db, fresh.ID).Points)

		_, err = svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		assert.True(t, stderrors.Is(err, errors.ErrRefundStatusError))
		gw.AssertNumberOfCalls(t, "CreateRefund", 1)
	})

	t.Run("重新同意沿用原退款单号", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, _ := setupRefundService(db, gw, testSubMchID)
		order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodWechat, models.OrderStatusProcessing, "10")
		applyRefund(t, svc, order)

		var refs []string
		gw.On("CreateRefund", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			refs = append(refs, args.Get(1).(*wechatpay.RefundRequest).OutRefundNo)
		}).Return(nil, stderrors.New("timeout")).Once()
		_, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		require.True(t, stderrors.Is(err, errors.ErrRefundFailed))

		applyRefund(t, svc, order)
		gw.On("CreateRefund", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			refs = append(refs, args.Get(1).(*wechatpay.RefundRequest).OutRefundNo)
		}).Return(&wechatpay.RefundResponse{Status: wechatpay.RefundStatusProcessing}, nil).Once()
		refund, err := svc.HandleRefund(ctx, &HandleRefundRequest{OrderNo: order.OrderNo, Decision: DecisionApprove})
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusProcessing, refund.Status)

		require.Len(t, refs, 2)
		assert.Equal(t, refs[0], refs[1])
		assert.Equal(t, refs[0], *refund.ExternalRefundRef)
	})

	t.Run("成功后失败通知不回退", func(t *testing.T) {
		gw := &helpers.MockGateway{}
		svc, _ := setupRefundService(db, gw, testSubMchID)
		order, ref := processing(t, svc, gw)

		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: ref, Status: wechatpay.RefundStatusSuccess}))
		require.NoError(t, svc.SettleRefund(ctx, &wechatpay.RefundNotification{ExternalRef: ref, Status: wechatpay.RefundStatusAbnormal}))

		refund, err := svc.GetRefund(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, models.RefundStatusSuccess, refund.Status)
	})
}
