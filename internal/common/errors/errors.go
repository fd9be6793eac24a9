// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用错误
// Reason 是对调用方稳定的字符串错误码，Code 是数字错误码
type AppError struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d %s] %s: %v", e.Code, e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d %s] %s", e.Code, e.Reason, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，WithMessage/WithError 派生的错误与原错误相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, reason, message string) *AppError {
	return &AppError{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Reason:  e.Reason,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Reason:  e.Reason,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "server_error", "未知错误")
	ErrInvalidParams   = New(1001, "invalid_params", "参数错误")
	ErrNotFound        = New(1002, "not_found", "资源不存在")
	ErrDatabaseError   = New(1004, "server_error", "数据库错误")
	ErrCacheError      = New(1005, "server_error", "缓存错误")
	ErrInternalError   = New(1006, "server_error", "内部错误")
	ErrRateLimitExceed = New(1008, "rate_limited", "请求过于频繁")
	ErrTransaction     = New(1011, "transaction_failed", "事务提交失败，请重试")
	ErrSystemBusy      = New(1012, "system_busy", "系统繁忙，请稍后再试")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "unauthorized", "未登录")
	ErrTokenExpired     = New(2001, "token_expired", "登录已过期")
	ErrTokenInvalid     = New(2002, "token_invalid", "无效的令牌")
	ErrPermissionDenied = New(2004, "permission_denied", "权限不足")
)

// 账户错误码 (3000-3999)
var (
	ErrAccountNotFound     = New(3000, "account_not_found", "账户不存在")
	ErrBalanceInsufficient = New(3006, "insufficient_balance", "余额不足")
	ErrPointsInsufficient  = New(3008, "points_insufficient", "积分不足")
	ErrInvalidAmount       = New(3009, "invalid_amount", "金额无效")
	ErrAddressRequired     = New(3010, "address_required", "请选择收货地址")
	ErrAddressNotFound     = New(3011, "address_not_found", "收货地址不存在")
)

// 订单错误码 (5000-5999)
var (
	ErrOrderNotFound      = New(5000, "order_not_found", "订单不存在")
	ErrOrderStatusError   = New(5001, "order_status_error", "订单状态异常")
	ErrCartEmpty          = New(5006, "cart_empty", "购物车为空")
	ErrProductUnavailable = New(5008, "product_unavailable", "商品不存在或已下架")
	ErrInvalidMode        = New(5010, "invalid_mode", "无效的配送方式或支付方式")
)

// 支付与售后错误码 (6000-6999)
var (
	ErrPaymentFailed       = New(6001, "payment_failed", "发起支付失败")
	ErrRefundNotFound      = New(6003, "refund_not_found", "售后记录不存在")
	ErrRefundFailed        = New(6004, "refund_failed", "退款申请失败")
	ErrRefundStatusError   = New(6008, "refund_status_error", "当前状态无法处理售后")
	ErrRefundNotAllowed    = New(6009, "refund_not_allowed", "订单不满足售后条件")
	ErrRefundConfigMissing = New(6010, "refund_config_missing", "未配置退款子商户号")
	ErrRechargeNotFound    = New(6011, "recharge_not_found", "充值记录不存在")
)

// 营销错误码 (9000-9999)
var (
	ErrCouponNotFound      = New(9000, "coupon_not_found", "优惠券不存在")
	ErrCouponNotApplicable = New(9003, "coupon_not_applicable", "未达到优惠券使用门槛")
	ErrCouponUnavailable   = New(9004, "coupon_unavailable", "优惠券不可领取")
	ErrCouponOutOfStock    = New(9005, "coupon_out_of_stock", "优惠券已领完")
	ErrCouponClaimed       = New(9006, "coupon_limit_exceeded", "已领取过该优惠券")
	ErrGiftNotFound        = New(9010, "gift_not_found", "礼品不存在")
	ErrGiftUnavailable     = New(9011, "gift_unavailable", "礼品不可兑换")
	ErrGiftSoldOut         = New(9012, "gift_sold_out", "礼品已兑完")
	ErrCodeNotFound        = New(9013, "code_not_found", "兑换码不存在或已核销")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
