// Package payment 提供支付回调相关的 HTTP Handler
package payment

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/notifylog"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// NotifyParser 解密并解析网关回调
type NotifyParser interface {
	ParsePaymentNotify(body []byte) (*wechatpay.PaymentNotification, error)
	ParseRefundNotify(body []byte) (*wechatpay.RefundNotification, error)
}

// Dispatcher 回调分发
type Dispatcher interface {
	DispatchPayment(ctx context.Context, n *wechatpay.PaymentNotification) error
	DispatchRefund(ctx context.Context, n *wechatpay.RefundNotification) error
	Failures() ([]*notifylog.Entry, error)
}

// Handler 支付回调处理器
type Handler struct {
	parser     NotifyParser
	dispatcher Dispatcher
}

// NewHandler 创建支付回调处理器
func NewHandler(parser NotifyParser, dispatcher Dispatcher) *Handler {
	return &Handler{
		parser:     parser,
		dispatcher: dispatcher,
	}
}

func ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": "SUCCESS", "message": "成功"})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": "FAIL", "message": message})
}

// PaymentNotify 微信支付结果回调
// 验签解密失败时返回 FAIL 让网关重试；处理失败已写入失败日志，由定时任务重放，仍应答成功
// @Summary 微信支付结果回调
// @Tags 支付回调
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/payment/notify [post]
func (h *Handler) PaymentNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "读取请求体失败")
		return
	}

	notice, err := h.parser.ParsePaymentNotify(body)
	if err != nil {
		logger.Warn("支付回调解析失败", logger.Err(err))
		fail(c, http.StatusBadRequest, "解析通知失败")
		return
	}

	if err := h.dispatcher.DispatchPayment(c.Request.Context(), notice); err != nil {
		logger.Warn("支付回调处理失败，已记录待重放",
			logger.ExternalRef(notice.ExternalRef),
			logger.Err(err),
		)
	}
	ack(c)
}

// RefundNotify 微信退款结果回调
// @Summary 微信退款结果回调
// @Tags 支付回调
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/payment/refund-notify [post]
func (h *Handler) RefundNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "读取请求体失败")
		return
	}

	notice, err := h.parser.ParseRefundNotify(body)
	if err != nil {
		logger.Warn("退款回调解析失败", logger.Err(err))
		fail(c, http.StatusBadRequest, "解析通知失败")
		return
	}

	if err := h.dispatcher.DispatchRefund(c.Request.Context(), notice); err != nil {
		logger.Warn("退款回调处理失败，已记录待重放",
			logger.ExternalRef(notice.ExternalRef),
			logger.Err(err),
		)
	}
	ack(c)
}

// NotifyFailures 查看待重放的回调
// @Summary 查看处理失败的支付回调
// @Tags 商家-支付回调
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=response.ListData}
// @Router /api/admin/notify-failures [get]
func (h *Handler) NotifyFailures(c *gin.Context) {
	entries, err := h.dispatcher.Failures()
	handler.MustSucceedList(c, err, entries, int64(len(entries)))
}

// RegisterCallbackRoutes 注册回调路由（无需认证）
func (h *Handler) RegisterCallbackRoutes(r *gin.RouterGroup) {
	callback := r.Group("/payment")
	{
		callback.POST("/notify", h.PaymentNotify)
		callback.POST("/refund-notify", h.RefundNotify)
	}
}

// RegisterAdminRoutes 注册商家后台路由
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/notify-failures", h.NotifyFailures)
}
