// Package admin 商家后台 HTTP Handler
package admin

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	"github.com/dumeirei/storefront-settlement/internal/models"
	orderService "github.com/dumeirei/storefront-settlement/internal/service/order"
)

// OrderHandler 订单管理处理器
type OrderHandler struct {
	orderService  *orderService.OrderService
	refundService *orderService.RefundService
}

// NewOrderHandler 创建订单管理处理器
func NewOrderHandler(orderSvc *orderService.OrderService, refundSvc *orderService.RefundService) *OrderHandler {
	return &OrderHandler{
		orderService:  orderSvc,
		refundService: refundSvc,
	}
}

// AdvanceRequest 推进履约状态请求
type AdvanceRequest struct {
	Status string `json:"status" binding:"required"`
}

// MerchantApplyRequest 商家发起售后请求
type MerchantApplyRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

func operator(adminID int64) string {
	return fmt.Sprintf("admin:%d", adminID)
}

// Advance 推进订单履约状态
// @Summary 推进订单履约状态
// @Tags 商家-订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Param request body AdvanceRequest true "目标状态"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/admin/orders/{order_no}/advance [post]
func (h *OrderHandler) Advance(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req AdvanceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	order, err := h.orderService.AdvanceOrder(c.Request.Context(), c.Param("order_no"), req.Status)
	handler.MustSucceed(c, err, order)
}

// ApplyRefund 商家代顾客发起售后
// @Summary 商家发起售后
// @Tags 商家-售后
// @Accept json
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Param request body MerchantApplyRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.OrderRefund}
// @Router /api/admin/orders/{order_no}/refund [post]
func (h *OrderHandler) ApplyRefund(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	var req MerchantApplyRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	refund, err := h.refundService.ApplyRefund(c.Request.Context(), &orderService.ApplyRefundRequest{
		OrderNo:  c.Param("order_no"),
		Reason:   req.Reason,
		Source:   models.RefundSourceMerchant,
		Operator: operator(adminID),
	})
	handler.MustSucceed(c, err, refund)
}

// HandleRefund 商家处理售后
// @Summary 同意或驳回售后
// @Tags 商家-售后
// @Accept json
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Param request body orderService.HandleRefundRequest true "处理结果"
// @Success 200 {object} response.Response{data=models.OrderRefund}
// @Router /api/admin/orders/{order_no}/refund/handle [post]
func (h *OrderHandler) HandleRefund(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	var req orderService.HandleRefundRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	req.OrderNo = c.Param("order_no")
	req.Operator = operator(adminID)

	refund, err := h.refundService.HandleRefund(c.Request.Context(), &req)
	handler.MustSucceed(c, err, refund)
}

// GetRefund 查看订单售后
// @Summary 查看订单售后
// @Tags 商家-售后
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Success 200 {object} response.Response{data=models.OrderRefund}
// @Router /api/admin/orders/{order_no}/refund [get]
func (h *OrderHandler) GetRefund(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	refund, err := h.refundService.GetRefund(c.Request.Context(), c.Param("order_no"))
	handler.MustSucceed(c, err, refund)
}

// RegisterRoutes 注册路由
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("/:order_no/advance", h.Advance)
		orders.GET("/:order_no/refund", h.GetRefund)
		orders.POST("/:order_no/refund", h.ApplyRefund)
		orders.POST("/:order_no/refund/handle", h.HandleRefund)
	}
}
