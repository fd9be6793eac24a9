// Package order 提供订单与售后的 HTTP Handler
package order

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	orderService "github.com/dumeirei/storefront-settlement/internal/service/order"
)

// Handler 订单处理器
type Handler struct {
	orderService *orderService.OrderService
}

// NewHandler 创建订单处理器
func NewHandler(orderSvc *orderService.OrderService) *Handler {
	return &Handler{orderService: orderSvc}
}

// CreateOrder 创建订单
// @Summary 创建订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body orderService.CreateOrderRequest true "请求参数"
// @Success 200 {object} response.Response{data=orderService.CreateOrderResponse}
// @Router /api/v1/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	var req orderService.CreateOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), accountID, &req)
	handler.MustSucceed(c, err, result)
}

// GetOrder 获取订单详情
// @Summary 获取订单详情
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/v1/orders/{order_no} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	accountID, orderNo, ok := handler.RequireAccountAndParam(c, "order_no")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), accountID, orderNo)
	handler.MustSucceed(c, err, order)
}

// ListOrders 获取订单列表
// @Summary 获取订单列表
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.ListData}
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	orders, total, err := h.orderService.ListOrders(c.Request.Context(), accountID, p.Page, p.PageSize)
	handler.MustSucceedList(c, err, orders, total)
}

// CancelOrder 取消待支付订单
// @Summary 取消待支付订单
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Success 200 {object} response.Response
// @Router /api/v1/orders/{order_no}/cancel [post]
func (h *Handler) CancelOrder(c *gin.Context) {
	accountID, orderNo, ok := handler.RequireAccountAndParam(c, "order_no")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.orderService.CancelUnpaidOrder(c.Request.Context(), accountID, orderNo), nil)
}

// ConfirmPaid 客户端支付完成后主动确认
// @Summary 确认订单支付结果
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/v1/orders/{order_no}/confirm-paid [post]
func (h *Handler) ConfirmPaid(c *gin.Context) {
	accountID, orderNo, ok := handler.RequireAccountAndParam(c, "order_no")
	if !ok {
		return
	}

	order, err := h.orderService.ConfirmOrderPaid(c.Request.Context(), accountID, orderNo)
	handler.MustSucceed(c, err, order)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:order_no", h.GetOrder)
		orders.POST("/:order_no/cancel", h.CancelOrder)
		orders.POST("/:order_no/confirm-paid", h.ConfirmPaid)
	}
}
