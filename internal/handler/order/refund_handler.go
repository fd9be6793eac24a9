package order

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	"github.com/dumeirei/storefront-settlement/internal/models"
	orderService "github.com/dumeirei/storefront-settlement/internal/service/order"
)

// RefundHandler 售后处理器
type RefundHandler struct {
	refundService *orderService.RefundService
}

// NewRefundHandler 创建售后处理器
func NewRefundHandler(refundSvc *orderService.RefundService) *RefundHandler {
	return &RefundHandler{refundService: refundSvc}
}

// ApplyRefund 申请售后
// @Summary 申请售后
// @Tags 售后
// @Accept json
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Param request body orderService.ApplyRefundRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.OrderRefund}
// @Router /api/v1/orders/{order_no}/refund [post]
func (h *RefundHandler) ApplyRefund(c *gin.Context) {
	accountID, orderNo, ok := handler.RequireAccountAndParam(c, "order_no")
	if !ok {
		return
	}

	var req orderService.ApplyRefundRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	req.AccountID = accountID
	req.OrderNo = orderNo
	req.Source = models.RefundSourceCustomer
	req.Operator = fmt.Sprintf("account:%d", accountID)

	refund, err := h.refundService.ApplyRefund(c.Request.Context(), &req)
	handler.MustSucceed(c, err, refund)
}

// CancelRefund 撤销售后申请
// @Summary 撤销售后申请
// @Tags 售后
// @Produce json
// @Security Bearer
// @Param order_no path string true "订单号"
// @Success 200 {object} response.Response
// @Router /api/v1/orders/{order_no}/refund [delete]
func (h *RefundHandler) CancelRefund(c *gin.Context) {
	accountID, orderNo, ok := handler.RequireAccountAndParam(c, "order_no")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.refundService.CancelRefund(c.Request.Context(), accountID, orderNo), nil)
}

// RegisterRoutes 注册路由
func (h *RefundHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("/:order_no/refund", h.ApplyRefund)
		orders.DELETE("/:order_no/refund", h.CancelRefund)
	}
}
