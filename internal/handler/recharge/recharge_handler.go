// Package recharge 提供余额充值的 HTTP Handler
package recharge

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	rechargeService "github.com/dumeirei/storefront-settlement/internal/service/recharge"
)

// Handler 充值处理器
type Handler struct {
	rechargeService *rechargeService.RechargeService
}

// NewHandler 创建充值处理器
func NewHandler(rechargeSvc *rechargeService.RechargeService) *Handler {
	return &Handler{rechargeService: rechargeSvc}
}

// CreateRecharge 创建充值订单
// @Summary 创建充值订单
// @Tags 充值
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body rechargeService.CreateRechargeRequest true "请求参数"
// @Success 200 {object} response.Response{data=rechargeService.CreateRechargeResponse}
// @Router /api/v1/recharges [post]
func (h *Handler) CreateRecharge(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	var req rechargeService.CreateRechargeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.rechargeService.CreateRechargeOrder(c.Request.Context(), accountID, req.Amount)
	handler.MustSucceed(c, err, result)
}

// GetRecharge 获取充值订单
// @Summary 获取充值订单
// @Tags 充值
// @Produce json
// @Security Bearer
// @Param recharge_no path string true "充值单号"
// @Success 200 {object} response.Response{data=models.Recharge}
// @Router /api/v1/recharges/{recharge_no} [get]
func (h *Handler) GetRecharge(c *gin.Context) {
	accountID, rechargeNo, ok := handler.RequireAccountAndParam(c, "recharge_no")
	if !ok {
		return
	}

	recharge, err := h.rechargeService.GetRecharge(c.Request.Context(), accountID, rechargeNo)
	handler.MustSucceed(c, err, recharge)
}

// ConfirmRecharge 客户端支付完成后主动确认
// @Summary 确认充值结果
// @Tags 充值
// @Produce json
// @Security Bearer
// @Param recharge_no path string true "充值单号"
// @Success 200 {object} response.Response{data=models.Recharge}
// @Router /api/v1/recharges/{recharge_no}/confirm [post]
func (h *Handler) ConfirmRecharge(c *gin.Context) {
	accountID, rechargeNo, ok := handler.RequireAccountAndParam(c, "recharge_no")
	if !ok {
		return
	}

	recharge, err := h.rechargeService.ConfirmRechargePaid(c.Request.Context(), accountID, rechargeNo)
	handler.MustSucceed(c, err, recharge)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	recharges := r.Group("/recharges")
	{
		recharges.POST("", h.CreateRecharge)
		recharges.GET("/:recharge_no", h.GetRecharge)
		recharges.POST("/:recharge_no/confirm", h.ConfirmRecharge)
	}
}
