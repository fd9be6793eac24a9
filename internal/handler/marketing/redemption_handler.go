package marketing

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	redemptionService "github.com/dumeirei/storefront-settlement/internal/service/redemption"
)

// RedemptionHandler 积分兑换处理器
type RedemptionHandler struct {
	redemptionService *redemptionService.RedemptionService
}

// NewRedemptionHandler 创建积分兑换处理器
func NewRedemptionHandler(redemptionSvc *redemptionService.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptionService: redemptionSvc}
}

// ListGifts 获取可兑换礼品
// @Summary 获取可兑换礼品
// @Tags 营销-积分兑换
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]models.Gift}
// @Router /api/v1/gifts [get]
func (h *RedemptionHandler) ListGifts(c *gin.Context) {
	if _, ok := handler.RequireAccountID(c); !ok {
		return
	}

	list, err := h.redemptionService.ListGifts(c.Request.Context())
	handler.MustSucceed(c, err, list)
}

// Redeem 积分兑换礼品
// @Summary 积分兑换礼品
// @Tags 营销-积分兑换
// @Produce json
// @Security Bearer
// @Param id path int true "礼品ID"
// @Success 200 {object} response.Response{data=redemption.RedeemResult}
// @Router /api/v1/gifts/{id}/redeem [post]
func (h *RedemptionHandler) Redeem(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}
	giftID, ok := handler.ParseParamID(c, "id", "礼品")
	if !ok {
		return
	}

	result, err := h.redemptionService.RedeemGift(c.Request.Context(), accountID, giftID)
	handler.MustSucceed(c, err, result)
}

// ListCodes 获取我的兑换码
// @Summary 获取未核销的兑换码
// @Tags 营销-积分兑换
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]redemption.RedeemResult}
// @Router /api/v1/redemption-codes [get]
func (h *RedemptionHandler) ListCodes(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	list, err := h.redemptionService.ListRedemptionCodes(c.Request.Context(), accountID)
	handler.MustSucceed(c, err, list)
}

// Consume 商家核销兑换码
// @Summary 核销兑换码
// @Tags 商家-积分兑换
// @Produce json
// @Security Bearer
// @Param code path string true "6位兑换码"
// @Success 200 {object} response.Response{data=models.RedemptionRecord}
// @Router /api/admin/redemption-codes/{code}/consume [post]
func (h *RedemptionHandler) Consume(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	record, err := h.redemptionService.ConsumeRedemptionCode(c.Request.Context(), c.Param("code"))
	handler.MustSucceed(c, err, record)
}

// RegisterRoutes 注册路由，redeemLimit 作用于兑换接口
func (h *RedemptionHandler) RegisterRoutes(r *gin.RouterGroup, redeemLimit ...gin.HandlerFunc) {
	r.GET("/gifts", h.ListGifts)
	r.POST("/gifts/:id/redeem", append(redeemLimit, h.Redeem)...)
	r.GET("/redemption-codes", h.ListCodes)
}

// RegisterAdminRoutes 注册商家后台路由
func (h *RedemptionHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/redemption-codes/:code/consume", h.Consume)
}
