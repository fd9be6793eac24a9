// Package marketing 提供优惠券与积分兑换的 HTTP Handler
package marketing

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	marketingService "github.com/dumeirei/storefront-settlement/internal/service/marketing"
)

// CouponHandler 优惠券处理器
type CouponHandler struct {
	couponService *marketingService.CouponService
}

// NewCouponHandler 创建优惠券处理器
func NewCouponHandler(couponSvc *marketingService.CouponService) *CouponHandler {
	return &CouponHandler{couponService: couponSvc}
}

// ListClaimable 获取可领取的优惠券
// @Summary 获取可领取的优惠券
// @Tags 营销-优惠券
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]marketing.CouponItem}
// @Router /api/v1/coupons [get]
func (h *CouponHandler) ListClaimable(c *gin.Context) {
	if _, ok := handler.RequireAccountID(c); !ok {
		return
	}

	list, err := h.couponService.ListClaimable(c.Request.Context())
	handler.MustSucceed(c, err, list)
}

// ListMine 获取我的优惠券
// @Summary 获取我的未使用优惠券
// @Tags 营销-优惠券
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]models.AccountCoupon}
// @Router /api/v1/coupons/mine [get]
func (h *CouponHandler) ListMine(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	list, err := h.couponService.ListAccountCoupons(c.Request.Context(), accountID)
	handler.MustSucceed(c, err, list)
}

// Claim 领取优惠券
// @Summary 领取优惠券
// @Tags 营销-优惠券
// @Produce json
// @Security Bearer
// @Param template_id path int true "优惠券模板ID"
// @Success 200 {object} response.Response{data=models.AccountCoupon}
// @Router /api/v1/coupons/{template_id}/claim [post]
func (h *CouponHandler) Claim(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}
	templateID, ok := handler.ParseParamID(c, "template_id", "优惠券")
	if !ok {
		return
	}

	coupon, err := h.couponService.ClaimCoupon(c.Request.Context(), accountID, templateID)
	handler.MustSucceed(c, err, coupon)
}

// RegisterRoutes 注册路由
func (h *CouponHandler) RegisterRoutes(r *gin.RouterGroup) {
	coupons := r.Group("/coupons")
	{
		coupons.GET("", h.ListClaimable)
		coupons.GET("/mine", h.ListMine)
		coupons.POST("/:template_id/claim", h.Claim)
	}
}
