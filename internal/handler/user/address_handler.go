package user

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	userService "github.com/dumeirei/storefront-settlement/internal/service/user"
)

// AddressHandler 地址处理器
type AddressHandler struct {
	addressService *userService.AddressService
}

// NewAddressHandler 创建地址处理器
func NewAddressHandler(addressService *userService.AddressService) *AddressHandler {
	return &AddressHandler{addressService: addressService}
}

// Create 创建地址
// @Summary 添加收货地址
// @Tags 账户-地址
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body userService.CreateAddressRequest true "地址信息"
// @Success 200 {object} response.Response{data=models.Address}
// @Router /api/v1/account/addresses [post]
func (h *AddressHandler) Create(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	var req userService.CreateAddressRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	address, err := h.addressService.Create(c.Request.Context(), accountID, &req)
	handler.MustSucceed(c, err, address)
}

// List 获取地址列表
// @Summary 获取收货地址列表
// @Tags 账户-地址
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]models.Address}
// @Router /api/v1/account/addresses [get]
func (h *AddressHandler) List(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	list, err := h.addressService.List(c.Request.Context(), accountID)
	handler.MustSucceed(c, err, list)
}

// RegisterRoutes 注册路由
func (h *AddressHandler) RegisterRoutes(r *gin.RouterGroup) {
	addresses := r.Group("/account/addresses")
	{
		addresses.POST("", h.Create)
		addresses.GET("", h.List)
	}
}
