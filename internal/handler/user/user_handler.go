// Package user 提供账户相关的 HTTP Handler
package user

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/handler"
	"github.com/dumeirei/storefront-settlement/internal/common/jwt"
	"github.com/dumeirei/storefront-settlement/internal/common/response"
	userService "github.com/dumeirei/storefront-settlement/internal/service/user"
)

// Handler 账户处理器
type Handler struct {
	accountService *userService.AccountService
	jwtManager     *jwt.Manager
}

// NewHandler 创建账户处理器
func NewHandler(accountSvc *userService.AccountService, jwtManager *jwt.Manager) *Handler {
	return &Handler{
		accountService: accountSvc,
		jwtManager:     jwtManager,
	}
}

// DevLoginRequest 开发环境登录请求
type DevLoginRequest struct {
	OpenID   string `json:"open_id" binding:"required,max=64"`
	Nickname string `json:"nickname" binding:"max=50"`
}

// DevLoginResponse 开发环境登录响应
type DevLoginResponse struct {
	AccountID int64  `json:"account_id"`
	Token     string `json:"token"`
}

// DevLogin 以 openid 登录，首次登录创建账户，仅在支付 mock 模式下注册
// @Summary 开发环境登录
// @Tags 账户
// @Accept json
// @Produce json
// @Param request body DevLoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=DevLoginResponse}
// @Router /api/v1/auth/dev-login [post]
func (h *Handler) DevLogin(c *gin.Context) {
	var req DevLoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	account, err := h.accountService.GetOrCreate(c.Request.Context(), req.OpenID, req.Nickname)
	if handler.HandleError(c, err) {
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(account.ID, jwt.UserTypeCustomer)
	handler.MustSucceed(c, err, &DevLoginResponse{AccountID: account.ID, Token: token})
}

// GetProfile 获取账户概览
// @Summary 获取账户概览
// @Tags 账户
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=userService.Profile}
// @Router /api/v1/account/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	profile, err := h.accountService.GetProfile(c.Request.Context(), accountID)
	handler.MustSucceed(c, err, profile)
}

// ListWalletTransactions 获取余额流水
// @Summary 获取余额流水
// @Tags 账户
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.ListData}
// @Router /api/v1/account/wallet-transactions [get]
func (h *Handler) ListWalletTransactions(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	result, err := h.accountService.ListWalletTransactions(c.Request.Context(), accountID, &p)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessList(c, result.List, result.Total)
}

// ListPointsLogs 获取积分流水
// @Summary 获取积分流水
// @Tags 账户
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]models.PointsLog}
// @Router /api/v1/account/points-logs [get]
func (h *Handler) ListPointsLogs(c *gin.Context) {
	accountID, ok := handler.RequireAccountID(c)
	if !ok {
		return
	}

	list, err := h.accountService.ListPointsLogs(c.Request.Context(), accountID)
	handler.MustSucceed(c, err, list)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	account := r.Group("/account")
	{
		account.GET("/profile", h.GetProfile)
		account.GET("/wallet-transactions", h.ListWalletTransactions)
		account.GET("/points-logs", h.ListPointsLogs)
	}
}

// RegisterDevRoutes 注册开发环境路由（无需认证）
func (h *Handler) RegisterDevRoutes(r *gin.RouterGroup) {
	r.POST("/auth/dev-login", h.DevLogin)
}
