// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/jwt"
	"github.com/dumeirei/storefront-settlement/internal/common/response"
)

// 上下文键
const (
	ContextKeyAccountID = "account_id"
	ContextKeyAdminID   = "admin_id"
	ContextKeyUserType  = "user_type"
)

// Auth 认证中间件，userType 为空时不校验用户类型
func Auth(jwtManager *jwt.Manager, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := jwtManager.ParseToken(token)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				response.Unauthorized(c, "登录已过期，请重新登录")
			} else {
				response.Unauthorized(c, "无效的令牌")
			}
			c.Abort()
			return
		}

		if userType != "" && claims.UserType != userType {
			response.Forbidden(c, "无权访问")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserType, claims.UserType)
		switch claims.UserType {
		case jwt.UserTypeMerchant:
			c.Set(ContextKeyAdminID, claims.SubjectID)
		default:
			c.Set(ContextKeyAccountID, claims.SubjectID)
		}

		c.Next()
	}
}

// CustomerAuth 顾客认证中间件
func CustomerAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(jwtManager, jwt.UserTypeCustomer)
}

// MerchantAuth 商家后台认证中间件
func MerchantAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(jwtManager, jwt.UserTypeMerchant)
}

// extractToken 从请求中提取令牌
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}
	return c.Query("token")
}

// GetAccountID 从上下文获取账户 ID
func GetAccountID(c *gin.Context) int64 {
	id, exists := c.Get(ContextKeyAccountID)
	if !exists {
		return 0
	}
	return id.(int64)
}

// GetAdminID 从上下文获取管理员 ID
func GetAdminID(c *gin.Context) int64 {
	id, exists := c.Get(ContextKeyAdminID)
	if !exists {
		return 0
	}
	return id.(int64)
}
