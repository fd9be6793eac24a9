// Package handler 提供 API Handler 的通用辅助函数
// 用于减少 Handler 层的代码重复，统一错误处理、认证检查、参数解析等操作
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/response"
	"github.com/dumeirei/storefront-settlement/internal/common/utils"
	"github.com/dumeirei/storefront-settlement/internal/middleware"
)

// HandleError 处理错误并发送适当的响应
// 如果 err 为 nil，返回 false（表示无错误需要处理）
// 如果 err 不为 nil，发送错误响应并返回 true（调用方应该 return）
//
// 使用示例:
//
//	result, err := service.DoSomething()
//	if HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAppError(err) {
		appErr := errors.GetAppError(err)
		if appErr.Reason == "server_error" || appErr.Reason == "transaction_failed" {
			logger.Error("request failed",
				logger.RequestID(middleware.GetRequestID(c)),
				logger.Err(err),
			)
		}
		response.Error(c, appErr.Code, appErr.Reason, appErr.Message)
		return true
	}
	logger.Error("unexpected error",
		logger.RequestID(middleware.GetRequestID(c)),
		logger.Err(err),
	)
	response.InternalError(c, "")
	return true
}

// MustSucceed 便捷封装：如果有错误则返回错误响应，否则返回成功响应
//
// 使用示例:
//
//	result, err := service.GetData()
//	MustSucceed(c, err, result)
//	return  // 注意：调用 MustSucceed 后必须 return
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedList 便捷封装：列表响应版本
func MustSucceedList(c *gin.Context, err error, list interface{}, total int64) {
	if HandleError(c, err) {
		return
	}
	response.SuccessList(c, list, total)
}

// RequireAccountID 获取当前顾客账户ID，未登录时返回401响应
//
//	accountID, ok := handler.RequireAccountID(c)
//	if !ok {
//	    return
//	}
func RequireAccountID(c *gin.Context) (int64, bool) {
	accountID := middleware.GetAccountID(c)
	if accountID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return accountID, true
}

// RequireAdminID 获取当前商家管理员ID，未登录时返回401响应
func RequireAdminID(c *gin.Context) (int64, bool) {
	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return adminID, true
}

// ParseParamID 解析指定路径参数为 int64
// paramName: 路径参数名称（如 "id", "template_id"）
// resourceName: 资源名称，用于错误消息（如 "礼品", "优惠券"）
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// BindJSON 绑定请求体，失败时返回400响应
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}

// BindPagination 从查询参数绑定并规范化分页参数
// 默认 page=1, pageSize=10, 最大 pageSize=100
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	p.Normalize()
	return p
}

// RequireAccountAndParam 组合：检查顾客登录 + 读取字符串路径参数
func RequireAccountAndParam(c *gin.Context, paramName string) (accountID int64, value string, ok bool) {
	accountID, ok = RequireAccountID(c)
	if !ok {
		return 0, "", false
	}
	value = c.Param(paramName)
	if value == "" {
		c.JSON(http.StatusBadRequest, response.Response{Code: 400, Reason: "invalid_params", Message: "缺少参数 " + paramName})
		return 0, "", false
	}
	return accountID, value, true
}
