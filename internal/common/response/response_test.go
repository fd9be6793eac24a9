// Package response 统一响应格式单元测试
package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTest 创建测试用的 Gin 上下文
func setupTest() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

// parseResponse 解析响应为 Response 结构
func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	var resp Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func TestSuccess(t *testing.T) {
	c, w := setupTest()

	Success(c, map[string]interface{}{"order_no": "OD1"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Empty(t, resp.Reason)
	assert.NotNil(t, resp.Data)
}

func TestSuccessList(t *testing.T) {
	c, w := setupTest()

	SuccessList(c, []string{"a", "b"}, 2)

	resp := parseResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["total"])
	assert.Len(t, data["list"], 2)
}

func TestError_CarriesReason(t *testing.T) {
	c, w := setupTest()

	Error(c, 3006, "insufficient_balance", "余额不足")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, 3006, resp.Code)
	assert.Equal(t, "insufficient_balance", resp.Reason)
	assert.Equal(t, "余额不足", resp.Message)
	assert.Nil(t, resp.Data)
}

func TestHTTPErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		fn         func(*gin.Context, string)
		message    string
		wantStatus int
		wantMsg    string
	}{
		{"BadRequest", BadRequest, "参数错误", http.StatusBadRequest, "参数错误"},
		{"Unauthorized 默认消息", Unauthorized, "", http.StatusUnauthorized, "unauthorized"},
		{"Forbidden", Forbidden, "无权限", http.StatusForbidden, "无权限"},
		{"NotFound 默认消息", NotFound, "", http.StatusNotFound, "not found"},
		{"InternalError", InternalError, "boom", http.StatusInternalServerError, "boom"},
		{"TooManyRequests", TooManyRequests, "", http.StatusTooManyRequests, "too many requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := setupTest()
			tt.fn(c, tt.message)
			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseResponse(t, w)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}
