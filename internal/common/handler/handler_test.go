package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/response"
	"github.com/dumeirei/storefront-settlement/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 辅助函数：创建测试上下文
func createTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

// 辅助函数：解析响应
func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	t.Run("nil 不处理", func(t *testing.T) {
		c, _ := createTestContext()
		assert.False(t, HandleError(c, nil))
	})

	t.Run("业务错误返回 reason", func(t *testing.T) {
		c, w := createTestContext()
		assert.True(t, HandleError(c, fmt.Errorf("create: %w", errors.ErrCartEmpty)))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := parseResponse(t, w)
		assert.Equal(t, errors.ErrCartEmpty.Code, resp.Code)
		assert.Equal(t, "cart_empty", resp.Reason)
	})

	t.Run("普通错误返回500", func(t *testing.T) {
		c, w := createTestContext()
		assert.True(t, HandleError(c, stderrors.New("boom")))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "server_error", parseResponse(t, w).Reason)
	})
}

func TestMustSucceed(t *testing.T) {
	c, w := createTestContext()
	MustSucceed(c, nil, gin.H{"order_no": "OD1"})

	resp := parseResponse(t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "OD1", resp.Data.(map[string]interface{})["order_no"])
}

func TestMustSucceedList(t *testing.T) {
	c, w := createTestContext()
	MustSucceedList(c, nil, []string{"a", "b"}, 2)

	resp := parseResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
}

func TestRequireAccountID(t *testing.T) {
	t.Run("未登录", func(t *testing.T) {
		c, w := createTestContext()
		_, ok := RequireAccountID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("已登录", func(t *testing.T) {
		c, _ := createTestContext()
		c.Set(middleware.ContextKeyAccountID, int64(42))
		id, ok := RequireAccountID(c)
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
	})
}

func TestRequireAdminID(t *testing.T) {
	c, w := createTestContext()
	_, ok := RequireAdminID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = createTestContext()
	c.Set(middleware.ContextKeyAdminID, int64(7))
	id, ok := RequireAdminID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestParseParamID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"有效ID", "12", true},
		{"非数字", "abc", false},
		{"零", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := createTestContext()
			c.Params = gin.Params{{Key: "id", Value: tt.value}}
			_, ok := ParseParamID(c, "id", "礼品")
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestBindJSON(t *testing.T) {
	var req struct {
		Amount float64 `json:"amount" binding:"required"`
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	assert.False(t, BindJSON(c, &req))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":12.5}`))
	c.Request.Header.Set("Content-Type", "application/json")
	assert.True(t, BindJSON(c, &req))
	assert.Equal(t, 12.5, req.Amount)
}

func TestBindPagination(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=2&page_size=500", nil)

	p := BindPagination(c)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 100, p.PageSize)
}

func TestRequireAccountAndParam(t *testing.T) {
	c, _ := createTestContext()
	c.Set(middleware.ContextKeyAccountID, int64(3))
	c.Params = gin.Params{{Key: "order_no", Value: "OD123"}}

	id, no, ok := RequireAccountAndParam(c, "order_no")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "OD123", no)
}
