package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/jwt"
	"github.com/dumeirei/storefront-settlement/internal/middleware"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	orderService "github.com/dumeirei/storefront-settlement/internal/service/order"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	"github.com/dumeirei/storefront-settlement/pkg/sms"
	"github.com/dumeirei/storefront-settlement/tests/helpers"
)

const adminID int64 = 7

type apiResponse struct {
	Code   int             `json:"code"`
	Reason string          `json:"reason"`
	Data   json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) (*gorm.DB, *gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := helpers.NewTestDB(t)
	jwtManager := jwt.NewManager(&jwt.Config{Secret: "test-secret", AccessExpireTime: time.Hour, Issuer: "test"})

	orderRepo := repository.NewOrderRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	shopProvider := shop.StaticProvider{Config: shop.DefaultConfig()}
	gateway := &helpers.MockGateway{}

	orderSvc := orderService.NewOrderService(db, orderRepo, accountRepo,
		repository.NewAddressRepository(db), repository.NewProductRepository(db), repository.NewCouponRepository(db),
		shopProvider, gateway, nil)
	refundSvc := orderService.NewRefundService(db, orderRepo, repository.NewRefundRepository(db), accountRepo,
		shopProvider, gateway, sms.NewMockSender(), nil)

	r := gin.New()
	group := r.Group("/api/admin")
	group.Use(middleware.MerchantAuth(jwtManager))
	NewOrderHandler(orderSvc, refundSvc).RegisterRoutes(group)
	return db, r, jwtManager
}

func call(t *testing.T, r *gin.Engine, token, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestOrderHandler_Auth(t *testing.T) {
	_, r, jwtManager := setupRouter(t)

	token, err := jwtManager.GenerateAccessToken(1, jwt.UserTypeCustomer)
	require.NoError(t, err)

	w, _ := call(t, r, token, http.MethodGet, "/api/admin/orders/OD1/refund", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrderHandler_RefundFlow(t *testing.T) {
	db, r, jwtManager := setupRouter(t)
	token, err := jwtManager.GenerateAccessToken(adminID, jwt.UserTypeMerchant)
	require.NoError(t, err)

	account := helpers.CreateAccount(t, db, "0", 0)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusDone, "40")
	base := "/api/admin/orders/" + order.OrderNo + "/refund"

	t.Run("无售后时查询返回不存在", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodGet, base, nil)
		assert.Equal(t, errors.ErrRefundNotFound.Reason, resp.Reason)
	})

	t.Run("商家发起售后", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodPost, base, MerchantApplyRequest{Reason: "出餐错误"})
		require.Equal(t, 0, resp.Code, resp.Reason)

		var refund models.OrderRefund
		require.NoError(t, json.Unmarshal(resp.Data, &refund))
		assert.Equal(t, models.RefundSourceMerchant, refund.Source)
		assert.Equal(t, models.RefundStatusApplied, refund.Status)
		require.NotEmpty(t, refund.Logs)
		assert.Equal(t, fmt.Sprintf("admin:%d", adminID), refund.Logs[0].Operator)
	})

	t.Run("无效的处理结果", func(t *testing.T) {
		w, _ := call(t, r, token, http.MethodPost, base+"/handle", map[string]string{"decision": "maybe"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("同意后余额原路退回", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodPost, base+"/handle", map[string]string{
			"decision": orderService.DecisionApprove,
			"remark":   "已核实",
		})
		require.Equal(t, 0, resp.Code, resp.Reason)

		var refund models.OrderRefund
		require.NoError(t, json.Unmarshal(resp.Data, &refund))
		assert.Equal(t, models.RefundStatusSuccess, refund.Status)

		updated := helpers.ReloadAccount(t, db, account.ID)
		assert.Equal(t, "40.00", updated.Balance.StringFixed(2))
	})

	t.Run("查询售后详情", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodGet, base, nil)
		require.Equal(t, 0, resp.Code)

		var refund models.OrderRefund
		require.NoError(t, json.Unmarshal(resp.Data, &refund))
		assert.Equal(t, order.OrderNo, refund.OrderNo)
	})
}

func TestOrderHandler_Advance(t *testing.T) {
	db, r, jwtManager := setupRouter(t)
	token, err := jwtManager.GenerateAccessToken(adminID, jwt.UserTypeMerchant)
	require.NoError(t, err)

	account := helpers.CreateAccount(t, db, "0", 0)
	order := helpers.CreatePaidOrder(t, db, account.ID, models.PaymentMethodBalance, models.OrderStatusProcessing, "20")
	path := "/api/admin/orders/" + order.OrderNo + "/advance"

	t.Run("自提单备餐完成", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodPost, path, AdvanceRequest{Status: models.OrderStatusReady})
		require.Equal(t, 0, resp.Code, resp.Reason)
		assert.Equal(t, models.OrderStatusReady, helpers.ReloadOrder(t, db, order.OrderNo).Status)
	})

	t.Run("自提单不能配送", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodPost, path, AdvanceRequest{Status: models.OrderStatusDelivering})
		assert.Equal(t, errors.ErrOrderStatusError.Reason, resp.Reason)
	})

	t.Run("完成订单", func(t *testing.T) {
		_, resp := call(t, r, token, http.MethodPost, path, AdvanceRequest{Status: models.OrderStatusDone})
		require.Equal(t, 0, resp.Code, resp.Reason)

		reloaded := helpers.ReloadOrder(t, db, order.OrderNo)
		assert.Equal(t, models.OrderStatusDone, reloaded.Status)
		assert.NotNil(t, reloaded.CompletedAt)
	})
}
