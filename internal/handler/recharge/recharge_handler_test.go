package recharge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/jwt"
	"github.com/dumeirei/storefront-settlement/internal/middleware"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	rechargeService "github.com/dumeirei/storefront-settlement/internal/service/recharge"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
	"github.com/dumeirei/storefront-settlement/tests/helpers"
)

type apiResponse struct {
	Code   int             `json:"code"`
	Reason string          `json:"reason"`
	Data   json.RawMessage `json:"data"`
}

func TestHandler_RechargeFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := helpers.NewTestDB(t)

	gateway, err := wechatpay.NewClient(&wechatpay.Config{AppID: "wx-app", MchID: "1900000001", Mock: true})
	require.NoError(t, err)

	svc := rechargeService.NewRechargeService(db,
		repository.NewRechargeRepository(db), repository.NewAccountRepository(db), repository.NewCouponRepository(db),
		shop.StaticProvider{Config: shop.DefaultConfig()}, gateway, nil)

	jwtManager := jwt.NewManager(&jwt.Config{Secret: "test-secret", AccessExpireTime: time.Hour, Issuer: "test"})
	r := gin.New()
	group := r.Group("/api/v1")
	group.Use(middleware.CustomerAuth(jwtManager))
	NewHandler(svc).RegisterRoutes(group)

	account := helpers.CreateAccount(t, db, "0", 0)
	other := helpers.CreateAccount(t, db, "0", 0)

	do := func(t *testing.T, method, path string, accountID int64, body string) apiResponse {
		t.Helper()
		token, err := jwtManager.GenerateAccessToken(accountID, jwt.UserTypeCustomer)
		require.NoError(t, err)

		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var resp apiResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	t.Run("金额超过两位小数", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/v1/recharges", account.ID, `{"amount":"10.001"}`)
		assert.Equal(t, errors.ErrInvalidAmount.Reason, resp.Reason)
	})

	t.Run("金额为零", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/v1/recharges", account.ID, `{"amount":"0"}`)
		assert.Equal(t, errors.ErrInvalidAmount.Reason, resp.Reason)
	})

	var rechargeNo string
	t.Run("创建充值单", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/v1/recharges", account.ID, `{"amount":"200"}`)
		require.Equal(t, 0, resp.Code, resp.Reason)

		var result rechargeService.CreateRechargeResponse
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotNil(t, result.Recharge)
		require.NotNil(t, result.Payment)
		assert.Equal(t, models.RechargeStatusPending, result.Recharge.Status)
		assert.Equal(t, "wx-app", result.Payment.AppID)
		rechargeNo = result.Recharge.RechargeNo
	})

	t.Run("他人不可查看", func(t *testing.T) {
		resp := do(t, http.MethodGet, "/api/v1/recharges/"+rechargeNo, other.ID, "")
		assert.Equal(t, errors.ErrRechargeNotFound.Reason, resp.Reason)
	})

	t.Run("未支付时确认保持待支付", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/v1/recharges/"+rechargeNo+"/confirm", account.ID, "")
		require.Equal(t, 0, resp.Code, resp.Reason)

		var recharge models.Recharge
		require.NoError(t, json.Unmarshal(resp.Data, &recharge))
		assert.Equal(t, models.RechargeStatusPending, recharge.Status)
	})

	t.Run("支付后确认入账", func(t *testing.T) {
		gateway.SimulatePaid(rechargeNo, "4200000099")

		resp := do(t, http.MethodPost, "/api/v1/recharges/"+rechargeNo+"/confirm", account.ID, "")
		require.Equal(t, 0, resp.Code, resp.Reason)

		var recharge models.Recharge
		require.NoError(t, json.Unmarshal(resp.Data, &recharge))
		assert.Equal(t, models.RechargeStatusPaid, recharge.Status)

		updated := helpers.ReloadAccount(t, db, account.ID)
		assert.Equal(t, "200.00", updated.Balance.StringFixed(2))
	})

	t.Run("重复确认不重复入账", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/v1/recharges/"+rechargeNo+"/confirm", account.ID, "")
		require.Equal(t, 0, resp.Code, resp.Reason)
		assert.Equal(t, "200.00", helpers.ReloadAccount(t, db, account.ID).Balance.StringFixed(2))
	})
}
