// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/cache"
	"github.com/dumeirei/storefront-settlement/internal/common/config"
	"github.com/dumeirei/storefront-settlement/internal/common/jwt"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	adminHandler "github.com/dumeirei/storefront-settlement/internal/handler/admin"
	marketingHandler "github.com/dumeirei/storefront-settlement/internal/handler/marketing"
	orderHandler "github.com/dumeirei/storefront-settlement/internal/handler/order"
	paymentHandler "github.com/dumeirei/storefront-settlement/internal/handler/payment"
	rechargeHandler "github.com/dumeirei/storefront-settlement/internal/handler/recharge"
	userHandler "github.com/dumeirei/storefront-settlement/internal/handler/user"
	"github.com/dumeirei/storefront-settlement/internal/middleware"
	"github.com/dumeirei/storefront-settlement/internal/notifylog"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	marketingService "github.com/dumeirei/storefront-settlement/internal/service/marketing"
	orderService "github.com/dumeirei/storefront-settlement/internal/service/order"
	paymentService "github.com/dumeirei/storefront-settlement/internal/service/payment"
	rechargeService "github.com/dumeirei/storefront-settlement/internal/service/recharge"
	redemptionService "github.com/dumeirei/storefront-settlement/internal/service/redemption"
	"github.com/dumeirei/storefront-settlement/internal/service/shop"
	userService "github.com/dumeirei/storefront-settlement/internal/service/user"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
	"github.com/dumeirei/storefront-settlement/pkg/sms"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// app 组装完成的服务
type app struct {
	jwtManager    *jwt.Manager
	wechatPay     *wechatpay.Client
	dispatcher    *paymentService.NotifyDispatcher
	orderSvc      *orderService.OrderService
	refundSvc     *orderService.RefundService
	rechargeSvc   *rechargeService.RechargeService
	redemptionSvc *redemptionService.RedemptionService
	couponSvc     *marketingService.CouponService
	accountSvc    *userService.AccountService
	addressSvc    *userService.AddressService
}

// buildApp 初始化仓储与服务，并把网关回调接到结算服务
func buildApp(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	publisher mqtt.EventPublisher,
	journal *notifylog.Store,
) (*app, error) {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	// 店铺配置
	var shopProvider shop.Provider = shop.StaticProvider{Config: shop.DefaultConfig()}
	if cfg.Business.ShopConfigPath != "" {
		fp, err := shop.NewFileProvider(cfg.Business.ShopConfigPath)
		if err != nil {
			return nil, err
		}
		shopProvider = fp
	}

	// 初始化外部服务客户端
	wechatPayClient, err := wechatpay.NewClient(&wechatpay.Config{
		AppID:           cfg.WeChat.AppID,
		MchID:           cfg.WeChat.MchID,
		APIv3Key:        cfg.WeChat.APIv3Key,
		SerialNo:        cfg.WeChat.SerialNo,
		PrivateKeyPath:  cfg.WeChat.PrivateKeyPath,
		NotifyURL:       cfg.WeChat.NotifyURL,
		RefundNotifyURL: cfg.WeChat.RefundNotifyURL,
		Mock:            cfg.WeChat.Mock,
	})
	if err != nil {
		return nil, err
	}

	var smsSender sms.Sender = sms.NewMockSender()
	if cfg.SMS.Provider == "aliyun" {
		aliyun, err := sms.NewAliyunSender(&sms.AliyunConfig{
			AccessKeyID:     cfg.SMS.AccessKeyID,
			AccessKeySecret: cfg.SMS.AccessKeySecret,
			SignName:        cfg.SMS.SignName,
			Templates:       cfg.SMS.Templates,
		})
		if err != nil {
			return nil, err
		}
		smsSender = aliyun
	}

	// 初始化仓储
	accountRepo := repository.NewAccountRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	rechargeRepo := repository.NewRechargeRepository(db)
	giftRepo := repository.NewGiftRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)

	// 初始化服务
	biz := cfg.Business
	settlementSvc := paymentService.NewSettlementService(db, orderRepo, accountRepo, publisher)

	orderSvc := orderService.NewOrderService(db, orderRepo, accountRepo, addressRepo, productRepo, couponRepo,
		shopProvider, wechatPayClient, publisher)
	orderSvc.SetSettler(settlementSvc)
	if biz.Order.RetryBackoff > 0 {
		orderSvc.SetRetryBackoff(time.Duration(biz.Order.RetryBackoff) * time.Millisecond)
	}

	refundSvc := orderService.NewRefundService(db, orderRepo, refundRepo, accountRepo,
		shopProvider, wechatPayClient, smsSender, publisher)
	refundSvc.SetWindow(time.Duration(biz.Refund.WindowDays) * 24 * time.Hour)

	rechargeSvc := rechargeService.NewRechargeService(db, rechargeRepo, accountRepo, couponRepo,
		shopProvider, wechatPayClient, publisher)
	rechargeSvc.SetMaxAmount(decimal.NewFromFloat(biz.Recharge.MaxAmount))

	reserver := cache.NewReserver(redisClient, cache.KeyPrefixRedeemCode,
		time.Duration(biz.Redemption.ReserveSeconds)*time.Second)
	redemptionSvc := redemptionService.NewRedemptionService(db, giftRepo, accountRepo, redemptionRepo, reserver, publisher)
	redemptionSvc.SetMaxAttempts(biz.Redemption.MaxAttempts)

	// 网关回调按单号前缀分发
	dispatcher := paymentService.NewNotifyDispatcher(journal, publisher)
	dispatcher.HandlePayment(paymentService.PrefixOrder, settlementSvc.SettleOrderPayment)
	dispatcher.HandlePayment(paymentService.PrefixRecharge, rechargeSvc.SettleRecharge)
	dispatcher.HandleRefund(refundSvc.SettleRefund)

	return &app{
		jwtManager:    jwtManager,
		wechatPay:     wechatPayClient,
		dispatcher:    dispatcher,
		orderSvc:      orderSvc,
		refundSvc:     refundSvc,
		rechargeSvc:   rechargeSvc,
		redemptionSvc: redemptionSvc,
		couponSvc:     marketingService.NewCouponService(db, couponRepo, accountRepo),
		accountSvc:    userService.NewAccountService(accountRepo, couponRepo),
		addressSvc:    userService.NewAddressService(addressRepo),
	}, nil
}

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	a *app,
) {
	// 初始化处理器
	userH := userHandler.NewHandler(a.accountSvc, a.jwtManager)
	addressH := userHandler.NewAddressHandler(a.addressSvc)
	orderH := orderHandler.NewHandler(a.orderSvc)
	refundH := orderHandler.NewRefundHandler(a.refundSvc)
	rechargeH := rechargeHandler.NewHandler(a.rechargeSvc)
	couponH := marketingHandler.NewCouponHandler(a.couponSvc)
	redemptionH := marketingHandler.NewRedemptionHandler(a.redemptionSvc)
	paymentH := paymentHandler.NewHandler(a.wechatPay, a.dispatcher)
	adminOrderH := adminHandler.NewOrderHandler(a.orderSvc, a.refundSvc)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.CORS(middleware.CORSFromSettings(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
		cfg.CORS.ExposedHeaders,
		cfg.CORS.AllowCredentials,
		cfg.CORS.MaxAge,
	)))
	r.Use(middleware.Logging(middleware.DefaultLoggingConfig(logger)))
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(cfg.Tracing.ServiceName, "/health", "/ping", "/ready", cfg.Metrics.Path))
	}

	m := metrics.GetMetrics()
	if cfg.Metrics.Enabled {
		r.Use(m.Middleware())
		r.GET(cfg.Metrics.Path, m.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient, a.dispatcher))

	// Swagger 文档
	if cfg.Server.Mode != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 支付回调（需要验签，不需要认证）
		paymentH.RegisterCallbackRoutes(v1)

		// 联调登录，仅支付 Mock 模式开放
		if cfg.WeChat.Mock {
			userH.RegisterDevRoutes(v1)
		}

		// 顾客接口
		customer := v1.Group("")
		customer.Use(middleware.CustomerAuth(a.jwtManager))
		{
			userH.RegisterRoutes(customer)
			addressH.RegisterRoutes(customer)
			orderH.RegisterRoutes(customer)
			refundH.RegisterRoutes(customer)
			rechargeH.RegisterRoutes(customer)
			couponH.RegisterRoutes(customer)

			var redeemLimit []gin.HandlerFunc
			if cfg.RateLimit.Enabled {
				redeemLimit = append(redeemLimit, middleware.AccountRateLimit(
					redisClient, "redeem",
					cfg.RateLimit.RedeemLimit,
					time.Duration(cfg.RateLimit.RedeemWindow)*time.Second,
				))
			}
			redemptionH.RegisterRoutes(customer, redeemLimit...)
		}
	}

	// 商家后台
	admin := r.Group("/api/admin")
	admin.Use(middleware.MerchantAuth(a.jwtManager))
	{
		adminOrderH.RegisterRoutes(admin)
		redemptionH.RegisterAdminRoutes(admin)
		paymentH.RegisterAdminRoutes(admin)
	}
}
