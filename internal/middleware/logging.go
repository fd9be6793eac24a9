// Package middleware 提供 HTTP 中间件
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/storefront-settlement/internal/common/logger"
)

// LoggingConfig 访问日志配置
type LoggingConfig struct {
	Logger        *zap.Logger
	SkipPaths     []string      // 不记录的路径
	SlowThreshold time.Duration // 超过即按慢请求告警，0 不判断
	LogBody       bool          // 记录请求体
	NoBodyPaths   []string      // 始终不记录请求体的路径
	MaxBodySize   int
}

// DefaultLoggingConfig 默认访问日志配置
// 支付回调报文含加密资源，不落日志
func DefaultLoggingConfig(log *zap.Logger) *LoggingConfig {
	return &LoggingConfig{
		Logger:        log,
		SkipPaths:     []string{"/health", "/ping", "/ready", "/metrics"},
		SlowThreshold: time.Second,
		NoBodyPaths:   []string{"/api/v1/payment/notify", "/api/v1/payment/refund-notify"},
		MaxBodySize:   1024,
	}
}

// routeModule 按路由前缀归类业务模块
// /api/admin 下统一记为 admin
func routeModule(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/admin/"):
		return "admin"
	case strings.HasPrefix(path, "/api/v1/"):
		rest := strings.TrimPrefix(path, "/api/v1/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		switch rest {
		case "orders":
			return "order"
		case "recharges":
			return "recharge"
		case "coupons", "gifts", "redemption-codes":
			return "marketing"
		case "account", "auth":
			return "user"
		case "":
			return "unknown"
		default:
			return rest
		}
	default:
		return "unknown"
	}
}

func truncate(b []byte, max int) string {
	if max > 0 && len(b) > max {
		return string(b[:max]) + "...(truncated)"
	}
	return string(b)
}

// Logging 访问日志中间件
// 路由模板作为 action，路径中的订单号与充值单号单独成字段
func Logging(config *LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}
	noBody := make(map[string]struct{}, len(config.NoBodyPaths))
	for _, p := range config.NoBodyPaths {
		noBody[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()

		var body string
		if _, hidden := noBody[path]; config.LogBody && !hidden && c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = truncate(raw, config.MaxBodySize)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			logger.RequestID(GetRequestID(c)),
			logger.Module(routeModule(path)),
			logger.Action(c.Request.Method + " " + route),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Duration("latency", latency),
			logger.String("ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, logger.String("query", q))
		}
		if no := c.Param("order_no"); no != "" {
			fields = append(fields, logger.OrderNo(no))
		}
		if no := c.Param("recharge_no"); no != "" {
			fields = append(fields, logger.RechargeNo(no))
		}
		if id := GetAccountID(c); id > 0 {
			fields = append(fields, logger.AccountID(id))
		}
		if id := GetAdminID(c); id > 0 {
			fields = append(fields, logger.AdminID(id))
		}
		if body != "" {
			fields = append(fields, logger.String("request_body", body))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}

		slow := config.SlowThreshold > 0 && latency >= config.SlowThreshold
		switch {
		case status >= 500:
			config.Logger.Error("HTTP Request", fields...)
		case status >= 400:
			config.Logger.Warn("HTTP Request", fields...)
		case slow:
			config.Logger.Warn("HTTP Slow Request", fields...)
		default:
			config.Logger.Info("HTTP Request", fields...)
		}
	}
}
