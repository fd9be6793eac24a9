// Package main 是应用程序入口
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/notifylog"
)

// failureLister 待重放回调查询
type failureLister interface {
	Failures() ([]*notifylog.Entry, error)
}

// healthHandler 健康检查（简单版）
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
	})
}

// pingHandler Ping 检查
func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readyHandler 就绪检查
// 数据库与 Redis 不可用时返回 503；待重放回调只作为信息输出
func readyHandler(db *gorm.DB, redisClient *redis.Client, notify failureLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]interface{})
		allHealthy := true

		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil {
			dbStatus = "error: " + err.Error()
			allHealthy = false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = "error: " + err.Error()
			allHealthy = false
		}
		checks["database"] = dbStatus

		redisStatus := "ok"
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisStatus = "error: " + err.Error()
			allHealthy = false
		}
		checks["redis"] = redisStatus

		if notify != nil {
			if entries, err := notify.Failures(); err != nil {
				checks["notify_backlog"] = "error: " + err.Error()
			} else {
				checks["notify_backlog"] = len(entries)
			}
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		c.JSON(status, HealthResponse{
			Status:    statusText,
			Timestamp: time.Now().Unix(),
			Checks:    checks,
		})
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]interface{} `json:"checks,omitempty"`
}
