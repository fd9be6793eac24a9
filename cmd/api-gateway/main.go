// Package main 是应用程序入口
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/storefront-settlement/internal/common/cache"
	"github.com/dumeirei/storefront-settlement/internal/common/config"
	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	"github.com/dumeirei/storefront-settlement/internal/common/tracing"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/notifylog"
	"github.com/dumeirei/storefront-settlement/internal/scheduler"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting Storefront Settlement",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	// 初始化链路追踪
	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	metrics.Init(cfg.Server.Name)

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis 连接
	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Redis connected successfully")

	// 商家端事件推送
	var publisher mqtt.EventPublisher = mqtt.NoopPublisher{}
	if cfg.MQTT.Enabled {
		mqttClient := mqtt.NewClient(&mqtt.Config{
			Broker:        cfg.MQTT.Broker,
			Port:          cfg.MQTT.Port,
			ClientID:      cfg.MQTT.ClientID,
			Username:      cfg.MQTT.Username,
			Password:      cfg.MQTT.Password,
			CleanSession:  true,
			QoS:           cfg.MQTT.QoS,
			KeepAlive:     cfg.MQTT.KeepAlive,
			AutoReconnect: cfg.MQTT.AutoReconnect,
		}, log)
		if err := mqttClient.Connect(); err != nil {
			log.Warn("MQTT unavailable, events disabled", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
			publisher = mqtt.NewPublisher(mqttClient, cfg.MQTT.TopicPrefix, log)
		}
	}

	// 失败回调日志
	journal, err := notifylog.Open(cfg.Business.NotifyJournalPath)
	if err != nil {
		log.Fatal("Failed to open notify journal", zap.Error(err))
	}
	defer journal.Close()

	app, err := buildApp(cfg, db, redisClient, publisher, journal)
	if err != nil {
		log.Fatal("Failed to build services", zap.Error(err))
	}

	// 定时任务
	var sched *scheduler.Scheduler
	if cfg.Business.Scheduler.Enabled {
		sched = scheduler.NewScheduler()
		scheduler.SetupTasks(sched,
			scheduler.NewTaskHandler(app.orderSvc, app.dispatcher, time.Duration(cfg.Business.Order.PayTimeout)*time.Minute),
			scheduler.TaskOptions{
				ReaperEnabled:  cfg.Business.Order.ReaperEnabled,
				ReaperInterval: time.Duration(cfg.Business.Scheduler.ReaperInterval) * time.Second,
				ReplayInterval: time.Duration(cfg.Business.Scheduler.ReplayInterval) * time.Second,
			},
		)
		sched.Start()
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 设置路由
	setupRouter(engine, cfg, log, db, redisClient, app)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 先停止接收请求，再停止定时任务
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		log.Warn("Database close failed", zap.Error(err))
	}

	log.Info("Server exited")
}
