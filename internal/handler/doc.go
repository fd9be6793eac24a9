// Package handler 按业务拆分的 HTTP Handler，子包各自注册路由
//
// 文档由 swag init --dir ./internal/handler -g doc.go 生成
//
// @title 门店结算服务 API
// @version 1.0
// @description 下单、支付回调、余额充值、售后退款与积分兑换
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
package handler
