// Package helpers 提供 mock 实现
package helpers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// MockGateway 支付网关 mock
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req *wechatpay.PaymentIntentRequest) (*wechatpay.ClientPayload, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wechatpay.ClientPayload), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, req *wechatpay.RefundRequest) (*wechatpay.RefundResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wechatpay.RefundResponse), args.Error(1)
}

func (m *MockGateway) QueryPayment(ctx context.Context, outTradeNo string) (*wechatpay.QueryResult, error) {
	args := m.Called(ctx, outTradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wechatpay.QueryResult), args.Error(1)
}

// MockPublisher 事件发布 mock
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event string, data interface{}) {
	m.Called(ctx, event, data)
}
