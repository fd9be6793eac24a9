package mqtt

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// 商家端事件
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderLatePaid  = "order.late_paid"
	EventRefundApplied  = "refund.applied"
	EventRechargePaid   = "recharge.paid"
	EventCodeRedeemed   = "redemption.issued"
	EventCodeConsumed   = "redemption.consumed"
	EventNotifyJournals = "notify.journaled"
)

// EventPublisher 商家端事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event string, data interface{})
}

// Event 事件报文
type Event struct {
	Event     string      `json:"event"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type topicPublisher interface {
	PublishWithContext(ctx context.Context, topic string, payload interface{}) error
}

// Publisher 基于 MQTT 的事件发布器，发布失败只记录日志
type Publisher struct {
	client      topicPublisher
	topicPrefix string
	timeout     time.Duration
	log         *zap.Logger
}

// NewPublisher 创建事件发布器
func NewPublisher(client *Client, topicPrefix string, log *zap.Logger) *Publisher {
	return newPublisher(client, topicPrefix, log)
}

func newPublisher(client topicPublisher, topicPrefix string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if topicPrefix == "" {
		topicPrefix = "storefront"
	}
	return &Publisher{client: client, topicPrefix: topicPrefix, timeout: 3 * time.Second, log: log}
}

// Topic 事件对应主题
func (p *Publisher) Topic(event string) string {
	return p.topicPrefix + "/events/" + event
}

// Publish 发布事件
func (p *Publisher) Publish(ctx context.Context, event string, data interface{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := Event{Event: event, Timestamp: time.Now().Unix(), Data: data}
	if err := p.client.PublishWithContext(ctx, p.Topic(event), msg); err != nil {
		p.log.Warn("publish event failed", zap.String("event", event), zap.Error(err))
	}
}

// NoopPublisher MQTT 未启用时使用
type NoopPublisher struct{}

// Publish 丢弃事件
func (NoopPublisher) Publish(context.Context, string, interface{}) {}
