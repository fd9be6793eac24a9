package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	"github.com/dumeirei/storefront-settlement/internal/notifylog"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

// 单号前缀
const (
	PrefixOrder    = "OD"
	PrefixRecharge = "RC"
)

// PaymentHandler 支付通知消费者
type PaymentHandler func(ctx context.Context, n *wechatpay.PaymentNotification) error

// RefundHandler 退款通知消费者
type RefundHandler func(ctx context.Context, n *wechatpay.RefundNotification) error

// Journal 失败回调日志
type Journal interface {
	Record(entry *notifylog.Entry) (bool, error)
	List(kind string) ([]*notifylog.Entry, error)
	Delete(key string) error
}

type paymentRoute struct {
	prefix string
	handle PaymentHandler
}

// NotifyDispatcher 网关回调分发
// 支付通知按单号前缀交给对应消费者；处理失败的回调写入日志等待重放
type NotifyDispatcher struct {
	mu        sync.RWMutex
	payments  []paymentRoute
	refund    RefundHandler
	journal   Journal
	publisher mqtt.EventPublisher
}

// NewNotifyDispatcher 创建回调分发器，journal 可为 nil
func NewNotifyDispatcher(journal Journal, publisher mqtt.EventPublisher) *NotifyDispatcher {
	if publisher == nil {
		publisher = mqtt.NoopPublisher{}
	}
	return &NotifyDispatcher{journal: journal, publisher: publisher}
}

// HandlePayment 注册支付通知消费者
func (d *NotifyDispatcher) HandlePayment(prefix string, h PaymentHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payments = append(d.payments, paymentRoute{prefix: prefix, handle: h})
}

// HandleRefund 注册退款通知消费者
func (d *NotifyDispatcher) HandleRefund(h RefundHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refund = h
}

// DispatchPayment 分发支付通知
func (d *NotifyDispatcher) DispatchPayment(ctx context.Context, n *wechatpay.PaymentNotification) error {
	err := d.runPayment(ctx, n)
	if err != nil {
		d.journalFailure(ctx, &notifylog.Entry{
			Kind:        notifylog.KindPayment,
			ExternalRef: n.ExternalRef,
			Status:      n.Status,
			TxnRef:      n.TxnRef,
			LastError:   err.Error(),
		})
	}
	return err
}

// DispatchRefund 分发退款通知
func (d *NotifyDispatcher) DispatchRefund(ctx context.Context, n *wechatpay.RefundNotification) error {
	err := d.runRefund(ctx, n)
	if err != nil {
		d.journalFailure(ctx, &notifylog.Entry{
			Kind:        notifylog.KindRefund,
			ExternalRef: n.ExternalRef,
			Status:      n.Status,
			LastError:   err.Error(),
		})
	}
	return err
}

func (d *NotifyDispatcher) runPayment(ctx context.Context, n *wechatpay.PaymentNotification) error {
	d.mu.RLock()
	routes := d.payments
	d.mu.RUnlock()

	matched := false
	for _, route := range routes {
		if !strings.HasPrefix(n.ExternalRef, route.prefix) {
			continue
		}
		matched = true
		if err := route.handle(ctx, n); err != nil {
			return err
		}
	}
	if !matched {
		logger.Warn("支付通知单号无法识别", logger.ExternalRef(n.ExternalRef))
	}
	return nil
}

func (d *NotifyDispatcher) runRefund(ctx context.Context, n *wechatpay.RefundNotification) error {
	d.mu.RLock()
	h := d.refund
	d.mu.RUnlock()

	if h == nil {
		logger.Warn("未注册退款通知消费者", logger.RefundNo(n.ExternalRef))
		return nil
	}
	return h(ctx, n)
}

// journalFailure 记录失败回调
func (d *NotifyDispatcher) journalFailure(ctx context.Context, entry *notifylog.Entry) {
	metrics.GetMetrics().RecordNotifyFailure(entry.Kind)
	logger.Error("回调处理失败",
		logger.String("kind", entry.Kind),
		logger.ExternalRef(entry.ExternalRef),
		logger.String("error", entry.LastError),
	)
	if d.journal == nil {
		return
	}

	written, err := d.journal.Record(entry)
	if err != nil {
		logger.Error("写入回调失败日志出错", logger.ExternalRef(entry.ExternalRef), logger.Err(err))
		return
	}
	if written {
		d.publisher.Publish(ctx, mqtt.EventNotifyJournals, map[string]interface{}{
			"kind":         entry.Kind,
			"external_ref": entry.ExternalRef,
			"error":        entry.LastError,
		})
	}
}

// Failures 列出待重放的失败回调
func (d *NotifyDispatcher) Failures() ([]*notifylog.Entry, error) {
	if d.journal == nil {
		return []*notifylog.Entry{}, nil
	}
	return d.journal.List("")
}

// Replay 重放失败回调，成功的记录从日志删除，返回成功条数
func (d *NotifyDispatcher) Replay(ctx context.Context) (int, error) {
	if d.journal == nil {
		return 0, nil
	}
	entries, err := d.journal.List("")
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}

		var runErr error
		switch entry.Kind {
		case notifylog.KindPayment:
			runErr = d.runPayment(ctx, &wechatpay.PaymentNotification{
				ExternalRef: entry.ExternalRef,
				Status:      entry.Status,
				TxnRef:      entry.TxnRef,
			})
		case notifylog.KindRefund:
			runErr = d.runRefund(ctx, &wechatpay.RefundNotification{
				ExternalRef: entry.ExternalRef,
				Status:      entry.Status,
			})
		default:
			logger.Warn("未知的回调类型，丢弃", logger.String("key", entry.Key()))
		}

		if runErr != nil {
			next := *entry
			next.LastError = runErr.Error()
			if _, err := d.journal.Record(&next); err != nil {
				logger.Error("更新回调失败日志出错", logger.String("key", entry.Key()), logger.Err(err))
			}
			continue
		}
		if err := d.journal.Delete(entry.Key()); err != nil {
			return replayed, err
		}
		replayed++
	}

	if replayed > 0 {
		logger.Info("失败回调重放完成", logger.Int("replayed", replayed), logger.Int("total", len(entries)))
	}
	return replayed, nil
}
