package scheduler

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
)

// reapBatch 每轮最多关闭的订单数
const reapBatch = 100

// OrderReaper 关闭超时未支付订单
type OrderReaper interface {
	ListStalePending(ctx context.Context, timeout time.Duration, limit int) ([]string, error)
	CloseOrder(ctx context.Context, orderNo string) error
}

// NotifyReplayer 重放处理失败的支付通知
type NotifyReplayer interface {
	Replay(ctx context.Context) (int, error)
}

// TaskHandler 任务处理器
type TaskHandler struct {
	orders     OrderReaper
	notify     NotifyReplayer
	payTimeout time.Duration
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(orders OrderReaper, notify NotifyReplayer, payTimeout time.Duration) *TaskHandler {
	return &TaskHandler{
		orders:     orders,
		notify:     notify,
		payTimeout: payTimeout,
	}
}

// CloseStaleOrders 关闭超时未支付的订单并退回优惠券
// 关闭是条件更新，与支付回调并发时回调优先
func (h *TaskHandler) CloseStaleOrders(ctx context.Context) error {
	orderNos, err := h.orders.ListStalePending(ctx, h.payTimeout, reapBatch)
	if err != nil {
		return err
	}
	if len(orderNos) == 0 {
		return nil
	}

	closed := 0
	for _, orderNo := range orderNos {
		if err := h.orders.CloseOrder(ctx, orderNo); err != nil {
			// 已被支付回调或用户取消抢先处理
			if stderrors.Is(err, errors.ErrOrderStatusError) {
				continue
			}
			logger.Warn("关闭超时订单失败", logger.OrderNo(orderNo), logger.Err(err))
			continue
		}
		closed++
	}

	if closed > 0 {
		logger.Info("关闭超时未支付订单", logger.Int("count", closed))
	}
	return nil
}

// ReplayNotifications 重放失败的支付与退款通知
func (h *TaskHandler) ReplayNotifications(ctx context.Context) error {
	replayed, err := h.notify.Replay(ctx)
	if replayed > 0 {
		logger.Info("重放支付通知", logger.Int("count", replayed))
	}
	return err
}

// TaskOptions 任务开关与间隔
type TaskOptions struct {
	ReaperEnabled  bool
	ReaperInterval time.Duration
	ReplayInterval time.Duration
}

// SetupTasks 设置所有任务
func SetupTasks(scheduler *Scheduler, handler *TaskHandler, opts TaskOptions) {
	if opts.ReaperEnabled && handler.orders != nil {
		scheduler.AddTask("CloseStaleOrders", opts.ReaperInterval, handler.CloseStaleOrders)
	}
	if handler.notify != nil {
		scheduler.AddTask("ReplayNotifications", opts.ReplayInterval, handler.ReplayNotifications)
	}
}
