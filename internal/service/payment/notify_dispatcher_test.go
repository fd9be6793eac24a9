package payment

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-settlement/internal/notifylog"
	"github.com/dumeirei/storefront-settlement/pkg/wechatpay"
)

func openJournal(t *testing.T) *notifylog.Store {
	t.Helper()
	store, err := notifylog.Open(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNotifyDispatcher_RoutesByPrefix(t *testing.T) {
	d := NewNotifyDispatcher(nil, nil)
	var orders, recharges []string
	d.HandlePayment(PrefixOrder, func(_ context.Context, n *wechatpay.PaymentNotification) error {
		orders = append(orders, n.ExternalRef)
		return nil
	})
	d.HandlePayment(PrefixRecharge, func(_ context.Context, n *wechatpay.PaymentNotification) error {
		recharges = append(recharges, n.ExternalRef)
		return nil
	})
	ctx := context.Background()

	require.NoError(t, d.DispatchPayment(ctx, &wechatpay.PaymentNotification{ExternalRef: "OD1", Status: wechatpay.TradeStateSuccess}))
	require.NoError(t, d.DispatchPayment(ctx, &wechatpay.PaymentNotification{ExternalRef: "RC1", Status: wechatpay.TradeStateSuccess}))
	require.NoError(t, d.DispatchPayment(ctx, &wechatpay.PaymentNotification{ExternalRef: "XX1", Status: wechatpay.TradeStateSuccess}))

	assert.Equal(t, []string{"OD1"}, orders)
	assert.Equal(t, []string{"RC1"}, recharges)

	failures, err := d.Failures()
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestNotifyDispatcher_JournalAndReplay(t *testing.T) {
	journal := openJournal(t)
	d := NewNotifyDispatcher(journal, nil)
	ctx := context.Background()

	healthy := false
	settled := map[string]int{}
	d.HandlePayment(PrefixOrder, func(_ context.Context, n *wechatpay.PaymentNotification) error {
		if !healthy {
			return stderrors.New("database is locked")
		}
		settled[n.ExternalRef]++
		return nil
	})
	d.HandleRefund(func(_ context.Context, n *wechatpay.RefundNotification) error {
		if !healthy {
			return stderrors.New("connection refused")
		}
		settled[n.ExternalRef]++
		return nil
	})

	t.Run("处理失败写入日志", func(t *testing.T) {
		notice := &wechatpay.PaymentNotification{ExternalRef: "OD100", Status: wechatpay.TradeStateSuccess, TxnRef: "4200100"}
		assert.Error(t, d.DispatchPayment(ctx, notice))
		assert.Error(t, d.DispatchPayment(ctx, notice))
		assert.Error(t, d.DispatchRefund(ctx, &wechatpay.RefundNotification{ExternalRef: "RF100", Status: wechatpay.RefundStatusSuccess}))

		failures, err := d.Failures()
		require.NoError(t, err)
		require.Len(t, failures, 2)

		entry, err := journal.Get("payment:OD100")
		require.NoError(t, err)
		assert.Equal(t, 1, entry.Attempts)
		assert.Equal(t, "4200100", entry.TxnRef)
	})

	t.Run("故障期间重放保留记录", func(t *testing.T) {
		replayed, err := d.Replay(ctx)
		require.NoError(t, err)
		assert.Zero(t, replayed)

		failures, err := d.Failures()
		require.NoError(t, err)
		assert.Len(t, failures, 2)
	})

	t.Run("恢复后重放并删除记录", func(t *testing.T) {
		healthy = true
		replayed, err := d.Replay(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, replayed)
		assert.Equal(t, 1, settled["OD100"])
		assert.Equal(t, 1, settled["RF100"])

		failures, err := d.Failures()
		require.NoError(t, err)
		assert.Empty(t, failures)
	})
}

func TestNotifyDispatcher_NoRefundHandler(t *testing.T) {
	d := NewNotifyDispatcher(nil, nil)
	err := d.DispatchRefund(context.Background(), &wechatpay.RefundNotification{ExternalRef: "RF1"})
	assert.NoError(t, err)

	replayed, err := d.Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, replayed)
}
