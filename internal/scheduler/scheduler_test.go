package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
)

type fakeOrders struct {
	mu      sync.Mutex
	stale   []string
	raced   map[string]bool
	closed  []string
	timeout time.Duration
}

func (f *fakeOrders) ListStalePending(_ context.Context, timeout time.Duration, _ int) ([]string, error) {
	f.timeout = timeout
	return f.stale, nil
}

func (f *fakeOrders) CloseOrder(_ context.Context, orderNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raced[orderNo] {
		return errors.ErrOrderStatusError
	}
	f.closed = append(f.closed, orderNo)
	return nil
}

type fakeReplayer struct {
	calls int32
	err   error
}

func (f *fakeReplayer) Replay(context.Context) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return 1, f.err
}

func TestTaskHandler_CloseStaleOrders(t *testing.T) {
	orders := &fakeOrders{
		stale: []string{"OD1", "OD2", "OD3"},
		raced: map[string]bool{"OD2": true},
	}
	h := NewTaskHandler(orders, nil, 30*time.Minute)

	require.NoError(t, h.CloseStaleOrders(context.Background()))
	assert.Equal(t, []string{"OD1", "OD3"}, orders.closed)
	assert.Equal(t, 30*time.Minute, orders.timeout)
}

func TestTaskHandler_ReplayNotifications(t *testing.T) {
	replayer := &fakeReplayer{err: stderrors.New("bolt closed")}
	h := NewTaskHandler(nil, replayer, time.Minute)

	assert.Error(t, h.ReplayNotifications(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&replayer.calls))
}

func TestSetupTasks(t *testing.T) {
	h := NewTaskHandler(&fakeOrders{}, &fakeReplayer{}, time.Minute)

	t.Run("默认不启用超时关单", func(t *testing.T) {
		s := NewScheduler()
		SetupTasks(s, h, TaskOptions{ReaperInterval: time.Minute, ReplayInterval: time.Minute})
		require.Len(t, s.Tasks(), 1)
		assert.Equal(t, "ReplayNotifications", s.Tasks()[0].Name)
	})

	t.Run("显式启用超时关单", func(t *testing.T) {
		s := NewScheduler()
		SetupTasks(s, h, TaskOptions{ReaperEnabled: true, ReaperInterval: time.Minute, ReplayInterval: time.Minute})
		assert.Len(t, s.Tasks(), 2)
	})

	t.Run("间隔无效的任务忽略", func(t *testing.T) {
		s := NewScheduler()
		SetupTasks(s, h, TaskOptions{ReaperEnabled: true, ReaperInterval: 0, ReplayInterval: time.Minute})
		assert.Len(t, s.Tasks(), 1)
	})
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	var runs int32
	s.AddTask("counter", 10*time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	s.AddTask("panics", 10*time.Millisecond, func(context.Context) error {
		panic("boom")
	})

	s.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}
