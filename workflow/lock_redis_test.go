package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLock(t *testing.T) (WorkflowLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWorkflowLock(client), mr
}

func TestRedisWorkflowLock(t *testing.T) {
	ctx := context.Background()

	t.Run("执行期间持有key并设置过期时间, 结束后释放", func(t *testing.T) {
		lock, mr := setupRedisLock(t)
		err := lock.NonBlockingSynchronized(ctx, "k1", time.Minute, func(ctx context.Context) error {
			assert.True(t, mr.Exists("k1"))
			assert.Equal(t, time.Minute, mr.TTL("k1"))
			return nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists("k1"))
	})

	t.Run("已经被其他持有者上锁时非阻塞失败", func(t *testing.T) {
		lock, mr := setupRedisLock(t)
		require.NoError(t, mr.Set("k2", "other"))

		err := lock.NonBlockingSynchronized(ctx, "k2", time.Minute, func(ctx context.Context) error {
			t.Fatal("should not run while locked")
			return nil
		})
		assert.True(t, errors.Is(err, LockFailedError))
		got, _ := mr.Get("k2")
		assert.Equal(t, "other", got)
	})

	t.Run("同一个ctx可以重入", func(t *testing.T) {
		lock, _ := setupRedisLock(t)
		innerRan := false
		err := lock.NonBlockingSynchronized(ctx, "k3", time.Minute, func(ctx context.Context) error {
			return lock.NonBlockingSynchronized(ctx, "k3", time.Minute, func(ctx context.Context) error {
				innerRan = true
				return nil
			})
		})
		require.NoError(t, err)
		assert.True(t, innerRan)
	})

	t.Run("函数返回的错误原样返回", func(t *testing.T) {
		lock, mr := setupRedisLock(t)
		boom := errors.New("boom")
		err := lock.NonBlockingSynchronized(ctx, "k4", time.Minute, func(ctx context.Context) error {
			return boom
		})
		assert.Equal(t, boom, err)
		assert.False(t, mr.Exists("k4"))
	})

	t.Run("锁过期后被别人拿走时不会误删", func(t *testing.T) {
		lock, mr := setupRedisLock(t)
		err := lock.NonBlockingSynchronized(ctx, "k5", time.Second, func(ctx context.Context) error {
			mr.FastForward(2 * time.Second)
			require.False(t, mr.Exists("k5"))
			return mr.Set("k5", "other")
		})
		require.NoError(t, err)
		got, _ := mr.Get("k5")
		assert.Equal(t, "other", got)
	})

	t.Run("redis不可用时返回LockFailedError", func(t *testing.T) {
		lock, mr := setupRedisLock(t)
		mr.Close()
		err := lock.NonBlockingSynchronized(ctx, "k6", time.Minute, func(ctx context.Context) error {
			t.Fatal("should not run without lock")
			return nil
		})
		assert.True(t, errors.Is(err, LockFailedError))
	})
}

// 多个实例共享同一个redis时, 同一个运行的第二次点击直接返回按钮忙
func TestControllerWithRedisLock(t *testing.T) {
	ctx := context.Background()
	lock, mr := setupRedisLock(t)
	release := make(chan struct{})
	started := make(chan struct{})
	def := &WorkflowDefinition{
		Name:  "redis_busy",
		Start: "confirm",
		States: map[string]WorkflowState{
			"confirm": &ConfirmState{
				Title: Static("确认"),
				Actions: []*Transition{
					{Label: "保存", Exit: true, Action: func(ctx context.Context, wctx *WorkflowContext) error {
						close(started)
						<-release
						return nil
					}},
					{Label: "取消", Exit: true},
				},
			},
		},
	}
	store := newTestDialogStore()
	counter := &callbackCounter{}
	c, err := store.CreateWorkflow(counter.bind(def), WithLogger(discardLogger()), WithLock(lock))
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	dialog, ok := store.Get(c.CurrentDialogID())
	require.True(t, ok)

	done := make(chan error, 1)
	go func() {
		done <- dialog.Confirm.Actions[0].OnClick(ctx, nil)
	}()
	<-started
	assert.True(t, mr.Exists(runLockKey(c.RunID())))

	err = dialog.Confirm.Actions[1].OnClick(ctx, nil)
	assert.True(t, errors.Is(err, ErrWorkflowActionBusy))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), counter.completed.Load())
	assert.Equal(t, int32(0), counter.cancelled.Load())
	assert.False(t, mr.Exists(runLockKey(c.RunID())))
}
