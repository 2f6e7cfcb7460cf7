package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	LockFailedError = errors.New("lock failed")
)

// WorkflowLock 按钮执行锁, key 为流程运行id
// 副作用函数执行期间按钮组禁用, 同一个运行里的第二次点击直接失败, 不排队
type WorkflowLock interface {
	// NonBlockingSynchronized
	//  @Description:  1.非阻塞同步块,如果没有拿到锁，立刻返回 LockFailedError
	//                 2.可以重入锁, 副作用函数里面再触发同一个运行的操作不会死锁
	//  @param ctx 原来的ctx
	//  @param key 锁的key
	//  @param maxLockTimeDuration 锁最大的时间, 副作用函数卡死时到期自动释放
	//  @param f 具体执行函数的闭包
	//  @return error
	NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error
}

type lockKey string

// runLockKey 流程运行的锁key
func runLockKey(runID string) string {
	return "dialog_workflow:run:" + runID
}

// heldLock 检查ctx中是否已经持有key对应的锁
func heldLock(ctx context.Context, key string) bool {
	_, ok := ctx.Value(lockKey(key)).(string)
	return ok
}
