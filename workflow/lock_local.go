package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewLocalWorkflowLock 进程内的锁, 单进程渲染对话框时使用
func NewLocalWorkflowLock() WorkflowLock {
	return &localWorkflowLock{
		holders: make(map[string]*localLockHolder),
	}
}

type localWorkflowLock struct {
	mu      sync.Mutex
	holders map[string]*localLockHolder // key -> 当前持有者
}

type localLockHolder struct {
	token string      // 持有者标识, 释放时校验
	timer *time.Timer // 超时自动释放
}

func (l *localWorkflowLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error {
	if heldLock(ctx, key) {
		// 已经持有锁，可重入，直接执行
		return f(ctx)
	}

	token := uuid.NewString()
	l.mu.Lock()
	if _, ok := l.holders[key]; ok {
		l.mu.Unlock()
		return errors.WithMessagef(LockFailedError, "[localWorkflowLock.NonBlockingSynchronized] has been locked, key: %s", key)
	}
	holder := &localLockHolder{token: token}
	if maxLockTimeDuration > 0 {
		holder.timer = time.AfterFunc(maxLockTimeDuration, func() {
			slog.Warn("[localWorkflowLock] lock expired before release", "key", key)
			l.release(key, token)
		})
	}
	l.holders[key] = holder
	l.mu.Unlock()

	defer l.release(key, token)
	return f(context.WithValue(ctx, lockKey(key), token))
}

func (l *localWorkflowLock) release(key string, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[key]
	if !ok || holder.token != token {
		// 已经过期释放, 或者被新的持有者占用
		return
	}
	if holder.timer != nil {
		holder.timer.Stop()
	}
	delete(l.holders, key)
}
