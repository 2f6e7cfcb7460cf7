package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	delCommand = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`
)

// NewRedisWorkflowLock 分布式锁, 同一个流程的对话框可能由多个服务实例渲染时使用
func NewRedisWorkflowLock(redisClient redis.Cmdable) WorkflowLock {
	return &redisWorkflowLock{redisClient: redisClient}
}

type redisWorkflowLock struct {
	redisClient redis.Cmdable
}

func (d *redisWorkflowLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(ctx2 context.Context) error) error {
	if heldLock(ctx, key) {
		// 之前成功上锁了,继续执行即可
		return f(ctx)
	}
	token := uuid.NewString()
	isLock, err := d.redisClient.SetNX(ctx, key, token, maxLockTimeDuration).Result()
	if err != nil {
		return errors.WithMessagef(LockFailedError, "[redisWorkflowLock.NonBlockingSynchronized] key: %s, err: %v", key, err)
	}
	if !isLock {
		return errors.WithMessagef(LockFailedError, "[redisWorkflowLock.NonBlockingSynchronized] has been locked, key: %s", key)
	}
	defer d.releaseKey(key, token)
	return f(context.WithValue(ctx, lockKey(key), token))
}

func (d *redisWorkflowLock) releaseKey(key string, token string) {
	// 释放锁, 因为context 可能会被cancel，确保释放锁需要新开一个context,不能用原来的
	reply, err := d.redisClient.Eval(context.Background(), delCommand, []string{key}, token).Int64()
	if err != nil {
		slog.Error("[redisWorkflowLock.releaseKey] release key failed", "key", key, "err", err)
		return
	}
	if reply != 1 {
		// 锁已经过期, 可能被其他持有者拿走
		slog.Warn("[redisWorkflowLock.releaseKey] lock not owned on release", "key", key, "reply", reply)
	}
}
