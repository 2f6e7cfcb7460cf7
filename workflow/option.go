package workflow

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option 流程控制器的可选配置
type Option func(c *Controller)

// WithLogger 设置日志, 默认 slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLock 设置按钮执行锁, 默认进程内锁
// 对话框由多个服务实例渲染时使用 NewRedisWorkflowLock
func WithLock(lock WorkflowLock) Option {
	return func(c *Controller) {
		if lock != nil {
			c.lock = lock
		}
	}
}

// WithLockTimeout 副作用函数最长持有锁的时间, 默认10分钟
func WithLockTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

// WithRunRepo 设置运行记录存储, 为空时不记录
func WithRunRepo(repo WorkflowRunRepo) Option {
	return func(c *Controller) {
		c.runRepo = repo
	}
}

// WithLightboxAdvanceDelay 灯箱状态渲染后自动跳转到next的延迟, 默认0, 跳转始终是异步的
func WithLightboxAdvanceDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.lightboxDelay = d
		}
	}
}

// WithTracer 设置 OpenTelemetry tracer, 默认使用全局 TracerProvider
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}
