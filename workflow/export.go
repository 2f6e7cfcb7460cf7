package workflow

import "context"

type WorkflowController interface {
	/**
	 * @description: 启动流程, 清空上下文, 进入定义中的 start 状态并打开对话框
	 *				 上一次运行没有结束时直接放弃, 不触发回调
	 * @param ctx context.Context
	 * @return error
	 */
	Start(ctx context.Context) error
	/**
	 * @description: 强制跳转到指定状态, 不经过按钮的转换规则, 给宿主页面导航使用
	 *				 状态不存在时记录日志并返回 ErrWorkflowStateNotFound, 当前状态不变
	 * @param ctx context.Context
	 * @param stateName string
	 * @return error
	 */
	GoTo(ctx context.Context, stateName string) error
	/**
	 * @description: 浅合并到上下文, 立即生效, 不触发状态转换
	 * @param partial map[string]any
	 */
	UpdateContext(partial map[string]any)
	/**
	 * @description: 获取上下文快照, 返回值不会跟随上下文变化
	 * @return map[string]any
	 */
	GetContext() map[string]any
	/**
	 * @description: 结束流程, 关闭当前对话框, 调用 OnComplete
	 *				 流程没有运行时返回 ErrWorkflowNotRunning, 不会重复调用回调
	 * @param ctx context.Context
	 * @return error
	 */
	Exit(ctx context.Context) error
	/**
	 * @description: 当前状态名称
	 * @return string, bool 没有启动或者已经结束时返回 false
	 */
	CurrentState() (string, bool)
}
